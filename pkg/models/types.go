package models

import "time"

// LogFile is the identity of a remote log file as reported by a single
// DescribeDBLogFiles listing. LastWritten is epoch milliseconds.
type LogFile struct {
	Name        string
	Size        int64
	LastWritten int64
}

// RecordEntry is the outcome of one completed transfer. Key is the object
// key the file was published under and doubles as the transfer key: the
// same logical file always maps to the same key, so a lookup by key tells
// whether the file has already been shipped.
type RecordEntry struct {
	Key          string    `json:"filename"`
	Size         int64     `json:"size"`
	LastWritten  int64     `json:"last_written"`
	DownloadTime time.Time `json:"download_time"`
}

// InstanceState is the sync record for one database instance. Files keeps
// insertion order; there is at most one entry per key.
type InstanceState struct {
	Files      []RecordEntry `json:"files"`
	LastUpdate time.Time     `json:"last_update"`
}

// Lookup returns the entry for key, if one exists.
func (s *InstanceState) Lookup(key string) (RecordEntry, bool) {
	for _, e := range s.Files {
		if e.Key == key {
			return e, true
		}
	}
	return RecordEntry{}, false
}

// Upsert replaces the entry with the same key in place, or appends the
// entry if the key is new. Unrelated entries keep their positions.
func (s *InstanceState) Upsert(entry RecordEntry) {
	for i, e := range s.Files {
		if e.Key == entry.Key {
			s.Files[i] = entry
			return
		}
	}
	s.Files = append(s.Files, entry)
}

// RunMarker records when the last fully successful run finished. It is
// process-wide, not per instance; a zero LastUpdate means no prior run is
// known and every eligible file is treated as new.
type RunMarker struct {
	LastUpdate time.Time `json:"last_update"`
}
