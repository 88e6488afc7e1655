package sync

import (
	"time"

	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

// SelectParams carries the prior-run context the admission rules consult.
type SelectParams struct {
	// State is the instance's sync record loaded at run start.
	State *models.InstanceState
	// Marker is the process-wide record of the last fully successful run.
	Marker models.RunMarker
	// CutoffDays bounds how far back dated files are considered.
	CutoffDays int
	// Today anchors both the cutoff window and active classification.
	Today time.Time
	// KeyFor maps a remote file name to its transfer key (the object key
	// it would be published under).
	KeyFor func(name string) string
}

// Select decides, in listing order, which files are transferred this run.
// Inputs are never mutated.
//
// A file is rejected when any of these hold:
//   - its embedded date is older than Today minus CutoffDays (the
//     boundary day itself is still admitted);
//   - the run marker is set, the file has not been written since, and the
//     file is rotated (an active file keeps growing without necessarily
//     changing identity, so it is never pruned on this basis);
//   - the sync record already holds an entry for its transfer key with
//     the same LastWritten and the file is rotated. An active file is
//     always re-admitted so its latest content overwrites the previous
//     copy.
func Select(files []models.LogFile, p SelectParams) []models.LogFile {
	cutoff := midnight(p.Today).AddDate(0, 0, -p.CutoffDays)

	var admitted []models.LogFile
	for _, f := range files {
		if d, ok := LogDate(f.Name); ok && d.Before(cutoff) {
			continue
		}

		active := IsActive(f.Name, p.Today)

		if !active && !p.Marker.LastUpdate.IsZero() &&
			f.LastWritten <= p.Marker.LastUpdate.UnixMilli() {
			continue
		}

		if !active && p.State != nil {
			if e, ok := p.State.Lookup(p.KeyFor(f.Name)); ok && e.LastWritten == f.LastWritten {
				continue
			}
		}

		admitted = append(admitted, f)
	}
	return admitted
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
