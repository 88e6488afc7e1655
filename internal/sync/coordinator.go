package sync

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/chmdznr/aurora-log-sync/internal/db"
	"github.com/chmdznr/aurora-log-sync/internal/storage"
	"github.com/chmdznr/aurora-log-sync/pkg/models"
	"github.com/chmdznr/aurora-log-sync/pkg/utils"
)

// LogSource is the remote service whose log files are being shipped.
type LogSource interface {
	ListLogFiles(instanceID string) ([]models.LogFile, error)
	FetchLogFile(instanceID, name string) ([]byte, error)
}

// SyncerConfig holds the coordinator's tunables.
type SyncerConfig struct {
	// Prefix is the object key prefix published logs live under.
	Prefix string
	// StagingDir is the local scratch directory downloads land in before
	// publishing.
	StagingDir string
	// CutoffDays bounds how far back dated log files are shipped.
	CutoffDays int
	// ShowProgress renders a per-instance progress bar.
	ShowProgress bool
}

// Syncer drives one batch run: listing, admission, retrieval, publishing
// and record upkeep, one instance at a time, one file at a time.
type Syncer struct {
	source  LogSource
	store   storage.ObjectStore
	records *RecordStore
	history *db.DB
	clock   clockwork.Clock
	cfg     SyncerConfig
}

// NewSyncer wires a coordinator. history may be nil to disable local run
// history.
func NewSyncer(source LogSource, store storage.ObjectStore, records *RecordStore, history *db.DB, clock clockwork.Clock, cfg SyncerConfig) *Syncer {
	if cfg.CutoffDays <= 0 {
		cfg.CutoffDays = 7
	}
	return &Syncer{
		source:  source,
		store:   store,
		records: records,
		history: history,
		clock:   clock,
		cfg:     cfg,
	}
}

// objectKey is the deterministic destination path for one remote file.
// It embeds today's date, so an active file republished within the same
// day overwrites the previous copy instead of accumulating.
func (s *Syncer) objectKey(instanceID, name string) string {
	day := s.clock.Now().Format("2006-01-02")
	return path.Join(s.cfg.Prefix, instanceID, day, path.Base(name))
}

// SyncInstance ships one instance's eligible log files and returns how
// many were published. The sync record is persisted exactly once on every
// return path, so files transferred before a failure stay recorded.
func (s *Syncer) SyncInstance(instanceID string, marker models.RunMarker) (uploaded int, err error) {
	logger := log.WithField("instance", instanceID)
	state := s.records.Load(instanceID)
	logger.Infof("Sync record loaded, %d files previously uploaded", len(state.Files))

	defer func() {
		if perr := s.records.Persist(instanceID, state, s.clock.Now()); perr != nil {
			// Best effort: losing one run's record write only causes
			// redundant re-transfers next run.
			logger.WithError(perr).Warn("Failed to persist sync record")
		}
	}()

	files, err := s.source.ListLogFiles(instanceID)
	if err != nil {
		return 0, fmt.Errorf("failed to list log files: %w", err)
	}

	admitted := Select(files, SelectParams{
		State:      state,
		Marker:     marker,
		CutoffDays: s.cfg.CutoffDays,
		Today:      s.clock.Now(),
		KeyFor: func(name string) string {
			return s.objectKey(instanceID, name)
		},
	})
	logger.Infof("%d of %d log files eligible for transfer", len(admitted), len(files))
	if len(admitted) == 0 {
		return 0, nil
	}

	staging := filepath.Join(s.cfg.StagingDir, instanceID)
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create staging directory %s: %w", staging, err)
	}

	var bar *pb.ProgressBar
	if s.cfg.ShowProgress {
		bar = pb.StartNew(len(admitted))
		defer bar.Finish()
	}

	for _, f := range admitted {
		content, ferr := s.source.FetchLogFile(instanceID, f.Name)
		if ferr != nil {
			// A mid-stream transport failure is instance-scoped: the
			// remaining files are abandoned and the deferred persist
			// keeps what was already transferred.
			return uploaded, fmt.Errorf("failed to fetch %s: %w", f.Name, ferr)
		}

		local := filepath.Join(staging, path.Base(f.Name))
		if werr := os.WriteFile(local, content, 0o644); werr != nil {
			logger.WithError(werr).Errorf("Failed to stage %s, skipping", f.Name)
			continue
		}

		key := s.objectKey(instanceID, f.Name)
		if perr := s.store.PutFile(key, local); perr != nil {
			// Publish failures are file-scoped; earlier entries are
			// unaffected.
			logger.WithError(perr).Errorf("Failed to publish %s, skipping", f.Name)
			continue
		}

		state.Upsert(models.RecordEntry{
			Key:          key,
			Size:         f.Size,
			LastWritten:  f.LastWritten,
			DownloadTime: s.clock.Now(),
		})
		uploaded++

		if rerr := os.Remove(local); rerr != nil {
			logger.WithError(rerr).Warnf("Failed to remove staging copy of %s", f.Name)
		}

		logger.Infof("Published %s (%s)", key, utils.FormatSize(f.Size))
		if bar != nil {
			bar.Increment()
		}
	}

	return uploaded, nil
}

// InstanceResult is the per-instance outcome of a batch run.
type InstanceResult struct {
	Instance string
	Uploaded int
	Err      error
}

// Failed counts the results that ended in error.
func Failed(results []InstanceResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// SyncAll processes every configured instance in order. A failure on one
// instance never prevents the others from running. The run marker is
// advanced only when every instance succeeded, so files skipped by the
// marker on the next run are guaranteed to have been shipped.
func (s *Syncer) SyncAll(instances []string) []InstanceResult {
	marker := s.records.LoadMarker()
	start := s.clock.Now()

	results := make([]InstanceResult, 0, len(instances))
	for _, id := range instances {
		began := s.clock.Now()
		uploaded, err := s.SyncInstance(id, marker)
		if err != nil {
			log.WithField("instance", id).WithError(err).Error("Instance sync failed")
		}
		s.recordHistory(id, began, uploaded, err)
		results = append(results, InstanceResult{Instance: id, Uploaded: uploaded, Err: err})
	}

	if Failed(results) == 0 {
		if err := s.records.SaveMarker(models.RunMarker{LastUpdate: s.clock.Now()}); err != nil {
			log.WithError(err).Warn("Failed to save run marker")
		}
	}

	log.Infof("Batch run finished in %s", utils.FormatDuration(s.clock.Now().Sub(start)))
	return results
}

// recordHistory appends one row of local run history. Best effort; a
// history failure never fails a sync.
func (s *Syncer) recordHistory(instanceID string, began time.Time, uploaded int, runErr error) {
	if s.history == nil {
		return
	}
	rec := models.RunRecord{
		Instance:  instanceID,
		StartedAt: began,
		Duration:  s.clock.Now().Sub(began),
		FilesSent: uploaded,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := s.history.RecordRun(rec); err != nil {
		log.WithField("instance", instanceID).WithError(err).Warn("Failed to record run history")
	}
}
