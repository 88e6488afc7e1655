package sync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/chmdznr/aurora-log-sync/internal/storage"
	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

// markerName is the object and file name of the process-wide run marker.
const markerName = "last_run.json"

// RecordStore persists per-instance sync records and the process-wide run
// marker. The object store is the source of truth; a local copy is kept
// as a fallback so a missing or unreachable durable record never blocks a
// sync run.
type RecordStore struct {
	store    storage.ObjectStore
	prefix   string
	localDir string
}

// NewRecordStore builds a store writing record snapshots under prefix in
// the object store and under localDir on disk.
func NewRecordStore(store storage.ObjectStore, prefix, localDir string) *RecordStore {
	return &RecordStore{store: store, prefix: prefix, localDir: localDir}
}

func (r *RecordStore) key(instanceID string) string {
	return path.Join(r.prefix, instanceID+".json")
}

func (r *RecordStore) localPath(name string) string {
	return filepath.Join(r.localDir, name)
}

// Load fetches the sync record for one instance. It never fails: a record
// that cannot be retrieved or parsed degrades to an empty state, which
// only costs redundant re-transfers.
func (r *RecordStore) Load(instanceID string) *models.InstanceState {
	logger := log.WithField("instance", instanceID)

	data, err := r.store.Get(r.key(instanceID))
	switch {
	case err == nil:
		var state models.InstanceState
		if uerr := json.Unmarshal(data, &state); uerr != nil {
			logger.WithError(uerr).Warn("Corrupt sync record in object store, trying local copy")
			break
		}
		return &state
	case errors.Is(err, storage.ErrNoSuchKey):
		// First run for this instance, or the record only made it to
		// the local copy last time.
	default:
		logger.WithError(err).Warn("Failed to fetch sync record from object store, trying local copy")
	}

	return r.loadLocal(instanceID)
}

func (r *RecordStore) loadLocal(instanceID string) *models.InstanceState {
	data, err := os.ReadFile(r.localPath(instanceID + ".json"))
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithField("instance", instanceID).WithError(err).Warn("Failed to read local sync record")
		}
		return &models.InstanceState{}
	}

	var state models.InstanceState
	if err := json.Unmarshal(data, &state); err != nil {
		log.WithField("instance", instanceID).WithError(err).Warn("Corrupt local sync record, starting empty")
		return &models.InstanceState{}
	}
	return &state
}

// Persist writes the full record snapshot, local copy first, then the
// object store. Writing the same state twice produces the same durable
// content. A local write failure is logged and does not fail the persist;
// an object-store write failure does, so the caller can report it.
func (r *RecordStore) Persist(instanceID string, state *models.InstanceState, now time.Time) error {
	state.LastUpdate = now

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode sync record for %s: %w", instanceID, err)
	}

	if err := r.writeLocal(instanceID+".json", data); err != nil {
		log.WithField("instance", instanceID).WithError(err).Warn("Failed to write local sync record")
	}

	if err := r.store.Put(r.key(instanceID), data, "application/json"); err != nil {
		return fmt.Errorf("failed to persist sync record for %s: %w", instanceID, err)
	}
	return nil
}

func (r *RecordStore) writeLocal(name string, data []byte) error {
	if err := os.MkdirAll(r.localDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(r.localPath(name), data, 0o644)
}

// LoadMarker reads the process-wide run marker. Best effort: any failure
// yields a zero marker, which makes every eligible file look new.
func (r *RecordStore) LoadMarker() models.RunMarker {
	var marker models.RunMarker

	data, err := r.store.Get(path.Join(r.prefix, markerName))
	if err != nil {
		if !errors.Is(err, storage.ErrNoSuchKey) {
			log.WithError(err).Warn("Failed to fetch run marker, trying local copy")
		}
		data, err = os.ReadFile(r.localPath(markerName))
		if err != nil {
			return models.RunMarker{}
		}
	}

	if err := json.Unmarshal(data, &marker); err != nil {
		log.WithError(err).Warn("Corrupt run marker, treating all files as new")
		return models.RunMarker{}
	}
	return marker
}

// SaveMarker persists the run marker, local copy first.
func (r *RecordStore) SaveMarker(marker models.RunMarker) error {
	data, err := json.Marshal(marker)
	if err != nil {
		return fmt.Errorf("failed to encode run marker: %w", err)
	}

	if err := r.writeLocal(markerName, data); err != nil {
		log.WithError(err).Warn("Failed to write local run marker")
	}

	if err := r.store.Put(path.Join(r.prefix, markerName), data, "application/json"); err != nil {
		return fmt.Errorf("failed to persist run marker: %w", err)
	}
	return nil
}
