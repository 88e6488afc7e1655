package sync

import (
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmdznr/aurora-log-sync/internal/storage"
	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

// fakeStore is an in-memory ObjectStore for engine tests.
type fakeStore struct {
	objects  map[string][]byte
	puts     map[string]int
	getErr   error
	putErr   error
	failKeys map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects: make(map[string][]byte),
		puts:    make(map[string]int),
	}
}

func (f *fakeStore) Get(key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, storage.ErrNoSuchKey
	}
	return data, nil
}

func (f *fakeStore) Put(key string, data []byte, _ string) error {
	if f.putErr != nil || f.failKeys[key] {
		if f.putErr != nil {
			return f.putErr
		}
		return errors.New("forced put failure")
	}
	f.objects[key] = append([]byte(nil), data...)
	f.puts[key]++
	return nil
}

func (f *fakeStore) PutFile(key, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return f.Put(key, data, "text/plain")
}

func (f *fakeStore) Head(key string) (bool, error) {
	_, ok := f.objects[key]
	return ok, nil
}

func TestLoadEmptyWhenNothingExists(t *testing.T) {
	r := NewRecordStore(newFakeStore(), "records", t.TempDir())

	state := r.Load("aurora-1")
	require.NotNil(t, state)
	assert.Empty(t, state.Files)
}

func TestLoadFromObjectStore(t *testing.T) {
	store := newFakeStore()
	want := models.InstanceState{Files: []models.RecordEntry{
		{Key: "aurora-logs/aurora-1/2024-03-09/error.log", Size: 42, LastWritten: 100},
	}}
	data, err := json.Marshal(want)
	require.NoError(t, err)
	store.objects["records/aurora-1.json"] = data

	state := NewRecordStore(store, "records", t.TempDir()).Load("aurora-1")
	require.Len(t, state.Files, 1)
	assert.Equal(t, want.Files[0], state.Files[0])
}

func TestLoadFallsBackToLocalCopy(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	r := NewRecordStore(store, "records", dir)

	state := &models.InstanceState{}
	state.Upsert(models.RecordEntry{Key: "k1", Size: 1, LastWritten: 5})
	require.NoError(t, r.Persist("aurora-1", state, time.Now()))

	// Object store becomes unreadable; the local snapshot still serves.
	store.getErr = errors.New("connection refused")
	loaded := r.Load("aurora-1")
	require.Len(t, loaded.Files, 1)
	assert.Equal(t, "k1", loaded.Files[0].Key)
}

func TestLoadCorruptRecordDegradesToEmpty(t *testing.T) {
	store := newFakeStore()
	store.objects["records/aurora-1.json"] = []byte("{not json")

	state := NewRecordStore(store, "records", t.TempDir()).Load("aurora-1")
	require.NotNil(t, state)
	assert.Empty(t, state.Files, "a corrupt record must not block a sync run")
}

func TestPersistIsIdempotent(t *testing.T) {
	store := newFakeStore()
	r := NewRecordStore(store, "records", t.TempDir())

	state := &models.InstanceState{}
	state.Upsert(models.RecordEntry{Key: "k1", Size: 1, LastWritten: 5})

	now := time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC)
	require.NoError(t, r.Persist("aurora-1", state, now))
	first := append([]byte(nil), store.objects["records/aurora-1.json"]...)

	require.NoError(t, r.Persist("aurora-1", state, now))
	assert.Equal(t, first, store.objects["records/aurora-1.json"])
}

func TestPersistWireFormat(t *testing.T) {
	store := newFakeStore()
	r := NewRecordStore(store, "records", t.TempDir())

	state := &models.InstanceState{}
	state.Upsert(models.RecordEntry{
		Key:          "aurora-logs/aurora-1/2024-03-10/error.log",
		Size:         2048,
		LastWritten:  1710064800000,
		DownloadTime: time.Date(2024, 3, 10, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, r.Persist("aurora-1", state, time.Date(2024, 3, 10, 10, 1, 0, 0, time.UTC)))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(store.objects["records/aurora-1.json"], &decoded))
	assert.Equal(t, "2024-03-10T10:01:00Z", decoded["last_update"])

	files, ok := decoded["files"].([]interface{})
	require.True(t, ok)
	require.Len(t, files, 1)
	entry := files[0].(map[string]interface{})
	assert.Equal(t, "aurora-logs/aurora-1/2024-03-10/error.log", entry["filename"])
	assert.Equal(t, float64(2048), entry["size"])
	assert.Equal(t, float64(1710064800000), entry["last_written"])
	assert.Equal(t, "2024-03-10T10:00:00Z", entry["download_time"])
}

func TestUpsertReplacesInPlace(t *testing.T) {
	state := &models.InstanceState{}
	state.Upsert(models.RecordEntry{Key: "a", LastWritten: 1})
	state.Upsert(models.RecordEntry{Key: "b", LastWritten: 2})
	state.Upsert(models.RecordEntry{Key: "a", LastWritten: 9})

	require.Len(t, state.Files, 2)
	assert.Equal(t, "a", state.Files[0].Key)
	assert.Equal(t, int64(9), state.Files[0].LastWritten)
	assert.Equal(t, "b", state.Files[1].Key)
}

func TestMarkerRoundTrip(t *testing.T) {
	r := NewRecordStore(newFakeStore(), "records", t.TempDir())

	assert.True(t, r.LoadMarker().LastUpdate.IsZero(), "missing marker means no prior run")

	at := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveMarker(models.RunMarker{LastUpdate: at}))
	assert.True(t, r.LoadMarker().LastUpdate.Equal(at))
}

func TestMarkerLocalFallback(t *testing.T) {
	dir := t.TempDir()
	store := newFakeStore()
	r := NewRecordStore(store, "records", dir)

	at := time.Date(2024, 3, 10, 11, 0, 0, 0, time.UTC)
	require.NoError(t, r.SaveMarker(models.RunMarker{LastUpdate: at}))

	store.getErr = errors.New("connection refused")
	assert.True(t, r.LoadMarker().LastUpdate.Equal(at))
}
