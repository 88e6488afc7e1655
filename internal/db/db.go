package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/chmdznr/aurora-log-sync/pkg/models"
)

// DB holds local run history. It is an operator convenience for the
// status command; the sync engine itself only depends on the object-store
// records.
type DB struct {
	*sql.DB
}

// New opens (and if needed creates) the history database at path.
func New(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.initialize(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) initialize() error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			instance TEXT NOT NULL,
			started_at DATETIME NOT NULL,
			duration_ms INTEGER NOT NULL,
			files_sent INTEGER NOT NULL,
			error TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_runs_instance ON runs(instance, started_at);
		PRAGMA journal_mode=WAL;
		PRAGMA synchronous=NORMAL;
	`)
	return err
}

// RecordRun appends one run outcome.
func (db *DB) RecordRun(rec models.RunRecord) error {
	_, err := db.Exec(`
		INSERT INTO runs (instance, started_at, duration_ms, files_sent, error)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Instance,
		rec.StartedAt.UTC().Format(time.RFC3339),
		rec.Duration.Milliseconds(),
		rec.FilesSent,
		rec.Error,
	)
	return err
}

// GetStats aggregates run history per instance, most recently run first.
func (db *DB) GetStats() ([]models.InstanceStats, error) {
	rows, err := db.Query(`
		SELECT
			instance,
			COUNT(*) AS total_runs,
			COUNT(CASE WHEN error != '' THEN 1 END) AS failed_runs,
			COALESCE(SUM(files_sent), 0) AS files_sent,
			MAX(started_at) AS last_run_at
		FROM runs
		GROUP BY instance
		ORDER BY last_run_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate run history: %w", err)
	}
	defer rows.Close()

	var stats []models.InstanceStats
	for rows.Next() {
		var s models.InstanceStats
		var lastRun string
		if err := rows.Scan(&s.Instance, &s.TotalRuns, &s.FailedRuns, &s.FilesSent, &lastRun); err != nil {
			return nil, err
		}
		s.LastRunAt, _ = time.Parse(time.RFC3339, lastRun)
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		if err := db.QueryRow(`
			SELECT error FROM runs
			WHERE instance = ?
			ORDER BY started_at DESC, id DESC LIMIT 1
		`, stats[i].Instance).Scan(&stats[i].LastError); err != nil && err != sql.ErrNoRows {
			return nil, err
		}
	}
	return stats, nil
}

// RecentRuns returns the latest limit runs across all instances.
func (db *DB) RecentRuns(limit int) ([]models.RunRecord, error) {
	rows, err := db.Query(`
		SELECT instance, started_at, duration_ms, files_sent, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	var recs []models.RunRecord
	for rows.Next() {
		var rec models.RunRecord
		var started string
		var durMS int64
		if err := rows.Scan(&rec.Instance, &started, &durMS, &rec.FilesSent, &rec.Error); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.Duration = time.Duration(durMS) * time.Millisecond
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
