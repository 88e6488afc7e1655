package models

import "time"

// RunRecord is one row of local run history: the outcome of syncing a
// single instance during one batch invocation.
type RunRecord struct {
	Instance  string
	StartedAt time.Time
	Duration  time.Duration
	FilesSent int
	Error     string
}

// InstanceStats aggregates run history for one instance.
type InstanceStats struct {
	Instance   string
	TotalRuns  int64
	FailedRuns int64
	FilesSent  int64
	LastRunAt  time.Time
	LastError  string
}
