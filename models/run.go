package models

import "time"

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// IngestRun records one batch ingestion invocation and its counts, so the
// scheduler and reporting can see what a run did.
type IngestRun struct {
	ID             int64      `json:"id" db:"id"`
	Source         string     `json:"source" db:"source"`
	StartedAt      time.Time  `json:"started_at" db:"started_at"`
	FinishedAt     *time.Time `json:"finished_at" db:"finished_at"`
	Status         RunStatus  `json:"status" db:"status"`
	EventsParsed   int        `json:"events_parsed" db:"events_parsed"`
	EventsInserted int        `json:"events_inserted" db:"events_inserted"`
	EventsSkipped  int        `json:"events_skipped" db:"events_skipped"`
	ErrorsCount    int        `json:"errors_count" db:"errors_count"`
}
