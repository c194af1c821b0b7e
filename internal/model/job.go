package model

import "time"

// JobType distinguishes scrape jobs from analysis jobs.
type JobType string

const (
	JobTypeScrape  JobType = "scrape"
	JobTypeAnalyze JobType = "analyze"
)

// JobStatus represents the lifecycle state of a job.
// Transitions are strictly pending → running → completed|failed; a job
// that reaches a terminal state is never mutated again. Retries are new
// jobs, never re-entry into an existing one.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// Terminal reports whether the status is one of the two end states.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Job is one tracked execution attempt of a scraper or analyzer against
// a source. The module name is captured at launch time so later registry
// changes don't retroactively alter history.
type Job struct {
	ID          string     `json:"id"`
	Type        JobType    `json:"type"`
	SourceID    string     `json:"source_id"`
	Module      string     `json:"module"`
	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Records     int        `json:"records_produced"`
	Error       string     `json:"error,omitempty"`
}
