// Package store provides persistence for sources, captures, derived
// records, and jobs behind a driver-agnostic interface. Two drivers are
// available: SQLite (default, zero setup) and Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/campusdata/ingest-cli/internal/model"
)

// ErrNotFound is returned when a lookup by identifier matches no row.
var ErrNotFound = eris.New("store: not found")

// SourceFilter specifies criteria for listing sources.
type SourceFilter struct {
	ActiveOnly bool   `json:"active_only,omitempty"`
	Module     string `json:"module,omitempty"`
}

// JobFilter specifies criteria for listing jobs.
type JobFilter struct {
	Status   model.JobStatus `json:"status,omitempty"`
	SourceID string          `json:"source_id,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// Store defines the persistence interface consumed by the ingestion core.
//
// Mutation rules the implementations uphold: scraped_data and
// processed_data are append-only (no update methods beyond derived
// scores); job rows are only written by the supervisor driving that job;
// sources are soft-deactivated, never deleted.
type Store interface {
	// Sources
	CreateSource(ctx context.Context, src *model.Source) error
	GetSource(ctx context.Context, id string) (*model.Source, error)
	ListSources(ctx context.Context, filter SourceFilter) ([]model.Source, error)
	UpdateSource(ctx context.Context, src *model.Source) error
	DeactivateSource(ctx context.Context, id string) error

	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) error
	CompleteJob(ctx context.Context, jobID string, records int) error
	FailJob(ctx context.Context, jobID string, errMsg string) error
	GetJob(ctx context.Context, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)

	// Captures
	CreateScrapedData(ctx context.Context, data *model.ScrapedData) error
	GetScrapedData(ctx context.Context, id string) (*model.ScrapedData, error)
	ListScrapedData(ctx context.Context, sourceID string) ([]model.ScrapedData, error)

	// Derived records
	CreateProcessedData(ctx context.Context, data *model.ProcessedData) error
	ListProcessedData(ctx context.Context, scrapedDataID string) ([]model.ProcessedData, error)
	ListAllProcessedData(ctx context.Context, limit int) ([]model.ProcessedData, error)
	SetSentiment(ctx context.Context, processedDataID string, score float64) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
