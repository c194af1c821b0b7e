package ingest

import (
	"context"

	"github.com/campusdata/ingest-cli/internal/store"
)

// ScrapeFunc is the contract every module's scraper must satisfy. It is
// given the data store and the identifier of the source to scrape.
// Expected, source-specific failures (HTTP errors, missing markup) are
// reported as an unsuccessful result, not a Go error; a returned error
// means the function itself broke and the supervisor records the job as
// failed.
type ScrapeFunc func(ctx context.Context, st store.Store, sourceID string) (*ScrapeResult, error)

// AnalyzeFunc is the contract for a module's optional analyzer. It is
// given the identifier of the capture whose derived records it should
// produce or score. Failure semantics match ScrapeFunc.
type AnalyzeFunc func(ctx context.Context, st store.Store, scrapedDataID string) (*AnalyzeResult, error)

// ScrapeResult reports the outcome of one scraper invocation.
type ScrapeResult struct {
	Success       bool
	Items         int
	ScrapedDataID string
	Error         string
}

// AnalyzeResult reports the outcome of one analyzer invocation.
type AnalyzeResult struct {
	Success bool
	Items   int
	Error   string
}

// Outcome is the single normalized shape every orchestrator run returns
// to calling layers. On execution failure Success is false, Error is
// non-empty, and JobID points at the failed job for inspection.
type Outcome struct {
	Success       bool   `json:"success"`
	JobID         string `json:"job_id"`
	Items         int    `json:"items_produced"`
	ScrapedDataID string `json:"scraped_data_id,omitempty"`
	Error         string `json:"error,omitempty"`
}
