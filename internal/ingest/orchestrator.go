package ingest

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/campusdata/ingest-cli/internal/store"
)

// ScrapeOrchestrator is the caller-facing entry point for scrape runs:
// it resolves a source to its module, the module to its scraper, and
// delegates execution to the supervisor. Orchestrators hold no mutable
// state beyond the store, so concurrent calls from request handlers are
// safe.
type ScrapeOrchestrator struct {
	st  store.Store
	reg *Registry
	sup *Supervisor
}

// NewScrapeOrchestrator creates a scrape orchestrator.
func NewScrapeOrchestrator(st store.Store, reg *Registry) *ScrapeOrchestrator {
	return &ScrapeOrchestrator{st: st, reg: reg, sup: NewSupervisor(st)}
}

// Run scrapes the source and returns the normalized outcome.
// Configuration errors (unknown source, unknown module, inactive
// source) are returned as a Go error with no job created; execution
// failures come back as a failed Outcome with a job to inspect.
func (o *ScrapeOrchestrator) Run(ctx context.Context, sourceID string) (*Outcome, error) {
	return o.run(ctx, sourceID, false)
}

// RunForced scrapes the source even if it is deactivated. Used by
// manual operator invocations only; automatic runs never force.
func (o *ScrapeOrchestrator) RunForced(ctx context.Context, sourceID string) (*Outcome, error) {
	return o.run(ctx, sourceID, true)
}

func (o *ScrapeOrchestrator) run(ctx context.Context, sourceID string, force bool) (*Outcome, error) {
	src, err := o.st.GetSource(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrSourceNotFound, "%s", sourceID)
		}
		return nil, eris.Wrapf(err, "orchestrator: load source %s", sourceID)
	}

	fn, err := o.reg.ResolveScraper(src.Module)
	if err != nil {
		return nil, err
	}

	return o.sup.ExecuteScrape(ctx, src, fn, force)
}

// AnalysisOrchestrator is the caller-facing entry point for analysis
// runs. It recovers the module name from the capture's owning source,
// resolves the analyzer, and delegates to the supervisor.
type AnalysisOrchestrator struct {
	st  store.Store
	reg *Registry
	sup *Supervisor
}

// NewAnalysisOrchestrator creates an analysis orchestrator.
func NewAnalysisOrchestrator(st store.Store, reg *Registry) *AnalysisOrchestrator {
	return &AnalysisOrchestrator{st: st, reg: reg, sup: NewSupervisor(st)}
}

// Run analyzes the capture and returns the normalized outcome. A module
// without an analyzer yields ErrNoAnalyzer before any job is created —
// callers treat that as a benign no-op, not a hard failure.
func (o *AnalysisOrchestrator) Run(ctx context.Context, scrapedDataID string) (*Outcome, error) {
	data, err := o.st.GetScrapedData(ctx, scrapedDataID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, eris.Wrapf(ErrScrapedDataNotFound, "%s", scrapedDataID)
		}
		return nil, eris.Wrapf(err, "orchestrator: load scraped data %s", scrapedDataID)
	}

	src, err := o.st.GetSource(ctx, data.SourceID)
	if err != nil {
		// A capture without its owning source is a referential integrity
		// violation the content model should make impossible.
		return nil, eris.Wrapf(err, "orchestrator: capture %s references missing source %s", scrapedDataID, data.SourceID)
	}

	fn, err := o.reg.ResolveAnalyzer(src.Module)
	if err != nil {
		return nil, err
	}

	return o.sup.ExecuteAnalyze(ctx, src, scrapedDataID, fn)
}
