package ingest

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campusdata/ingest-cli/internal/store"
)

// Engine runs scrapes across all active sources in one manually
// triggered sweep. It is not a scheduler: there are no timers or cron
// semantics, and concurrent scrapes of the same source are not
// deduplicated — a caller wanting at-most-one-run-per-source must
// serialize externally.
type Engine struct {
	st   store.Store
	orch *ScrapeOrchestrator
}

// EngineOpts configures a sweep.
type EngineOpts struct {
	Modules     []string // restrict to sources bound to these modules
	Concurrency int      // max sources scraped in parallel (default 4)
}

// EngineSummary tallies one sweep.
type EngineSummary struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// NewEngine creates a sweep engine.
func NewEngine(st store.Store, reg *Registry) *Engine {
	return &Engine{st: st, orch: NewScrapeOrchestrator(st, reg)}
}

// RunAll scrapes every active source matching opts. Individual source
// failures are isolated: they count toward the summary but never abort
// the sweep. Inactive sources are never picked up.
func (e *Engine) RunAll(ctx context.Context, opts EngineOpts) (*EngineSummary, error) {
	log := zap.L().With(zap.String("component", "ingest.engine"))

	sources, err := e.st.ListSources(ctx, store.SourceFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if len(opts.Modules) > 0 {
		allowed := make(map[string]bool, len(opts.Modules))
		for _, m := range opts.Modules {
			allowed[m] = true
		}
		filtered := sources[:0]
		for _, src := range sources {
			if allowed[src.Module] {
				filtered = append(filtered, src)
			}
		}
		sources = filtered
	}

	if len(sources) == 0 {
		log.Info("no sources selected")
		return &EngineSummary{}, nil
	}
	log.Info("selected sources", zap.Int("count", len(sources)))

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	var completed, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, src := range sources {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			sLog := log.With(zap.String("source", src.Name), zap.String("module", src.Module))

			outcome, err := e.orch.Run(gctx, src.ID)
			switch {
			case errors.Is(err, ErrUnknownModule):
				sLog.Warn("skipping source with unregistered module")
				skipped.Add(1)
				return nil
			case err != nil:
				sLog.Error("scrape run failed", zap.Error(err))
				failed.Add(1)
				return nil // don't abort other sources on individual failure
			case !outcome.Success:
				sLog.Warn("scrape job failed", zap.String("job_id", outcome.JobID), zap.String("error", outcome.Error))
				failed.Add(1)
				return nil
			default:
				sLog.Info("scrape complete", zap.String("job_id", outcome.JobID), zap.Int("items", outcome.Items))
				completed.Add(1)
				return nil
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := &EngineSummary{
		Completed: int(completed.Load()),
		Failed:    int(failed.Load()),
		Skipped:   int(skipped.Load()),
	}
	log.Info("sweep complete",
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
		zap.Int("skipped", summary.Skipped),
	)
	return summary, nil
}
