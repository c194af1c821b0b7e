package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

// maxErrorLen bounds the error message persisted on a failed job.
const maxErrorLen = 2000

// Supervisor wraps a single scraper or analyzer invocation with job
// lifecycle bookkeeping and fault isolation. It is the one place where
// an unexpected failure from module code (including a panic) is caught
// and converted into a failed job row instead of propagating upward.
// Each invocation's state is local to that call plus one job row; no
// lock is held across the module function, which may block on network
// I/O for arbitrary durations.
type Supervisor struct {
	st store.Store
}

// NewSupervisor creates a supervisor backed by the given store.
func NewSupervisor(st store.Store) *Supervisor {
	return &Supervisor{st: st}
}

// invocation is the normalized view of a module function's return.
type invocation struct {
	success       bool
	items         int
	scrapedDataID string
	errMsg        string
}

// ExecuteScrape runs fn against src under a new scrape job. The source
// must exist and be active; a forced run on an inactive source is
// allowed but logged.
func (s *Supervisor) ExecuteScrape(ctx context.Context, src *model.Source, fn ScrapeFunc, force bool) (*Outcome, error) {
	if src == nil {
		return nil, ErrSourceNotFound
	}
	if !src.Active {
		if !force {
			return nil, eris.Wrapf(ErrSourceInactive, "source %s (%s)", src.ID, src.Name)
		}
		zap.L().Warn("forcing scrape of inactive source",
			zap.String("source_id", src.ID),
			zap.String("source", src.Name),
		)
	}

	job := &model.Job{Type: model.JobTypeScrape, SourceID: src.ID, Module: src.Module}
	if err := s.st.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrapf(err, "supervisor: create scrape job for source %s", src.ID)
	}

	return s.run(ctx, job, func(ctx context.Context) (invocation, error) {
		res, err := fn(ctx, s.st, src.ID)
		if err != nil {
			return invocation{}, err
		}
		if res == nil {
			return invocation{}, eris.New("module returned no result")
		}
		return invocation{
			success:       res.Success,
			items:         res.Items,
			scrapedDataID: res.ScrapedDataID,
			errMsg:        res.Error,
		}, nil
	})
}

// ExecuteAnalyze runs fn against the capture under a new analysis job.
// The source reference is only used for job bookkeeping; analysis does
// not require the source to still be active.
func (s *Supervisor) ExecuteAnalyze(ctx context.Context, src *model.Source, scrapedDataID string, fn AnalyzeFunc) (*Outcome, error) {
	if src == nil {
		return nil, ErrSourceNotFound
	}

	job := &model.Job{Type: model.JobTypeAnalyze, SourceID: src.ID, Module: src.Module}
	if err := s.st.CreateJob(ctx, job); err != nil {
		return nil, eris.Wrapf(err, "supervisor: create analysis job for capture %s", scrapedDataID)
	}

	return s.run(ctx, job, func(ctx context.Context) (invocation, error) {
		res, err := fn(ctx, s.st, scrapedDataID)
		if err != nil {
			return invocation{}, err
		}
		if res == nil {
			return invocation{}, eris.New("module returned no result")
		}
		return invocation{success: res.Success, items: res.Items, errMsg: res.Error}, nil
	})
}

// run drives the job through running into exactly one terminal state.
// The job row is never left in running: every exit path, including
// panics inside the module function and context cancellation, settles it.
func (s *Supervisor) run(ctx context.Context, job *model.Job, invoke func(context.Context) (invocation, error)) (*Outcome, error) {
	log := zap.L().With(
		zap.String("component", "ingest.supervisor"),
		zap.String("job_id", job.ID),
		zap.String("module", job.Module),
		zap.String("job_type", string(job.Type)),
	)

	// Bookkeeping writes must survive cancellation of the invocation
	// context, or a cancelled run would strand the job in running.
	bctx := context.WithoutCancel(ctx)

	if err := s.st.MarkJobRunning(bctx, job.ID, time.Now().UTC()); err != nil {
		return nil, eris.Wrapf(err, "supervisor: mark job %s running", job.ID)
	}

	settled := false
	defer func() {
		if !settled {
			s.fail(bctx, log, job.ID, "aborted before reaching a terminal state")
		}
	}()

	start := time.Now()
	res, err := invokeGuarded(ctx, invoke)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		msg := err.Error()
		if ctx.Err() != nil {
			msg = "cancelled: " + ctx.Err().Error()
		}
		msg = truncateError(msg)
		log.Error("job failed", zap.String("error", msg), zap.Duration("elapsed", elapsed))
		s.fail(bctx, log, job.ID, msg)
		settled = true
		return &Outcome{Success: false, JobID: job.ID, Error: msg}, nil

	case !res.success:
		msg := res.errMsg
		if msg == "" {
			msg = "module reported failure"
		}
		msg = truncateError(msg)
		log.Warn("job reported failure", zap.String("error", msg), zap.Duration("elapsed", elapsed))
		s.fail(bctx, log, job.ID, msg)
		settled = true
		return &Outcome{
			Success:       false,
			JobID:         job.ID,
			Items:         res.items,
			ScrapedDataID: res.scrapedDataID,
			Error:         msg,
		}, nil

	default:
		if err := s.st.CompleteJob(bctx, job.ID, res.items); err != nil {
			log.Error("failed to record job completion", zap.Error(err))
		}
		settled = true
		log.Info("job complete", zap.Int("items", res.items), zap.Duration("elapsed", elapsed))
		return &Outcome{
			Success:       true,
			JobID:         job.ID,
			Items:         res.items,
			ScrapedDataID: res.scrapedDataID,
		}, nil
	}
}

func (s *Supervisor) fail(ctx context.Context, log *zap.Logger, jobID, msg string) {
	if err := s.st.FailJob(ctx, jobID, msg); err != nil {
		log.Error("failed to record job failure", zap.Error(err))
	}
}

// invokeGuarded calls invoke with a panic boundary so a defective module
// cannot crash the orchestrator process.
func invokeGuarded(ctx context.Context, invoke func(context.Context) (invocation, error)) (res invocation, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("module panicked: %v", r)
		}
	}()
	return invoke(ctx)
}

func truncateError(msg string) string {
	if len(msg) > maxErrorLen {
		return msg[:maxErrorLen]
	}
	return msg
}
