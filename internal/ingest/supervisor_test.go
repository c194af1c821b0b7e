package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

func TestSupervisor_ExecuteScrape_Success(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		return &ScrapeResult{Success: true, Items: 5, ScrapedDataID: "cap-1"}, nil
	}

	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 5, outcome.Items)
	assert.Equal(t, "cap-1", outcome.ScrapedDataID)

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
	assert.Equal(t, model.JobTypeScrape, job.Type)
	assert.Equal(t, "news", job.Module)
	assert.Equal(t, 5, job.Records)
	assert.NotNil(t, job.StartedAt)
	assert.NotNil(t, job.CompletedAt)
	assert.Empty(t, job.Error)
}

func TestSupervisor_ExecuteScrape_ReportedFailure(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		return &ScrapeResult{Success: false, Error: "status 503 from upstream"}, nil
	}

	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Equal(t, "status 503 from upstream", outcome.Error)

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.Equal(t, "status 503 from upstream", job.Error)
	assert.NotNil(t, job.CompletedAt)
}

func TestSupervisor_ExecuteScrape_FunctionError(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		return nil, eris.New("nil pointer somewhere deep in parsing")
	}

	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "nil pointer")

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.NotEmpty(t, job.Error)
}

func TestSupervisor_ExecuteScrape_Panic(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		panic("module blew up")
	}

	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "module blew up")

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
}

func TestSupervisor_ExecuteScrape_Cancellation(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	ctx, cancel := context.WithCancel(context.Background())
	fn := func(ctx context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}

	outcome, err := sup.ExecuteScrape(ctx, src, fn, false)
	require.NoError(t, err)
	assert.False(t, outcome.Success)
	assert.Contains(t, outcome.Error, "cancelled")

	// the job must not be stranded in running
	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobStatusFailed, job.Status)
	assert.NotNil(t, job.CompletedAt)
}

func TestSupervisor_ExecuteScrape_InactiveSource(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", false)
	sup := NewSupervisor(st)

	called := false
	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		called = true
		return &ScrapeResult{Success: true}, nil
	}

	_, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.ErrorIs(t, err, ErrSourceInactive)
	assert.False(t, called)

	// no job row pollutes history on a refused invocation
	jobs, err := st.ListJobs(context.Background(), store.JobFilter{SourceID: src.ID})
	require.NoError(t, err)
	assert.Empty(t, jobs)

	// a forced run still goes through, creating a job
	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, true)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.True(t, called)
}

func TestSupervisor_ErrorMessageTruncated(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	sup := NewSupervisor(st)

	long := strings.Repeat("x", maxErrorLen*3)
	fn := func(_ context.Context, _ store.Store, _ string) (*ScrapeResult, error) {
		return &ScrapeResult{Success: false, Error: long}, nil
	}

	outcome, err := sup.ExecuteScrape(context.Background(), src, fn, false)
	require.NoError(t, err)
	assert.Len(t, outcome.Error, maxErrorLen)

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Len(t, job.Error, maxErrorLen)
}

func TestSupervisor_ExecuteAnalyze_Success(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", true)
	cap := newTestCapture(t, st, src.ID)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, id string) (*AnalyzeResult, error) {
		assert.Equal(t, cap.ID, id)
		return &AnalyzeResult{Success: true, Items: 3}, nil
	}

	outcome, err := sup.ExecuteAnalyze(context.Background(), src, cap.ID, fn)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
	assert.Equal(t, 3, outcome.Items)

	job, err := st.GetJob(context.Background(), outcome.JobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobTypeAnalyze, job.Type)
	assert.Equal(t, model.JobStatusCompleted, job.Status)
}

func TestSupervisor_ExecuteAnalyze_InactiveSourceAllowed(t *testing.T) {
	st := newTestStore(t)
	src := newTestSource(t, st, "news", false)
	cap := newTestCapture(t, st, src.ID)
	sup := NewSupervisor(st)

	fn := func(_ context.Context, _ store.Store, _ string) (*AnalyzeResult, error) {
		return &AnalyzeResult{Success: true, Items: 1}, nil
	}

	outcome, err := sup.ExecuteAnalyze(context.Background(), src, cap.ID, fn)
	require.NoError(t, err)
	assert.True(t, outcome.Success)
}
