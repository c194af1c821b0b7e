package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdata/ingest-cli/internal/model"
)

func newTestSQLite(t *testing.T) Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func makeSource(t *testing.T, s Store, name, module string) *model.Source {
	t.Helper()
	src := &model.Source{
		Name:   name,
		URL:    "https://" + name + ".test",
		Module: module,
		Active: true,
	}
	require.NoError(t, s.CreateSource(context.Background(), src))
	return src
}

func storeTestSuite(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("CreateAndGetSource", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		src := &model.Source{
			Name:   "Hacker News",
			URL:    "https://news.ycombinator.com",
			Module: "hackernews",
			Active: true,
			Config: map[string]string{"max_items": "30"},
		}
		require.NoError(t, s.CreateSource(ctx, src))
		assert.NotEmpty(t, src.ID)

		got, err := s.GetSource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, "Hacker News", got.Name)
		assert.Equal(t, "hackernews", got.Module)
		assert.True(t, got.Active)
		assert.Equal(t, "30", got.Config["max_items"])
		assert.False(t, got.CreatedAt.IsZero())
	})

	t.Run("CreateSource_Invalid", func(t *testing.T) {
		s := newStore(t)
		err := s.CreateSource(context.Background(), &model.Source{Name: "no url"})
		require.Error(t, err)
	})

	t.Run("GetSource_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetSource(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListSources", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		makeSource(t, s, "hn", "hackernews")
		courses := makeSource(t, s, "openhpi", "openhpi")
		require.NoError(t, s.DeactivateSource(ctx, courses.ID))

		all, err := s.ListSources(ctx, SourceFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		active, err := s.ListSources(ctx, SourceFilter{ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, "hn", active[0].Name)

		byModule, err := s.ListSources(ctx, SourceFilter{Module: "openhpi"})
		require.NoError(t, err)
		require.Len(t, byModule, 1)
		assert.Equal(t, "openhpi", byModule[0].Name)
	})

	t.Run("UpdateSource", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		src := makeSource(t, s, "hn", "hackernews")
		src.Name = "HN Front Page"
		src.Config = map[string]string{"max_items": "10"}
		require.NoError(t, s.UpdateSource(ctx, src))

		got, err := s.GetSource(ctx, src.ID)
		require.NoError(t, err)
		assert.Equal(t, "HN Front Page", got.Name)
		assert.Equal(t, "10", got.Config["max_items"])
	})

	t.Run("DeactivateSource_NotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.DeactivateSource(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("JobLifecycle", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src := makeSource(t, s, "hn", "hackernews")

		job := &model.Job{Type: model.JobTypeScrape, SourceID: src.ID, Module: src.Module}
		require.NoError(t, s.CreateJob(ctx, job))
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, model.JobStatusPending, job.Status)

		require.NoError(t, s.MarkJobRunning(ctx, job.ID, job.CreatedAt))
		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
		assert.NotNil(t, got.StartedAt)
		assert.Nil(t, got.CompletedAt)

		require.NoError(t, s.CompleteJob(ctx, job.ID, 42))
		got, err = s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusCompleted, got.Status)
		assert.Equal(t, 42, got.Records)
		assert.NotNil(t, got.CompletedAt)
		assert.Empty(t, got.Error)
	})

	t.Run("FailJob", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src := makeSource(t, s, "hn", "hackernews")

		job := &model.Job{Type: model.JobTypeScrape, SourceID: src.ID, Module: src.Module}
		require.NoError(t, s.CreateJob(ctx, job))
		require.NoError(t, s.FailJob(ctx, job.ID, "connection refused"))

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusFailed, got.Status)
		assert.Equal(t, "connection refused", got.Error)
		assert.NotNil(t, got.CompletedAt)
	})

	t.Run("MarkJobRunning_NotFound", func(t *testing.T) {
		s := newStore(t)
		src := makeSource(t, s, "hn", "hackernews")
		job := &model.Job{Type: model.JobTypeScrape, SourceID: src.ID, Module: src.Module}
		require.NoError(t, s.CreateJob(context.Background(), job))

		err := s.MarkJobRunning(context.Background(), "nonexistent", job.CreatedAt)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListJobs", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src1 := makeSource(t, s, "hn", "hackernews")
		src2 := makeSource(t, s, "openhpi", "openhpi")

		j1 := &model.Job{Type: model.JobTypeScrape, SourceID: src1.ID, Module: src1.Module}
		require.NoError(t, s.CreateJob(ctx, j1))
		j2 := &model.Job{Type: model.JobTypeAnalyze, SourceID: src2.ID, Module: src2.Module}
		require.NoError(t, s.CreateJob(ctx, j2))
		require.NoError(t, s.CompleteJob(ctx, j2.ID, 3))

		all, err := s.ListJobs(ctx, JobFilter{})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		completed, err := s.ListJobs(ctx, JobFilter{Status: model.JobStatusCompleted})
		require.NoError(t, err)
		require.Len(t, completed, 1)
		assert.Equal(t, j2.ID, completed[0].ID)

		bySource, err := s.ListJobs(ctx, JobFilter{SourceID: src1.ID})
		require.NoError(t, err)
		require.Len(t, bySource, 1)
		assert.Equal(t, j1.ID, bySource[0].ID)

		limited, err := s.ListJobs(ctx, JobFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, limited, 1)
	})

	t.Run("ScrapedData", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src := makeSource(t, s, "hn", "hackernews")

		code := 200
		data := &model.ScrapedData{
			SourceID:   src.ID,
			URL:        src.URL,
			Raw:        []byte("<html>front page</html>"),
			StatusCode: &code,
		}
		require.NoError(t, s.CreateScrapedData(ctx, data))
		assert.NotEmpty(t, data.ID)

		got, err := s.GetScrapedData(ctx, data.ID)
		require.NoError(t, err)
		assert.Equal(t, src.ID, got.SourceID)
		assert.Equal(t, []byte("<html>front page</html>"), got.Raw)
		require.NotNil(t, got.StatusCode)
		assert.Equal(t, 200, *got.StatusCode)

		second := &model.ScrapedData{SourceID: src.ID, URL: src.URL, Raw: []byte("later")}
		require.NoError(t, s.CreateScrapedData(ctx, second))

		list, err := s.ListScrapedData(ctx, src.ID)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("GetScrapedData_NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetScrapedData(context.Background(), "nonexistent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("ProcessedData", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src := makeSource(t, s, "hn", "hackernews")

		capture := &model.ScrapedData{SourceID: src.ID, URL: src.URL, Raw: []byte("x")}
		require.NoError(t, s.CreateScrapedData(ctx, capture))

		rec := &model.ProcessedData{
			ScrapedDataID: capture.ID,
			Title:         "Show HN: something",
			Content:       "https://example.com/story",
			Module:        "hackernews",
			Metadata:      map[string]any{"points": float64(120), "author": "pg"},
		}
		require.NoError(t, s.CreateProcessedData(ctx, rec))
		assert.NotEmpty(t, rec.ID)

		list, err := s.ListProcessedData(ctx, capture.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Show HN: something", list[0].Title)
		assert.Equal(t, float64(120), list[0].Metadata["points"])
		assert.Nil(t, list[0].Sentiment)

		require.NoError(t, s.SetSentiment(ctx, rec.ID, 0.75))
		list, err = s.ListProcessedData(ctx, capture.ID)
		require.NoError(t, err)
		require.NotNil(t, list[0].Sentiment)
		assert.InDelta(t, 0.75, *list[0].Sentiment, 0.001)
	})

	t.Run("ListAllProcessedData", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		src := makeSource(t, s, "hn", "hackernews")

		capture := &model.ScrapedData{SourceID: src.ID, URL: src.URL, Raw: []byte("x")}
		require.NoError(t, s.CreateScrapedData(ctx, capture))
		for i := 0; i < 3; i++ {
			rec := &model.ProcessedData{ScrapedDataID: capture.ID, Title: "t", Module: "hackernews"}
			require.NoError(t, s.CreateProcessedData(ctx, rec))
		}

		all, err := s.ListAllProcessedData(ctx, 0)
		require.NoError(t, err)
		assert.Len(t, all, 3)

		limited, err := s.ListAllProcessedData(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("SetSentiment_NotFound", func(t *testing.T) {
		s := newStore(t)
		err := s.SetSentiment(context.Background(), "nonexistent", 0.5)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSQLiteStore(t *testing.T) {
	storeTestSuite(t, newTestSQLite)
}
