package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/campusdata/ingest-cli/internal/model"
)

func TestFormatJobsList(t *testing.T) {
	created := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	started := created.Add(time.Second)
	completed := started.Add(3 * time.Second)

	jobs := []model.Job{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			Type:        model.JobTypeScrape,
			Module:      "hackernews",
			Status:      model.JobStatusCompleted,
			Records:     30,
			CreatedAt:   created,
			StartedAt:   &started,
			CompletedAt: &completed,
		},
		{
			ID:        "def67890-0000-0000-0000-000000000000",
			Type:      model.JobTypeAnalyze,
			Module:    "hackernews",
			Status:    model.JobStatusPending,
			CreatedAt: created,
		},
	}

	var buf bytes.Buffer
	formatJobsList(&buf, jobs)
	out := buf.String()

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "scrape")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "3s")
	assert.Contains(t, out, "2026-08-30 10:00")
}

func TestJobDuration(t *testing.T) {
	started := time.Now()
	completed := started.Add(90 * time.Second)

	assert.Equal(t, "1m30s", jobDuration(model.Job{StartedAt: &started, CompletedAt: &completed}))
	assert.Equal(t, "", jobDuration(model.Job{StartedAt: &started}))
	assert.Equal(t, "", jobDuration(model.Job{}))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
