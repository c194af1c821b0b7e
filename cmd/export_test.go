package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusdata/ingest-cli/internal/model"
)

func TestBuildWorkbook(t *testing.T) {
	score := 0.8
	processed := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	records := []model.ProcessedData{
		{ID: "r1", Title: "Story one", Content: "Points: 120", Module: "hackernews", Sentiment: &score, ProcessedAt: processed},
		{ID: "r2", Title: "Story two", Content: "Points: 8", Module: "hackernews", ProcessedAt: processed},
		{ID: "r3", Title: "Python Basics", Content: "Learn Python.", Module: "openhpi", ProcessedAt: processed},
	}

	f, err := buildWorkbook(records)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	// sheets are sorted by module name
	assert.Equal(t, "hackernews", f.Sheets[0].Name)
	assert.Equal(t, "openhpi", f.Sheets[1].Name)

	hn := f.Sheets[0]
	require.Len(t, hn.Rows, 3) // header + 2 records
	assert.Equal(t, "ID", hn.Rows[0].Cells[0].String())
	assert.Equal(t, "Story one", hn.Rows[1].Cells[1].String())

	got, err := hn.Rows[1].Cells[3].Float()
	require.NoError(t, err)
	assert.InDelta(t, 0.8, got, 0.001)
	assert.Equal(t, "", hn.Rows[2].Cells[3].String()) // unscored record

	assert.Equal(t, "2026-08-30 12:00:00", hn.Rows[1].Cells[4].String())
}
