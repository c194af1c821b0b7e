package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestSource(t *testing.T, st store.Store, module string, active bool) *model.Source {
	t.Helper()
	src := &model.Source{
		Name:   "test " + module,
		URL:    "https://example.test",
		Module: module,
		Active: active,
	}
	require.NoError(t, st.CreateSource(context.Background(), src))
	return src
}

func newTestCapture(t *testing.T, st store.Store, sourceID string) *model.ScrapedData {
	t.Helper()
	data := &model.ScrapedData{SourceID: sourceID, URL: "https://example.test", Raw: []byte("<html></html>")}
	require.NoError(t, st.CreateScrapedData(context.Background(), data))
	return data
}
