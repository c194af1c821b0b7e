package ingest

import "github.com/rotisserie/eris"

// Configuration errors. These are surfaced before any job row is
// created and are never retried automatically.
var (
	// ErrUnknownModule means no module is registered under the name.
	ErrUnknownModule = eris.New("ingest: unknown module")

	// ErrDuplicateModule means a Register call would shadow an existing
	// registration. Registration is deliberately not idempotent.
	ErrDuplicateModule = eris.New("ingest: module already registered")

	// ErrNoAnalyzer means the module exists but registered no analyzer.
	// Callers treat this as a benign no-op, distinct from ErrUnknownModule.
	ErrNoAnalyzer = eris.New("ingest: module has no analyzer")

	// ErrSourceNotFound means the target source identifier resolves to
	// no row.
	ErrSourceNotFound = eris.New("ingest: source not found")

	// ErrSourceInactive means the target source is deactivated. A forced
	// manual invocation may override it.
	ErrSourceInactive = eris.New("ingest: source is inactive")

	// ErrScrapedDataNotFound means the analysis target capture does not
	// exist.
	ErrScrapedDataNotFound = eris.New("ingest: scraped data not found")
)
