// Package ingest is the orchestration core: a registry of named
// scraper/analyzer module pairs, a supervisor that wraps each invocation
// in a tracked job lifecycle (pending → running → completed|failed), and
// the orchestrators calling layers use to run a scrape or an analysis
// against a configured source. The core knows nothing about any
// particular source's scraping logic; modules are trusted in-process
// functions registered once at startup.
package ingest
