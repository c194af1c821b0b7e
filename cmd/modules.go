package main

import (
	"time"

	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/fetcher"
	"github.com/campusdata/ingest-cli/internal/ingest"
	"github.com/campusdata/ingest-cli/internal/modules/hackernews"
	"github.com/campusdata/ingest-cli/internal/modules/openhpi"
	"github.com/campusdata/ingest-cli/pkg/anthropic"
)

// buildRegistry wires every builtin module into a fresh registry using
// the loaded config. The Anthropic client is optional: without an API
// key the hackernews analyzer degrades to neutral scores.
func buildRegistry() (*ingest.Registry, error) {
	timeout := time.Duration(cfg.Scrape.TimeoutSecs) * time.Second

	dispatcher := fetcher.NewDispatcher(
		fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:         cfg.Scrape.UserAgent,
			Timeout:           timeout,
			MaxRetries:        cfg.Scrape.Retries,
			RequestsPerSecond: cfg.Scrape.RequestsPerSecond,
		}),
		fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: timeout}),
	)

	var ai anthropic.Client
	if cfg.Anthropic.Key != "" {
		ai = anthropic.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("no anthropic API key configured, sentiment scoring disabled")
	}

	hnScraper := hackernews.NewScraper(dispatcher)
	hnAnalyzer := hackernews.NewAnalyzer(ai, cfg.Anthropic.Model, int64(cfg.Anthropic.MaxTokens))

	courseScraper := openhpi.NewScraper(openhpi.Options{
		BaseURL:   cfg.OpenHPI.BaseURL,
		UserAgent: cfg.Scrape.UserAgent,
		Timeout:   timeout,
		Email:     cfg.OpenHPI.Email,
		Password:  cfg.OpenHPI.Password,
	})

	reg := ingest.NewRegistry()
	if err := reg.Register(hackernews.ModuleName, hnScraper.Scrape, hnAnalyzer.Analyze); err != nil {
		return nil, err
	}
	if err := reg.Register(openhpi.ModuleName, courseScraper.Scrape, nil); err != nil {
		return nil, err
	}
	return reg, nil
}
