// Package hackernews scrapes the Hacker News front page and scores
// headline sentiment. It is the builtin demonstration of a module with
// both a scraper and an analyzer.
package hackernews

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/fetcher"
	"github.com/campusdata/ingest-cli/internal/ingest"
	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

// ModuleName is the registry key for this module.
const ModuleName = "hackernews"

// Scraper captures the front page and derives one record per story.
type Scraper struct {
	fetch fetcher.Fetcher
}

// NewScraper creates a front-page scraper over the given fetcher.
func NewScraper(fetch fetcher.Fetcher) *Scraper {
	return &Scraper{fetch: fetch}
}

// Scrape fetches the source URL, records the capture, and writes one
// derived record per story. A non-200 response is recorded as a failed
// capture rather than returned as an error.
func (s *Scraper) Scrape(ctx context.Context, st store.Store, sourceID string) (*ingest.ScrapeResult, error) {
	log := zap.L().With(zap.String("module", ModuleName), zap.String("source_id", sourceID))

	src, err := st.GetSource(ctx, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "hackernews: load source %s", sourceID)
	}

	res, err := s.fetch.Get(ctx, src.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "hackernews: fetch %s", src.URL)
	}

	data := &model.ScrapedData{
		SourceID:   src.ID,
		URL:        src.URL,
		Raw:        res.Body,
		StatusCode: &res.StatusCode,
	}
	if err := st.CreateScrapedData(ctx, data); err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return &ingest.ScrapeResult{
			Success:       false,
			ScrapedDataID: data.ID,
			Error:         fmt.Sprintf("unexpected status %d from %s", res.StatusCode, src.URL),
		}, nil
	}

	stories, err := parseFrontPage(res.Body, strings.TrimRight(src.URL, "/"))
	if err != nil {
		return nil, err
	}

	for _, story := range stories {
		rec := &model.ProcessedData{
			ScrapedDataID: data.ID,
			Title:         story.Title,
			Content:       storyContent(story),
			Module:        ModuleName,
			Metadata: map[string]any{
				"story_id":     story.ID,
				"url":          story.URL,
				"domain":       story.Domain,
				"points":       story.Points,
				"author":       story.Author,
				"age":          story.Age,
				"comments":     story.Comments,
				"comments_url": story.CommentsURL,
			},
		}
		if err := st.CreateProcessedData(ctx, rec); err != nil {
			return nil, err
		}
	}

	log.Info("front page captured", zap.Int("stories", len(stories)))

	return &ingest.ScrapeResult{
		Success:       true,
		Items:         len(stories),
		ScrapedDataID: data.ID,
	}, nil
}

// storyContent renders the subtext line stored alongside the headline.
func storyContent(story Story) string {
	var parts []string
	if story.Points > 0 {
		parts = append(parts, fmt.Sprintf("Points: %d", story.Points))
	}
	if story.Author != "" {
		parts = append(parts, "By: "+story.Author)
	}
	if story.Age != "" {
		parts = append(parts, "Posted: "+story.Age)
	}
	if story.Comments > 0 {
		parts = append(parts, fmt.Sprintf("%d comments", story.Comments))
	}
	return strings.Join(parts, " | ")
}
