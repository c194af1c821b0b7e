// Package openhpi scrapes the openHPI course catalog, optionally behind
// the platform's forms login. It registers no analyzer: course records
// carry no signal worth scoring.
package openhpi

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/campusdata/ingest-cli/internal/ingest"
	"github.com/campusdata/ingest-cli/internal/model"
	"github.com/campusdata/ingest-cli/internal/store"
)

// ModuleName is the registry key for this module.
const ModuleName = "openhpi"

// Options configures the course scraper. Email and Password are platform
// defaults; per-source config keys "email" and "password" override them.
type Options struct {
	BaseURL   string
	UserAgent string
	Timeout   time.Duration
	Email     string
	Password  string
}

// Scraper captures the course catalog. The login session lives in a
// cookie jar scoped to one Scrape call, so parallel scrapes never share
// credentials.
type Scraper struct {
	opts Options
}

// NewScraper creates a course catalog scraper.
func NewScraper(opts Options) *Scraper {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://open.hpi.de"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "campusdata-ingest/1.0"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Scraper{opts: opts}
}

// Scrape fetches the catalog and derives one record per course card.
// When credentials are available it logs in first so unpublished
// courses show up too.
func (s *Scraper) Scrape(ctx context.Context, st store.Store, sourceID string) (*ingest.ScrapeResult, error) {
	log := zap.L().With(zap.String("module", ModuleName), zap.String("source_id", sourceID))

	src, err := st.GetSource(ctx, sourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "openhpi: load source %s", sourceID)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, eris.Wrap(err, "openhpi: cookie jar")
	}
	client := &http.Client{Jar: jar, Timeout: s.opts.Timeout}

	email := src.ConfigValue("email")
	if email == "" {
		email = s.opts.Email
	}
	password := src.ConfigValue("password")
	if password == "" {
		password = s.opts.Password
	}
	if email != "" && password != "" {
		if err := s.login(ctx, client, email, password); err != nil {
			return nil, err
		}
		log.Info("authenticated with platform")
	}

	coursesURL := s.opts.BaseURL + "/courses"
	body, statusCode, err := s.get(ctx, client, coursesURL)
	if err != nil {
		return nil, err
	}

	data := &model.ScrapedData{
		SourceID:   src.ID,
		URL:        coursesURL,
		Raw:        body,
		StatusCode: &statusCode,
	}
	if err := st.CreateScrapedData(ctx, data); err != nil {
		return nil, err
	}

	if statusCode != http.StatusOK {
		return &ingest.ScrapeResult{
			Success:       false,
			ScrapedDataID: data.ID,
			Error:         eris.Errorf("unexpected status %d from %s", statusCode, coursesURL).Error(),
		}, nil
	}

	courses, err := parseCourses(body, s.opts.BaseURL)
	if err != nil {
		return nil, err
	}

	for _, course := range courses {
		rec := &model.ProcessedData{
			ScrapedDataID: data.ID,
			Title:         course.Title,
			Content:       course.Description,
			Module:        ModuleName,
			Metadata: map[string]any{
				"course_id": course.ID,
				"url":       course.URL,
				"language":  course.Language,
				"status":    course.Status,
			},
		}
		if err := st.CreateProcessedData(ctx, rec); err != nil {
			return nil, err
		}
	}

	log.Info("course catalog captured", zap.Int("courses", len(courses)))

	return &ingest.ScrapeResult{
		Success:       true,
		Items:         len(courses),
		ScrapedDataID: data.ID,
	}, nil
}

// login performs the platform's forms login: fetch /sessions/new, carry
// over its hidden inputs (CSRF token), and post credentials to /sessions.
func (s *Scraper) login(ctx context.Context, client *http.Client, email, password string) error {
	body, statusCode, err := s.get(ctx, client, s.opts.BaseURL+"/sessions/new")
	if err != nil {
		return err
	}
	if statusCode != http.StatusOK {
		return eris.Errorf("openhpi: login page returned status %d", statusCode)
	}

	hidden, err := parseHiddenInputs(body)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("login", email)
	form.Set("password", password)
	for name, value := range hidden {
		form.Set(name, value)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.opts.BaseURL+"/sessions", strings.NewReader(form.Encode()))
	if err != nil {
		return eris.Wrap(err, "openhpi: create login request")
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "openhpi: submit login")
	}
	defer resp.Body.Close()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return eris.Wrap(err, "openhpi: drain login response")
	}

	// a failed login bounces back to the login form
	if resp.StatusCode >= 400 || strings.Contains(resp.Request.URL.Path, "sessions/new") {
		return eris.New("openhpi: login rejected")
	}
	return nil
}

func (s *Scraper) get(ctx context.Context, client *http.Client, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "openhpi: create request for %s", rawURL)
	}
	req.Header.Set("User-Agent", s.opts.UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "openhpi: get %s", rawURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "openhpi: read body from %s", rawURL)
	}
	return body, resp.StatusCode, nil
}
