package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/campusdata/ingest-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	module     TEXT NOT NULL,
	active     INTEGER NOT NULL DEFAULT 1,
	config     TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	job_type     TEXT NOT NULL,
	source_id    TEXT NOT NULL REFERENCES sources(id),
	module       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	started_at   DATETIME,
	completed_at DATETIME,
	records      INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS scraped_data (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES sources(id),
	url         TEXT NOT NULL,
	raw         BLOB,
	status_code INTEGER,
	scraped_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS processed_data (
	id              TEXT PRIMARY KEY,
	scraped_data_id TEXT NOT NULL REFERENCES scraped_data(id),
	title           TEXT,
	content         TEXT,
	metadata        TEXT,
	module          TEXT NOT NULL,
	sentiment       REAL,
	processed_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_sources_module ON sources(module);
CREATE INDEX IF NOT EXISTS idx_jobs_source_id ON jobs(source_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_scraped_data_source_id ON scraped_data(source_id);
CREATE INDEX IF NOT EXISTS idx_processed_data_scraped_id ON processed_data(scraped_data_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Sources ---

func (s *SQLiteStore) CreateSource(ctx context.Context, src *model.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now
	configJSON, err := marshalStringMap(src.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source config")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sources (id, name, url, module, active, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		src.ID, src.Name, src.URL, src.Module, boolToInt(src.Active), configJSON, now, now,
	)
	return eris.Wrapf(err, "sqlite: create source %s", src.Name)
}

func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, url, module, active, config, created_at, updated_at
		 FROM sources WHERE id = ?`, id,
	)
	return scanSource(row)
}

func (s *SQLiteStore) ListSources(ctx context.Context, filter SourceFilter) ([]model.Source, error) {
	query := `SELECT id, name, url, module, active, config, created_at, updated_at FROM sources WHERE 1=1`
	var args []any
	if filter.ActiveOnly {
		query += ` AND active = 1`
	}
	if filter.Module != "" {
		query += ` AND module = ?`
		args = append(args, filter.Module)
	}
	query += ` ORDER BY created_at`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "sqlite: list sources iterate")
}

func (s *SQLiteStore) UpdateSource(ctx context.Context, src *model.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	configJSON, err := marshalStringMap(src.Config)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal source config")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET name = ?, url = ?, module = ?, active = ?, config = ?, updated_at = ?
		 WHERE id = ?`,
		src.Name, src.URL, src.Module, boolToInt(src.Active), configJSON, time.Now().UTC(), src.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update source %s", src.ID)
	}
	return checkRowsAffected(res, "source", src.ID)
}

func (s *SQLiteStore) DeactivateSource(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sources SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: deactivate source %s", id)
	}
	return checkRowsAffected(res, "source", id)
}

// --- Jobs ---

func (s *SQLiteStore) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, job_type, source_id, module, status, created_at, records)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		job.ID, string(job.Type), job.SourceID, job.Module, string(job.Status), job.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: create job for source %s", job.SourceID)
}

func (s *SQLiteStore) MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, started_at = ? WHERE id = ?`,
		string(model.JobStatusRunning), startedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark job %s running", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) CompleteJob(ctx context.Context, jobID string, records int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, records = ? WHERE id = ?`,
		string(model.JobStatusCompleted), time.Now().UTC(), records, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.JobStatusFailed), time.Now().UTC(), errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail job %s", jobID)
	}
	return checkRowsAffected(res, "job", jobID)
}

func (s *SQLiteStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, job_type, source_id, module, status, created_at, started_at, completed_at, records, error
		 FROM jobs WHERE id = ?`, jobID,
	)
	return scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, job_type, source_id, module, status, created_at, started_at, completed_at, records, error
		 FROM jobs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.SourceID != "" {
		query += ` AND source_id = ?`
		args = append(args, filter.SourceID)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list jobs iterate")
}

// --- Captures ---

func (s *SQLiteStore) CreateScrapedData(ctx context.Context, data *model.ScrapedData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if data.ID == "" {
		data.ID = uuid.New().String()
	}
	data.ScrapedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scraped_data (id, source_id, url, raw, status_code, scraped_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		data.ID, data.SourceID, data.URL, data.Raw, data.StatusCode, data.ScrapedAt,
	)
	return eris.Wrapf(err, "sqlite: create scraped data for source %s", data.SourceID)
}

func (s *SQLiteStore) GetScrapedData(ctx context.Context, id string) (*model.ScrapedData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source_id, url, raw, status_code, scraped_at FROM scraped_data WHERE id = ?`, id,
	)
	return scanScrapedData(row)
}

func (s *SQLiteStore) ListScrapedData(ctx context.Context, sourceID string) ([]model.ScrapedData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_id, url, raw, status_code, scraped_at
		 FROM scraped_data WHERE source_id = ? ORDER BY scraped_at DESC`, sourceID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scraped data")
	}
	defer rows.Close()

	var out []model.ScrapedData
	for rows.Next() {
		d, err := scanScrapedData(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list scraped data iterate")
}

// --- Derived records ---

func (s *SQLiteStore) CreateProcessedData(ctx context.Context, data *model.ProcessedData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if data.ID == "" {
		data.ID = uuid.New().String()
	}
	data.ProcessedAt = time.Now().UTC()
	metaJSON, err := marshalAnyMap(data.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal processed metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO processed_data (id, scraped_data_id, title, content, metadata, module, sentiment, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		data.ID, data.ScrapedDataID, data.Title, data.Content, metaJSON, data.Module, data.Sentiment, data.ProcessedAt,
	)
	return eris.Wrapf(err, "sqlite: create processed data for capture %s", data.ScrapedDataID)
}

func (s *SQLiteStore) ListProcessedData(ctx context.Context, scrapedDataID string) ([]model.ProcessedData, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scraped_data_id, title, content, metadata, module, sentiment, processed_at
		 FROM processed_data WHERE scraped_data_id = ? ORDER BY processed_at`, scrapedDataID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list processed data")
	}
	return collectProcessedData(rows)
}

func (s *SQLiteStore) ListAllProcessedData(ctx context.Context, limit int) ([]model.ProcessedData, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, scraped_data_id, title, content, metadata, module, sentiment, processed_at
		 FROM processed_data ORDER BY processed_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list all processed data")
	}
	return collectProcessedData(rows)
}

func (s *SQLiteStore) SetSentiment(ctx context.Context, processedDataID string, score float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE processed_data SET sentiment = ? WHERE id = ?`,
		score, processedDataID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set sentiment on %s", processedDataID)
	}
	return checkRowsAffected(res, "processed data", processedDataID)
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*model.Source, error) {
	var src model.Source
	var active int
	var configJSON sql.NullString
	err := row.Scan(&src.ID, &src.Name, &src.URL, &src.Module, &active, &configJSON, &src.CreatedAt, &src.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source")
	}
	src.Active = active != 0
	if configJSON.Valid && configJSON.String != "" {
		if err := json.Unmarshal([]byte(configJSON.String), &src.Config); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal source config")
		}
	}
	return &src, nil
}

func scanJob(row rowScanner) (*model.Job, error) {
	var j model.Job
	var jobType, status string
	var errMsg sql.NullString
	err := row.Scan(&j.ID, &jobType, &j.SourceID, &j.Module, &status, &j.CreatedAt,
		&j.StartedAt, &j.CompletedAt, &j.Records, &errMsg)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan job")
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	return &j, nil
}

func scanScrapedData(row rowScanner) (*model.ScrapedData, error) {
	var d model.ScrapedData
	err := row.Scan(&d.ID, &d.SourceID, &d.URL, &d.Raw, &d.StatusCode, &d.ScrapedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan scraped data")
	}
	return &d, nil
}

func collectProcessedData(rows *sql.Rows) ([]model.ProcessedData, error) {
	defer rows.Close()
	var out []model.ProcessedData
	for rows.Next() {
		var d model.ProcessedData
		var title, content, metaJSON sql.NullString
		err := rows.Scan(&d.ID, &d.ScrapedDataID, &title, &content, &metaJSON, &d.Module, &d.Sentiment, &d.ProcessedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan processed data")
		}
		d.Title = title.String
		d.Content = content.String
		if metaJSON.Valid && metaJSON.String != "" {
			if err := json.Unmarshal([]byte(metaJSON.String), &d.Metadata); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal processed metadata")
			}
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: processed data iterate")
}

func marshalStringMap(m map[string]string) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

func marshalAnyMap(m map[string]any) (string, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	return string(b), err
}

// boolToInt converts a bool to 1 (true) or 0 (false).
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
