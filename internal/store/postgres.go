package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/campusdata/ingest-cli/internal/model"
)

// PgxPool is the subset of pgxpool.Pool the store needs. pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool PgxPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (or mock) in a PostgresStore.
func NewPostgresFromPool(pool PgxPool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sources (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	url        TEXT NOT NULL,
	module     TEXT NOT NULL,
	active     BOOLEAN NOT NULL DEFAULT true,
	config     JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS jobs (
	id           TEXT PRIMARY KEY,
	job_type     TEXT NOT NULL,
	source_id    TEXT NOT NULL REFERENCES sources(id),
	module       TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'pending',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	started_at   TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	records      INTEGER NOT NULL DEFAULT 0,
	error        TEXT
);

CREATE TABLE IF NOT EXISTS scraped_data (
	id          TEXT PRIMARY KEY,
	source_id   TEXT NOT NULL REFERENCES sources(id),
	url         TEXT NOT NULL,
	raw         BYTEA,
	status_code INTEGER,
	scraped_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS processed_data (
	id              TEXT PRIMARY KEY,
	scraped_data_id TEXT NOT NULL REFERENCES scraped_data(id),
	title           TEXT,
	content         TEXT,
	metadata        JSONB,
	module          TEXT NOT NULL,
	sentiment       DOUBLE PRECISION,
	processed_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_sources_module ON sources(module);
CREATE INDEX IF NOT EXISTS idx_jobs_source_id ON jobs(source_id);
CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
CREATE INDEX IF NOT EXISTS idx_scraped_data_source_id ON scraped_data(source_id);
CREATE INDEX IF NOT EXISTS idx_processed_data_scraped_id ON processed_data(scraped_data_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// --- Sources ---

func (s *PostgresStore) CreateSource(ctx context.Context, src *model.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	src.CreatedAt = now
	src.UpdatedAt = now
	configJSON, err := json.Marshal(src.Config)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source config")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sources (id, name, url, module, active, config, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		src.ID, src.Name, src.URL, src.Module, src.Active, configJSON, now, now,
	)
	return eris.Wrapf(err, "postgres: create source %s", src.Name)
}

func (s *PostgresStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, url, module, active, config, created_at, updated_at
		 FROM sources WHERE id = $1`, id,
	)
	return scanPgSource(row)
}

func (s *PostgresStore) ListSources(ctx context.Context, filter SourceFilter) ([]model.Source, error) {
	query := `SELECT id, name, url, module, active, config, created_at, updated_at FROM sources WHERE 1=1`
	var args []any
	if filter.ActiveOnly {
		query += ` AND active`
	}
	if filter.Module != "" {
		args = append(args, filter.Module)
		query += ` AND module = $1`
	}
	query += ` ORDER BY created_at`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sources")
	}
	defer rows.Close()

	var sources []model.Source
	for rows.Next() {
		src, err := scanPgSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *src)
	}
	return sources, eris.Wrap(rows.Err(), "postgres: list sources iterate")
}

func (s *PostgresStore) UpdateSource(ctx context.Context, src *model.Source) error {
	if err := src.Validate(); err != nil {
		return err
	}
	configJSON, err := json.Marshal(src.Config)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal source config")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET name = $1, url = $2, module = $3, active = $4, config = $5, updated_at = now()
		 WHERE id = $6`,
		src.Name, src.URL, src.Module, src.Active, configJSON, src.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update source %s", src.ID)
	}
	return checkTag(tag, "source", src.ID)
}

func (s *PostgresStore) DeactivateSource(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE sources SET active = false, updated_at = now() WHERE id = $1`, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: deactivate source %s", id)
	}
	return checkTag(tag, "source", id)
}

// --- Jobs ---

func (s *PostgresStore) CreateJob(ctx context.Context, job *model.Job) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = model.JobStatusPending
	}
	job.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, job_type, source_id, module, status, created_at, records)
		 VALUES ($1, $2, $3, $4, $5, $6, 0)`,
		job.ID, string(job.Type), job.SourceID, job.Module, string(job.Status), job.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: create job for source %s", job.SourceID)
}

func (s *PostgresStore) MarkJobRunning(ctx context.Context, jobID string, startedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, started_at = $2 WHERE id = $3`,
		string(model.JobStatusRunning), startedAt, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark job %s running", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) CompleteJob(ctx context.Context, jobID string, records int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, completed_at = now(), records = $2 WHERE id = $3`,
		string(model.JobStatusCompleted), records, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete job %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) FailJob(ctx context.Context, jobID string, errMsg string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		string(model.JobStatusFailed), errMsg, jobID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail job %s", jobID)
	}
	return checkTag(tag, "job", jobID)
}

func (s *PostgresStore) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, job_type, source_id, module, status, created_at, started_at, completed_at, records, error
		 FROM jobs WHERE id = $1`, jobID,
	)
	return scanPgJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	query := `SELECT id, job_type, source_id, module, status, created_at, started_at, completed_at, records, error
		 FROM jobs WHERE 1=1`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.SourceID != "" {
		args = append(args, filter.SourceID)
		query += ` AND source_id = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list jobs")
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		j, err := scanPgJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list jobs iterate")
}

// --- Captures ---

func (s *PostgresStore) CreateScrapedData(ctx context.Context, data *model.ScrapedData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if data.ID == "" {
		data.ID = uuid.New().String()
	}
	data.ScrapedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO scraped_data (id, source_id, url, raw, status_code, scraped_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		data.ID, data.SourceID, data.URL, data.Raw, data.StatusCode, data.ScrapedAt,
	)
	return eris.Wrapf(err, "postgres: create scraped data for source %s", data.SourceID)
}

func (s *PostgresStore) GetScrapedData(ctx context.Context, id string) (*model.ScrapedData, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, source_id, url, raw, status_code, scraped_at FROM scraped_data WHERE id = $1`, id,
	)
	var d model.ScrapedData
	err := row.Scan(&d.ID, &d.SourceID, &d.URL, &d.Raw, &d.StatusCode, &d.ScrapedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan scraped data")
	}
	return &d, nil
}

func (s *PostgresStore) ListScrapedData(ctx context.Context, sourceID string) ([]model.ScrapedData, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source_id, url, raw, status_code, scraped_at
		 FROM scraped_data WHERE source_id = $1 ORDER BY scraped_at DESC`, sourceID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scraped data")
	}
	defer rows.Close()

	var out []model.ScrapedData
	for rows.Next() {
		var d model.ScrapedData
		if err := rows.Scan(&d.ID, &d.SourceID, &d.URL, &d.Raw, &d.StatusCode, &d.ScrapedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan scraped data")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list scraped data iterate")
}

// --- Derived records ---

func (s *PostgresStore) CreateProcessedData(ctx context.Context, data *model.ProcessedData) error {
	if err := data.Validate(); err != nil {
		return err
	}
	if data.ID == "" {
		data.ID = uuid.New().String()
	}
	data.ProcessedAt = time.Now().UTC()
	metaJSON, err := json.Marshal(data.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal processed metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO processed_data (id, scraped_data_id, title, content, metadata, module, sentiment, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		data.ID, data.ScrapedDataID, data.Title, data.Content, metaJSON, data.Module, data.Sentiment, data.ProcessedAt,
	)
	return eris.Wrapf(err, "postgres: create processed data for capture %s", data.ScrapedDataID)
}

func (s *PostgresStore) ListProcessedData(ctx context.Context, scrapedDataID string) ([]model.ProcessedData, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, scraped_data_id, title, content, metadata, module, sentiment, processed_at
		 FROM processed_data WHERE scraped_data_id = $1 ORDER BY processed_at`, scrapedDataID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list processed data")
	}
	return collectPgProcessedData(rows)
}

func (s *PostgresStore) ListAllProcessedData(ctx context.Context, limit int) ([]model.ProcessedData, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, scraped_data_id, title, content, metadata, module, sentiment, processed_at
		 FROM processed_data ORDER BY processed_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list all processed data")
	}
	return collectPgProcessedData(rows)
}

func (s *PostgresStore) SetSentiment(ctx context.Context, processedDataID string, score float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE processed_data SET sentiment = $1 WHERE id = $2`,
		score, processedDataID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set sentiment on %s", processedDataID)
	}
	return checkTag(tag, "processed data", processedDataID)
}

// --- scan helpers ---

func scanPgSource(row pgx.Row) (*model.Source, error) {
	var src model.Source
	var configJSON []byte
	err := row.Scan(&src.ID, &src.Name, &src.URL, &src.Module, &src.Active, &configJSON, &src.CreatedAt, &src.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan source")
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &src.Config); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal source config")
		}
	}
	return &src, nil
}

func scanPgJob(row pgx.Row) (*model.Job, error) {
	var j model.Job
	var jobType, status string
	var errMsg *string
	err := row.Scan(&j.ID, &jobType, &j.SourceID, &j.Module, &status, &j.CreatedAt,
		&j.StartedAt, &j.CompletedAt, &j.Records, &errMsg)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan job")
	}
	j.Type = model.JobType(jobType)
	j.Status = model.JobStatus(status)
	if errMsg != nil {
		j.Error = *errMsg
	}
	return &j, nil
}

func collectPgProcessedData(rows pgx.Rows) ([]model.ProcessedData, error) {
	defer rows.Close()
	var out []model.ProcessedData
	for rows.Next() {
		var d model.ProcessedData
		var title, content *string
		var metaJSON []byte
		err := rows.Scan(&d.ID, &d.ScrapedDataID, &title, &content, &metaJSON, &d.Module, &d.Sentiment, &d.ProcessedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan processed data")
		}
		if title != nil {
			d.Title = *title
		}
		if content != nil {
			d.Content = *content
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &d.Metadata); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal processed metadata")
			}
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: processed data iterate")
}

func checkTag(tag pgconn.CommandTag, entity, id string) error {
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "%s %s", entity, id)
	}
	return nil
}
