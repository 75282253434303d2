// Package postgres provides Postgres-backed persistence
// implementations.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/leadscope/siteintel/internal/crawl"
)

// pool is the subset of pgxpool.Pool the stores use. pgxmock satisfies
// it in tests.
type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// NewPool creates a pgx pool from the config.
func NewPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return p, nil
}

// JobStore persists crawl jobs in Postgres. Results are stored as
// jsonb.
//
// Schema:
//
//	CREATE TABLE jobs (
//	    id           TEXT PRIMARY KEY,
//	    url          TEXT NOT NULL,
//	    status       TEXT NOT NULL,
//	    results      JSONB,
//	    error_text   TEXT NOT NULL DEFAULT '',
//	    schedule_id  TEXT NOT NULL DEFAULT '',
//	    created_at   TIMESTAMPTZ NOT NULL,
//	    completed_at TIMESTAMPTZ
//	);
type JobStore struct {
	pool pool
}

// NewJobStore constructs a JobStore over an existing pool.
func NewJobStore(p pool) (*JobStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a new job row.
func (s *JobStore) CreateJob(ctx context.Context, job crawl.Job) error {
	query := `
INSERT INTO jobs (id, url, status, error_text, schedule_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.pool.Exec(ctx, query,
		job.ID,
		job.URL,
		string(job.Status),
		job.Error,
		job.ScheduleID,
		job.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

const jobColumns = `id, url, status, results, error_text, schedule_id, created_at, completed_at`

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (crawl.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID)
	return scanJob(row)
}

// MarkProcessing transitions a pending job to processing.
func (s *JobStore) MarkProcessing(ctx context.Context, jobID string) error {
	return s.transition(ctx, jobID, crawl.JobStatusPending, `
UPDATE jobs SET status = $2 WHERE id = $1 AND status = $3`,
		jobID, string(crawl.JobStatusProcessing), string(crawl.JobStatusPending))
}

// MarkCompleted transitions a processing job to completed with its
// results and completion time.
func (s *JobStore) MarkCompleted(ctx context.Context, jobID string, results crawl.Result, at time.Time) error {
	resultsJSON, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	return s.transition(ctx, jobID, crawl.JobStatusProcessing, `
UPDATE jobs SET status = $2, results = $3, error_text = '', completed_at = $4
WHERE id = $1 AND status = $5`,
		jobID, string(crawl.JobStatusCompleted), resultsJSON, at, string(crawl.JobStatusProcessing))
}

// MarkFailed transitions a processing job to failed. completed_at
// stays NULL on failure.
func (s *JobStore) MarkFailed(ctx context.Context, jobID string, errText string) error {
	return s.transition(ctx, jobID, crawl.JobStatusProcessing, `
UPDATE jobs SET status = $2, error_text = $3 WHERE id = $1 AND status = $4`,
		jobID, string(crawl.JobStatusFailed), errText, string(crawl.JobStatusProcessing))
}

// LatestCompletedByURL returns the most recently completed job for the
// URL.
func (s *JobStore) LatestCompletedByURL(ctx context.Context, url string) (crawl.Job, error) {
	row := s.pool.QueryRow(ctx, `
SELECT `+jobColumns+` FROM jobs
WHERE url = $1 AND status = $2
ORDER BY completed_at DESC
LIMIT 1`, url, string(crawl.JobStatusCompleted))
	return scanJob(row)
}

// transition runs a guarded status update. Zero rows affected means
// either the job is missing or it is not in the required prior state.
func (s *JobStore) transition(ctx context.Context, jobID string, from crawl.JobStatus, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	return fmt.Errorf("job %s is %s, not %s", jobID, job.Status, from)
}

func scanJob(row pgx.Row) (crawl.Job, error) {
	var (
		job         crawl.Job
		status      string
		resultsJSON []byte
		completedAt *time.Time
	)
	err := row.Scan(
		&job.ID,
		&job.URL,
		&status,
		&resultsJSON,
		&job.Error,
		&job.ScheduleID,
		&job.CreatedAt,
		&completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawl.Job{}, crawl.ErrJobNotFound
	}
	if err != nil {
		return crawl.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.Status = crawl.JobStatus(status)
	job.CompletedAt = completedAt
	if len(resultsJSON) > 0 {
		var results crawl.Result
		if err := json.Unmarshal(resultsJSON, &results); err != nil {
			return crawl.Job{}, fmt.Errorf("unmarshal results: %w", err)
		}
		job.Results = &results
	}
	return job, nil
}
