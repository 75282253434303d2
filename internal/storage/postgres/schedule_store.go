package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/leadscope/siteintel/internal/crawl"
)

// ScheduleStore persists crawl schedules in Postgres. URLs and
// settings are stored as jsonb. UpdateSchedule takes a row lock so
// concurrent read-modify-write cycles on one schedule serialize.
//
// Schema:
//
//	CREATE TABLE schedules (
//	    id              TEXT PRIMARY KEY,
//	    name            TEXT NOT NULL,
//	    urls            JSONB NOT NULL,
//	    frequency       TEXT NOT NULL,
//	    cron_expression TEXT NOT NULL DEFAULT '',
//	    settings        JSONB,
//	    active          BOOLEAN NOT NULL,
//	    last_run        TIMESTAMPTZ,
//	    next_run        TIMESTAMPTZ NOT NULL,
//	    created_at      TIMESTAMPTZ NOT NULL,
//	    updated_at      TIMESTAMPTZ NOT NULL
//	);
type ScheduleStore struct {
	pool pool
}

// NewScheduleStore constructs a ScheduleStore over an existing pool.
func NewScheduleStore(p pool) (*ScheduleStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &ScheduleStore{pool: p}, nil
}

// Close releases the underlying pool resources.
func (s *ScheduleStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const scheduleColumns = `id, name, urls, frequency, cron_expression, settings, active, last_run, next_run, created_at, updated_at`

// CreateSchedule inserts a new schedule row.
func (s *ScheduleStore) CreateSchedule(ctx context.Context, schedule crawl.Schedule) error {
	urlsJSON, settingsJSON, err := marshalScheduleBlobs(schedule)
	if err != nil {
		return err
	}
	query := `
INSERT INTO schedules (` + scheduleColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := s.pool.Exec(ctx, query,
		schedule.ID,
		schedule.Name,
		urlsJSON,
		string(schedule.Frequency),
		schedule.CronExpression,
		settingsJSON,
		schedule.Active,
		schedule.LastRun,
		schedule.NextRun,
		schedule.CreatedAt,
		schedule.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert schedule: %w", err)
	}
	return nil
}

// GetSchedule fetches a schedule by ID.
func (s *ScheduleStore) GetSchedule(ctx context.Context, id string) (crawl.Schedule, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1`, id)
	return scanSchedule(row)
}

// ListSchedules returns every schedule ordered by creation time.
func (s *ScheduleStore) ListSchedules(ctx context.Context) ([]crawl.Schedule, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

// UpdateSchedule applies mutate inside a transaction holding a row
// lock on the schedule.
func (s *ScheduleStore) UpdateSchedule(ctx context.Context, id string, mutate func(*crawl.Schedule) error) (crawl.Schedule, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return crawl.Schedule{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	row := tx.QueryRow(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = $1 FOR UPDATE`, id)
	schedule, err := scanSchedule(row)
	if err != nil {
		return crawl.Schedule{}, err
	}
	if err := mutate(&schedule); err != nil {
		return crawl.Schedule{}, err
	}

	urlsJSON, settingsJSON, err := marshalScheduleBlobs(schedule)
	if err != nil {
		return crawl.Schedule{}, err
	}
	if _, err := tx.Exec(ctx, `
UPDATE schedules
SET name = $2, urls = $3, frequency = $4, cron_expression = $5,
    settings = $6, active = $7, last_run = $8, next_run = $9, updated_at = $10
WHERE id = $1`,
		schedule.ID,
		schedule.Name,
		urlsJSON,
		string(schedule.Frequency),
		schedule.CronExpression,
		settingsJSON,
		schedule.Active,
		schedule.LastRun,
		schedule.NextRun,
		schedule.UpdatedAt,
	); err != nil {
		return crawl.Schedule{}, fmt.Errorf("update schedule: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return crawl.Schedule{}, fmt.Errorf("commit update: %w", err)
	}
	return schedule, nil
}

// DeleteSchedule removes a schedule, reporting whether it existed.
func (s *ScheduleStore) DeleteSchedule(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM schedules WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// DueSchedules returns every active schedule whose next_run is at or
// before now.
func (s *ScheduleStore) DueSchedules(ctx context.Context, now time.Time) ([]crawl.Schedule, error) {
	rows, err := s.pool.Query(ctx, `
SELECT `+scheduleColumns+` FROM schedules
WHERE active AND next_run <= $1
ORDER BY next_run`, now)
	if err != nil {
		return nil, fmt.Errorf("due schedules: %w", err)
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func marshalScheduleBlobs(schedule crawl.Schedule) (urlsJSON, settingsJSON []byte, err error) {
	urlsJSON, err = json.Marshal(schedule.URLs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal urls: %w", err)
	}
	if schedule.Settings != nil {
		settingsJSON, err = json.Marshal(schedule.Settings)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal settings: %w", err)
		}
	}
	return urlsJSON, settingsJSON, nil
}

func scanSchedule(row pgx.Row) (crawl.Schedule, error) {
	var (
		schedule     crawl.Schedule
		urlsJSON     []byte
		settingsJSON []byte
		frequency    string
		lastRun      *time.Time
	)
	err := row.Scan(
		&schedule.ID,
		&schedule.Name,
		&urlsJSON,
		&frequency,
		&schedule.CronExpression,
		&settingsJSON,
		&schedule.Active,
		&lastRun,
		&schedule.NextRun,
		&schedule.CreatedAt,
		&schedule.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawl.Schedule{}, crawl.ErrScheduleNotFound
	}
	if err != nil {
		return crawl.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	schedule.Frequency = crawl.Frequency(frequency)
	schedule.LastRun = lastRun
	if err := json.Unmarshal(urlsJSON, &schedule.URLs); err != nil {
		return crawl.Schedule{}, fmt.Errorf("unmarshal urls: %w", err)
	}
	if len(settingsJSON) > 0 {
		if err := json.Unmarshal(settingsJSON, &schedule.Settings); err != nil {
			return crawl.Schedule{}, fmt.Errorf("unmarshal settings: %w", err)
		}
	}
	return schedule, nil
}

func collectSchedules(rows pgx.Rows) ([]crawl.Schedule, error) {
	var out []crawl.Schedule
	for rows.Next() {
		schedule, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return out, nil
}
