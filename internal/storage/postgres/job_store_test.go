package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/leadscope/siteintel/internal/crawl"
)

func newJobStore(t *testing.T) (*JobStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewJobStore(mock)
	require.NoError(t, err)
	return store, mock
}

func TestJobStoreCreateJob(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)
	now := time.Unix(1700000000, 0).UTC()
	job := crawl.Job{
		ID:        "job-1",
		URL:       "https://example.com",
		Status:    crawl.JobStatusPending,
		CreatedAt: now,
	}

	mock.ExpectExec("INSERT INTO jobs").
		WithArgs(job.ID, job.URL, "pending", "", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreGetJobNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)

	mock.ExpectQuery("SELECT .+ FROM jobs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, crawl.ErrJobNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkCompletedStoresResults(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)
	at := time.Unix(1700000000, 0).UTC()
	results := crawl.Result{Stats: crawl.Stats{PagesAnalyzed: 2}}
	resultsJSON, err := json.Marshal(results)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("job-1", "completed", resultsJSON, at, "processing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, store.MarkCompleted(context.Background(), "job-1", results, at))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreMarkProcessingRejectsWrongState(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs("job-1", "processing", "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery("SELECT .+ FROM jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(jobRows(mock, "job-1", "completed", now))

	err := store.MarkProcessing(context.Background(), "job-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not pending")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestJobStoreLatestCompletedByURL(t *testing.T) {
	t.Parallel()

	store, mock := newJobStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT .+ FROM jobs").
		WithArgs("https://example.com", "completed").
		WillReturnRows(jobRows(mock, "job-9", "completed", now))

	job, err := store.LatestCompletedByURL(context.Background(), "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "job-9", job.ID)
	require.Equal(t, crawl.JobStatusCompleted, job.Status)
	require.NotNil(t, job.Results)
	require.NoError(t, mock.ExpectationsWereMet())
}

func jobRows(mock pgxmock.PgxPoolIface, id, status string, now time.Time) *pgxmock.Rows {
	completedAt := now
	return mock.NewRows([]string{
		"id", "url", "status", "results", "error_text", "schedule_id", "created_at", "completed_at",
	}).AddRow(
		id, "https://example.com", status, []byte(`{"website":{},"linkedin":{},"stats":{"pagesAnalyzed":1,"sectionsFound":0,"aiSummariesGenerated":0,"socialLinksFound":0}}`),
		"", "", now, &completedAt,
	)
}
