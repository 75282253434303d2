package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/leadscope/siteintel/internal/crawl"
)

func newScheduleStore(t *testing.T) (*ScheduleStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewScheduleStore(mock)
	require.NoError(t, err)
	return store, mock
}

func scheduleRows(mock pgxmock.PgxPoolIface, id string, now time.Time) *pgxmock.Rows {
	return mock.NewRows([]string{
		"id", "name", "urls", "frequency", "cron_expression", "settings",
		"active", "last_run", "next_run", "created_at", "updated_at",
	}).AddRow(
		id, "daily check", []byte(`["https://example.com"]`), "daily", "",
		[]byte(nil), true, (*time.Time)(nil), now.Add(24*time.Hour), now, now,
	)
}

func TestScheduleStoreCreateSchedule(t *testing.T) {
	t.Parallel()

	store, mock := newScheduleStore(t)
	now := time.Unix(1700000000, 0).UTC()
	schedule := crawl.Schedule{
		ID:        "sched-1",
		Name:      "daily check",
		URLs:      []string{"https://example.com"},
		Frequency: crawl.FrequencyDaily,
		Active:    true,
		NextRun:   now.Add(24 * time.Hour),
		CreatedAt: now,
		UpdatedAt: now,
	}

	mock.ExpectExec("INSERT INTO schedules").
		WithArgs(
			schedule.ID, schedule.Name, []byte(`["https://example.com"]`), "daily", "",
			[]byte(nil), true, (*time.Time)(nil), schedule.NextRun, now, now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateSchedule(context.Background(), schedule))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleStoreUpdateScheduleLocksRow(t *testing.T) {
	t.Parallel()

	store, mock := newScheduleStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM schedules WHERE id .+ FOR UPDATE").
		WithArgs("sched-1").
		WillReturnRows(scheduleRows(mock, "sched-1", now))
	mock.ExpectExec("UPDATE schedules").
		WithArgs(
			"sched-1", "renamed", []byte(`["https://example.com"]`), "daily", "",
			[]byte(nil), true, (*time.Time)(nil), now.Add(24*time.Hour), now, now,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()
	mock.ExpectRollback()

	updated, err := store.UpdateSchedule(context.Background(), "sched-1", func(s *crawl.Schedule) error {
		s.Name = "renamed"
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, "renamed", updated.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleStoreUpdateScheduleMutationErrorRollsBack(t *testing.T) {
	t.Parallel()

	store, mock := newScheduleStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM schedules WHERE id .+ FOR UPDATE").
		WithArgs("sched-1").
		WillReturnRows(scheduleRows(mock, "sched-1", now))
	mock.ExpectRollback()

	_, err := store.UpdateSchedule(context.Background(), "sched-1", func(*crawl.Schedule) error {
		return crawl.ErrInvalidRequest
	})
	require.ErrorIs(t, err, crawl.ErrInvalidRequest)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleStoreDueSchedules(t *testing.T) {
	t.Parallel()

	store, mock := newScheduleStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT .+ FROM schedules").
		WithArgs(now).
		WillReturnRows(scheduleRows(mock, "sched-1", now.Add(-48*time.Hour)))

	due, err := store.DueSchedules(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, "sched-1", due[0].ID)
	require.Equal(t, []string{"https://example.com"}, due[0].URLs)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleStoreDeleteSchedule(t *testing.T) {
	t.Parallel()

	store, mock := newScheduleStore(t)

	mock.ExpectExec("DELETE FROM schedules").
		WithArgs("sched-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM schedules").
		WithArgs("sched-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	deleted, err := store.DeleteSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = store.DeleteSchedule(context.Background(), "sched-1")
	require.NoError(t, err)
	require.False(t, deleted)
	require.NoError(t, mock.ExpectationsWereMet())
}
