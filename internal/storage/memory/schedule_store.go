package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/leadscope/siteintel/internal/crawl"
)

// ScheduleStore is an in-memory crawl.ScheduleStore. UpdateSchedule is
// atomic under the store mutex, which serializes concurrent
// read-modify-write cycles on the same schedule.
type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]crawl.Schedule
}

// NewScheduleStore constructs a ScheduleStore.
func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{
		schedules: make(map[string]crawl.Schedule),
	}
}

// CreateSchedule stores a new schedule.
func (s *ScheduleStore) CreateSchedule(_ context.Context, schedule crawl.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.schedules[schedule.ID]; exists {
		return errors.New("schedule already exists")
	}
	s.schedules[schedule.ID] = cloneSchedule(schedule)
	return nil
}

// GetSchedule fetches a schedule by ID.
func (s *ScheduleStore) GetSchedule(_ context.Context, id string) (crawl.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return crawl.Schedule{}, crawl.ErrScheduleNotFound
	}
	return cloneSchedule(schedule), nil
}

// ListSchedules returns every schedule ordered by creation time.
func (s *ScheduleStore) ListSchedules(_ context.Context) ([]crawl.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]crawl.Schedule, 0, len(s.schedules))
	for _, schedule := range s.schedules {
		out = append(out, cloneSchedule(schedule))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateSchedule applies mutate to the stored schedule under the store
// lock and returns the updated copy. An error from mutate leaves the
// stored schedule untouched.
func (s *ScheduleStore) UpdateSchedule(_ context.Context, id string, mutate func(*crawl.Schedule) error) (crawl.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	schedule, ok := s.schedules[id]
	if !ok {
		return crawl.Schedule{}, crawl.ErrScheduleNotFound
	}
	updated := cloneSchedule(schedule)
	if err := mutate(&updated); err != nil {
		return crawl.Schedule{}, err
	}
	s.schedules[id] = cloneSchedule(updated)
	return updated, nil
}

// DeleteSchedule removes a schedule, reporting whether it existed.
func (s *ScheduleStore) DeleteSchedule(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.schedules[id]; !ok {
		return false, nil
	}
	delete(s.schedules, id)
	return true, nil
}

// DueSchedules returns every active schedule whose NextRun is at or
// before now.
func (s *ScheduleStore) DueSchedules(_ context.Context, now time.Time) ([]crawl.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var due []crawl.Schedule
	for _, schedule := range s.schedules {
		if schedule.Active && !schedule.NextRun.After(now) {
			due = append(due, cloneSchedule(schedule))
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return due[i].NextRun.Before(due[j].NextRun)
	})
	return due, nil
}

// cloneSchedule deep-copies the slice and map fields so callers cannot
// mutate stored state through a returned schedule.
func cloneSchedule(in crawl.Schedule) crawl.Schedule {
	out := in
	if in.URLs != nil {
		out.URLs = append([]string(nil), in.URLs...)
	}
	if in.Settings != nil {
		out.Settings = make(map[string]string, len(in.Settings))
		for k, v := range in.Settings {
			out.Settings[k] = v
		}
	}
	if in.LastRun != nil {
		lr := *in.LastRun
		out.LastRun = &lr
	}
	return out
}
