// Package schedule implements recurring crawl schedules.
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/jobs"
	"github.com/leadscope/siteintel/internal/telemetry"
)

// DefaultTickInterval is how often the engine polls for due schedules.
const DefaultTickInterval = time.Minute

// fallbackInterval is applied when a custom cron expression does not
// parse, so a schedule never goes dormant.
const fallbackInterval = 24 * time.Hour

// cronParser accepts standard five-field expressions.
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Submitter is the slice of the job manager the engine needs.
type Submitter interface {
	Submit(ctx context.Context, rawURL string, scheduleID string, settings map[string]string) (crawl.Job, bool, error)
}

// Definition carries the caller-editable fields of a schedule.
type Definition struct {
	Name           string
	URLs           []string
	Frequency      crawl.Frequency
	CronExpression string
	Settings       map[string]string
	Active         bool
}

// Patch holds a partial schedule update. Nil fields keep their current
// value; set fields are validated against the merged schedule.
type Patch struct {
	Name           *string
	URLs           []string
	Frequency      *crawl.Frequency
	CronExpression *string
	Settings       map[string]string
	Active         *bool
}

// Engine owns schedule CRUD and the periodic trigger loop.
type Engine struct {
	store     crawl.ScheduleStore
	submitter Submitter
	ids       crawl.IDGenerator
	clock     crawl.Clock
	logger    *zap.Logger
	interval  time.Duration
}

// NewEngine constructs an Engine.
func NewEngine(
	store crawl.ScheduleStore,
	submitter Submitter,
	ids crawl.IDGenerator,
	clock crawl.Clock,
	logger *zap.Logger,
	interval time.Duration,
) *Engine {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Engine{
		store:     store,
		submitter: submitter,
		ids:       ids,
		clock:     clock,
		logger:    logger,
		interval:  interval,
	}
}

// Create validates the definition and stores a new schedule with its
// first NextRun computed from now.
func (e *Engine) Create(ctx context.Context, def Definition) (crawl.Schedule, error) {
	if err := validateDefinition(def); err != nil {
		return crawl.Schedule{}, err
	}
	id, err := e.ids.NewID()
	if err != nil {
		return crawl.Schedule{}, fmt.Errorf("generate schedule id: %w", err)
	}
	now := e.clock.Now().UTC()
	schedule := crawl.Schedule{
		ID:             id,
		Name:           def.Name,
		URLs:           append([]string(nil), def.URLs...),
		Frequency:      def.Frequency,
		CronExpression: def.CronExpression,
		Settings:       def.Settings,
		Active:         def.Active,
		NextRun:        e.nextRun(def.Frequency, def.CronExpression, now),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := e.store.CreateSchedule(ctx, schedule); err != nil {
		return crawl.Schedule{}, fmt.Errorf("create schedule: %w", err)
	}
	e.logger.Info("schedule created",
		zap.String("schedule_id", id),
		zap.String("frequency", string(def.Frequency)),
		zap.Time("next_run", schedule.NextRun),
	)
	return schedule, nil
}

// Get returns a schedule by ID.
func (e *Engine) Get(ctx context.Context, id string) (crawl.Schedule, error) {
	return e.store.GetSchedule(ctx, id)
}

// List returns all schedules.
func (e *Engine) List(ctx context.Context) ([]crawl.Schedule, error) {
	return e.store.ListSchedules(ctx)
}

// Update merges the patch into a schedule. Absent fields stay as they
// are, so a caller can flip the active flag without resending the rest.
// NextRun is recomputed only when the recurrence itself changed, so
// editing the name or URL list never shifts the next firing.
func (e *Engine) Update(ctx context.Context, id string, patch Patch) (crawl.Schedule, error) {
	now := e.clock.Now().UTC()
	return e.store.UpdateSchedule(ctx, id, func(s *crawl.Schedule) error {
		prevFreq, prevCron := s.Frequency, s.CronExpression
		if patch.Name != nil {
			if *patch.Name == "" {
				return fmt.Errorf("%w: schedule name is required", crawl.ErrInvalidRequest)
			}
			s.Name = *patch.Name
		}
		if patch.URLs != nil {
			if len(patch.URLs) == 0 {
				return fmt.Errorf("%w: at least one url is required", crawl.ErrInvalidRequest)
			}
			for _, rawURL := range patch.URLs {
				if err := jobs.ValidateURL(rawURL); err != nil {
					return err
				}
			}
			s.URLs = append([]string(nil), patch.URLs...)
		}
		if patch.Frequency != nil {
			if !patch.Frequency.Valid() {
				return fmt.Errorf("%w: unknown frequency %q", crawl.ErrInvalidRequest, *patch.Frequency)
			}
			s.Frequency = *patch.Frequency
		}
		if patch.CronExpression != nil {
			s.CronExpression = *patch.CronExpression
		}
		if patch.Settings != nil {
			s.Settings = patch.Settings
		}
		if patch.Active != nil {
			s.Active = *patch.Active
		}
		s.UpdatedAt = now
		if s.Frequency != prevFreq || s.CronExpression != prevCron {
			s.NextRun = e.nextRun(s.Frequency, s.CronExpression, now)
		}
		return nil
	})
}

// Delete removes a schedule. Jobs it already spawned are unaffected.
func (e *Engine) Delete(ctx context.Context, id string) error {
	deleted, err := e.store.DeleteSchedule(ctx, id)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if !deleted {
		return crawl.ErrScheduleNotFound
	}
	return nil
}

// Trigger fires a schedule immediately, regardless of NextRun or the
// active flag. LastRun moves; NextRun stays where the recurrence put
// it.
func (e *Engine) Trigger(ctx context.Context, id string) ([]crawl.Job, error) {
	schedule, err := e.store.GetSchedule(ctx, id)
	if err != nil {
		return nil, err
	}
	now := e.clock.Now().UTC()
	spawned := e.fanOut(ctx, schedule)
	if _, err := e.store.UpdateSchedule(ctx, id, func(s *crawl.Schedule) error {
		last := now
		s.LastRun = &last
		s.UpdatedAt = now
		return nil
	}); err != nil {
		return spawned, fmt.Errorf("record manual trigger: %w", err)
	}
	return spawned, nil
}

// TriggerDue fires every active schedule whose NextRun has arrived,
// then advances their recurrence. It returns how many jobs the sweep
// submitted.
func (e *Engine) TriggerDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.store.DueSchedules(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list due schedules: %w", err)
	}
	submitted := 0
	for _, schedule := range due {
		submitted += len(e.fanOut(ctx, schedule))
		if _, err := e.store.UpdateSchedule(ctx, schedule.ID, func(s *crawl.Schedule) error {
			last := now
			s.LastRun = &last
			s.NextRun = e.nextRun(s.Frequency, s.CronExpression, now)
			s.UpdatedAt = now
			return nil
		}); err != nil {
			e.logger.Error("advance schedule failed",
				zap.String("schedule_id", schedule.ID),
				zap.Error(err),
			)
		}
	}
	return submitted, nil
}

// Run polls for due schedules until the context finishes.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := e.TriggerDue(ctx, e.clock.Now().UTC())
			if err != nil {
				e.logger.Error("schedule sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				e.logger.Info("schedule sweep submitted jobs", zap.Int("jobs", n))
			}
		}
	}
}

// fanOut submits one job per schedule URL. A failed submission is
// logged and does not block the remaining URLs.
func (e *Engine) fanOut(ctx context.Context, schedule crawl.Schedule) []crawl.Job {
	var spawned []crawl.Job
	for _, rawURL := range schedule.URLs {
		job, cached, err := e.submitter.Submit(ctx, rawURL, schedule.ID, schedule.Settings)
		if err != nil {
			e.logger.Error("scheduled submission failed",
				zap.String("schedule_id", schedule.ID),
				zap.String("url", rawURL),
				zap.Error(err),
			)
			continue
		}
		if cached {
			e.logger.Debug("scheduled submission served from cache",
				zap.String("schedule_id", schedule.ID),
				zap.String("job_id", job.ID),
			)
		}
		spawned = append(spawned, job)
	}
	telemetry.ObserveScheduleFanout(len(spawned))
	return spawned
}

// nextRun computes the next firing after from. A cron expression, when
// present, overrides the frequency interval whatever the frequency is;
// the frequency then only serves as the fallback when the expression
// does not parse.
func (e *Engine) nextRun(freq crawl.Frequency, cronExpr string, from time.Time) time.Time {
	if cronExpr != "" {
		sched, err := cronParser.Parse(cronExpr)
		if err == nil {
			return sched.Next(from)
		}
		e.logger.Warn("invalid cron expression, falling back to frequency",
			zap.String("cron", cronExpr),
			zap.Error(err),
		)
	}
	switch freq {
	case crawl.FrequencyHourly:
		return from.Add(time.Hour)
	case crawl.FrequencyDaily:
		return from.Add(24 * time.Hour)
	case crawl.FrequencyWeekly:
		return from.Add(7 * 24 * time.Hour)
	case crawl.FrequencyMonthly:
		return addMonthClamped(from)
	default:
		// Custom with no usable expression behaves like daily.
		return from.Add(fallbackInterval)
	}
}

// addMonthClamped advances one calendar month, clamping the day to the
// target month's length. time.AddDate would roll Jan 31 into early
// March instead.
func addMonthClamped(t time.Time) time.Time {
	year, month, day := t.Date()
	// Day 0 of the month after next is the last day of the next month.
	lastDay := time.Date(year, month+2, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month+1, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func validateDefinition(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: schedule name is required", crawl.ErrInvalidRequest)
	}
	if len(def.URLs) == 0 {
		return fmt.Errorf("%w: at least one url is required", crawl.ErrInvalidRequest)
	}
	for _, rawURL := range def.URLs {
		if err := jobs.ValidateURL(rawURL); err != nil {
			return err
		}
	}
	if !def.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", crawl.ErrInvalidRequest, def.Frequency)
	}
	return nil
}
