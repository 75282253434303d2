// Package jobs manages crawl job intake and lookup.
package jobs

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
)

// DedupWindow is how long a completed crawl for a URL suppresses new
// submissions of the same URL.
const DedupWindow = 24 * time.Hour

// Manager validates submissions, deduplicates against recent results,
// and enqueues accepted jobs.
type Manager struct {
	store  crawl.JobStore
	queue  crawl.Queue
	ids    crawl.IDGenerator
	clock  crawl.Clock
	logger *zap.Logger
}

// NewManager constructs a Manager.
func NewManager(
	store crawl.JobStore,
	queue crawl.Queue,
	ids crawl.IDGenerator,
	clock crawl.Clock,
	logger *zap.Logger,
) *Manager {
	return &Manager{
		store:  store,
		queue:  queue,
		ids:    ids,
		clock:  clock,
		logger: logger,
	}
}

// Submit accepts a crawl request for the URL. When a completed job for
// the same URL exists within the dedup window, that job is returned
// instead of creating a new one; the second return reports whether the
// result came from the cache. Settings travel with the queue item so
// the worker can apply per-schedule tuning; nil is fine for ad-hoc
// submissions.
func (m *Manager) Submit(ctx context.Context, rawURL string, scheduleID string, settings map[string]string) (crawl.Job, bool, error) {
	if err := ValidateURL(rawURL); err != nil {
		return crawl.Job{}, false, err
	}
	now := m.clock.Now().UTC()

	if cached, err := m.store.LatestCompletedByURL(ctx, rawURL); err == nil {
		if cached.CompletedAt != nil && cached.CompletedAt.After(now.Add(-DedupWindow)) {
			m.logger.Info("returning cached crawl",
				zap.String("job_id", cached.ID),
				zap.String("url", rawURL),
			)
			return cached, true, nil
		}
	}

	id, err := m.ids.NewID()
	if err != nil {
		return crawl.Job{}, false, fmt.Errorf("generate job id: %w", err)
	}
	job := crawl.Job{
		ID:         id,
		URL:        rawURL,
		Status:     crawl.JobStatusPending,
		ScheduleID: scheduleID,
		CreatedAt:  now,
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return crawl.Job{}, false, fmt.Errorf("create job: %w", err)
	}
	if err := m.queue.Enqueue(ctx, crawl.QueueItem{JobID: id, URL: rawURL, Submitted: now.Unix(), Settings: settings}); err != nil {
		return crawl.Job{}, false, fmt.Errorf("enqueue job: %w", err)
	}
	m.logger.Info("job submitted",
		zap.String("job_id", id),
		zap.String("url", rawURL),
		zap.String("schedule_id", scheduleID),
	)
	return job, false, nil
}

// Get returns a job by ID.
func (m *Manager) Get(ctx context.Context, jobID string) (crawl.Job, error) {
	return m.store.GetJob(ctx, jobID)
}

// ValidateURL rejects anything that is not an absolute http or https
// URL with a host.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", crawl.ErrInvalidRequest)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", crawl.ErrInvalidRequest, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", crawl.ErrInvalidRequest)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url host is required", crawl.ErrInvalidRequest)
	}
	return nil
}
