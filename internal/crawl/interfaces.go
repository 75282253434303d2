package crawl

import (
	"context"
	"time"
)

// JobStore persists crawl jobs. Implementations must enforce the
// monotonic status transitions: the Mark methods fail when the job is
// not in the expected prior state.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	MarkProcessing(ctx context.Context, jobID string) error
	MarkCompleted(ctx context.Context, jobID string, results Result, at time.Time) error
	MarkFailed(ctx context.Context, jobID string, errText string) error
	// LatestCompletedByURL returns the most recently completed job for
	// the URL, or ErrJobNotFound when none exists.
	LatestCompletedByURL(ctx context.Context, url string) (Job, error)
}

// ScheduleStore persists crawl schedules with atomic read-modify-write
// per schedule id.
type ScheduleStore interface {
	CreateSchedule(ctx context.Context, schedule Schedule) error
	GetSchedule(ctx context.Context, id string) (Schedule, error)
	ListSchedules(ctx context.Context) ([]Schedule, error)
	UpdateSchedule(ctx context.Context, id string, mutate func(*Schedule) error) (Schedule, error)
	DeleteSchedule(ctx context.Context, id string) (bool, error)
	// DueSchedules returns every active schedule whose NextRun is at or
	// before now.
	DueSchedules(ctx context.Context, now time.Time) ([]Schedule, error)
}

// Fetcher fetches a URL under a crawl session and returns the body
// plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string, sessionID string) (Response, error)
}

// Summarizer produces a short text summary for the given content,
// tagged with a context label. It never fails: implementations degrade
// to a local fallback string.
type Summarizer interface {
	Summarize(ctx context.Context, text string, contextLabel string) string
}

// Analyzer turns one seed URL into an extraction Result. A positive
// maxPages overrides the analyzer's default page budget.
type Analyzer interface {
	Analyze(ctx context.Context, seedURL string, sessionID string, maxPages int) (Result, error)
}

// Queue provides enqueue/dequeue semantics for crawl jobs.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and schedule IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
