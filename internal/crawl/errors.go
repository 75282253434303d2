package crawl

import "errors"

// Error taxonomy surfaced across subsystem boundaries. Callers match
// with errors.Is; subsystems wrap these with fmt.Errorf("...: %w").
var (
	// ErrInvalidRequest marks user-correctable bad input, reported
	// synchronously.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRateLimitExceeded means the session exceeded its quota. The
	// fetcher fails fast on it and never retries.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrFetchExhausted means all retry attempts were consumed. It
	// propagates up and fails the owning job.
	ErrFetchExhausted = errors.New("fetch attempts exhausted")

	// ErrJobNotFound is returned on job lookup misses.
	ErrJobNotFound = errors.New("job not found")

	// ErrScheduleNotFound is returned on schedule lookup misses.
	ErrScheduleNotFound = errors.New("schedule not found")
)
