// Package ratelimit implements per-session fixed-window admission
// control for crawl fetches.
package ratelimit

import (
	"sync"
	"time"

	"github.com/leadscope/siteintel/internal/crawl"
)

// Default quota: 30 requests per 60-second window per session.
const (
	DefaultMaxRequests = 30
	DefaultWindow      = 60 * time.Second
)

type bucket struct {
	count       int
	lastRequest time.Time
}

// Limiter maintains one counter bucket per session key. A bucket
// resets to zero once more than the window has elapsed since its last
// recorded request. This is a fixed-window limiter: bursts at window
// boundaries are accepted.
type Limiter struct {
	mu       sync.Mutex
	sessions map[string]*bucket
	limit    int
	window   time.Duration
	clock    crawl.Clock
}

// New creates a Limiter. Non-positive limit or window fall back to the
// defaults.
func New(limit int, window time.Duration, clock crawl.Clock) *Limiter {
	if limit <= 0 {
		limit = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &Limiter{
		sessions: make(map[string]*bucket),
		limit:    limit,
		window:   window,
		clock:    clock,
	}
}

// Admit records one request against the session and reports whether it
// is within quota. A denied request is not recorded.
func (l *Limiter) Admit(sessionID string) bool {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.sessions[sessionID]
	if !ok {
		b = &bucket{}
		l.sessions[sessionID] = b
	}
	if now.Sub(b.lastRequest) > l.window {
		b.count = 0
	}
	if b.count >= l.limit {
		return false
	}
	b.count++
	b.lastRequest = now
	return true
}

// ActiveSessions returns the number of session buckets currently held.
func (l *Limiter) ActiveSessions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
