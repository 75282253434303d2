package fetch

import (
	"sync"
	"time"
)

// Metrics aggregates process-wide request statistics. It is
// constructed once at startup and passed by reference into the
// Fetcher, so tests can use a fresh instance.
type Metrics struct {
	mu                 sync.Mutex
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	avgResponseMs      float64
	userAgents         map[string]struct{}
	proxies            map[string]struct{}
}

// Snapshot is a point-in-time copy of the aggregated counters.
type Snapshot struct {
	TotalRequests      int64   `json:"total_requests"`
	SuccessfulRequests int64   `json:"successful_requests"`
	FailedRequests     int64   `json:"failed_requests"`
	AvgResponseTimeMs  float64 `json:"avg_response_time_ms"`
	UserAgentsRotated  int     `json:"user_agents_rotated"`
	ProxiesUsed        int     `json:"proxies_used"`
}

// NewMetrics creates an empty aggregator.
func NewMetrics() *Metrics {
	return &Metrics{
		userAgents: make(map[string]struct{}),
		proxies:    make(map[string]struct{}),
	}
}

// RecordRequest counts one top-level fetch call.
func (m *Metrics) RecordRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
}

// RecordIdentity notes the user agent and proxy chosen for an attempt.
func (m *Metrics) RecordIdentity(userAgent, proxyAddr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userAgents[userAgent] = struct{}{}
	if proxyAddr != "" {
		m.proxies[proxyAddr] = struct{}{}
	}
}

// RecordSuccess counts one successful fetch and folds its latency into
// the rolling average via incremental mean.
func (m *Metrics) RecordSuccess(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successfulRequests++
	ms := float64(latency.Milliseconds())
	m.avgResponseMs += (ms - m.avgResponseMs) / float64(m.successfulRequests)
}

// RecordFailure counts one fetch that exhausted its retry budget.
func (m *Metrics) RecordFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedRequests++
}

// Snapshot returns a copy of the current counters.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		TotalRequests:      m.totalRequests,
		SuccessfulRequests: m.successfulRequests,
		FailedRequests:     m.failedRequests,
		AvgResponseTimeMs:  m.avgResponseMs,
		UserAgentsRotated:  len(m.userAgents),
		ProxiesUsed:        len(m.proxies),
	}
}
