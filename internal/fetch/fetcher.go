// Package fetch implements the resilient HTTP fetcher: identity
// rotation, fingerprinting, retry with backoff, and request metrics.
package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/ratelimit"
	"github.com/leadscope/siteintel/internal/rotation"
	"github.com/leadscope/siteintel/internal/telemetry"
)

// DefaultSession is the session id used when the caller supplies none.
// Non-default sessions get an extra randomized delay between retries.
const DefaultSession = "default"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// Config controls retry and backoff behavior. The zero value is not
// usable; call DefaultConfig and override what tests need to shrink.
type Config struct {
	MaxRetries int
	Timeout    time.Duration

	// Backoff for retryable failures: base·2^(attempt-1) + jitter.
	RetryBaseDelay time.Duration
	RetryJitterMax time.Duration
	// Extra delay applied to retries of non-default sessions.
	SessionJitterMax time.Duration

	// Backoff after HTTP 429: min(base·2^attempt + jitter, cap).
	ThrottleBaseDelay time.Duration
	ThrottleJitterMax time.Duration
	ThrottleMaxDelay  time.Duration

	// Backoff after HTTP 401/403: base + jitter.
	BlockedBaseDelay time.Duration
	BlockedJitterMax time.Duration
}

// DefaultConfig returns the production backoff schedule.
func DefaultConfig() Config {
	return Config{
		MaxRetries:        3,
		Timeout:           30 * time.Second,
		RetryBaseDelay:    time.Second,
		RetryJitterMax:    2 * time.Second,
		SessionJitterMax:  time.Second,
		ThrottleBaseDelay: time.Second,
		ThrottleJitterMax: 5 * time.Second,
		ThrottleMaxDelay:  45 * time.Second,
		BlockedBaseDelay:  2 * time.Second,
		BlockedJitterMax:  3 * time.Second,
	}
}

// Fetcher wraps HTTP calls with rotation, fingerprinting, retry, and
// metrics. It implements crawl.Fetcher.
type Fetcher struct {
	cfg     Config
	pool    *rotation.Pool
	limiter *ratelimit.Limiter
	metrics *Metrics
	logger  *zap.Logger

	client *http.Client

	mu              sync.Mutex
	proxyTransports map[string]*http.Transport
}

// New constructs a Fetcher.
func New(cfg Config, pool *rotation.Pool, limiter *ratelimit.Limiter, metrics *Metrics, logger *zap.Logger) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Fetcher{
		cfg:             cfg,
		pool:            pool,
		limiter:         limiter,
		metrics:         metrics,
		logger:          logger,
		client:          &http.Client{Timeout: cfg.Timeout},
		proxyTransports: make(map[string]*http.Transport),
	}
}

// Fetch retrieves url under the given session, rotating identity on
// every attempt. It fails fast with ErrRateLimitExceeded on quota
// denial and with ErrFetchExhausted once the retry budget is spent.
func (f *Fetcher) Fetch(ctx context.Context, url string, sessionID string) (crawl.Response, error) {
	if sessionID == "" {
		sessionID = DefaultSession
	}
	if !f.limiter.Admit(sessionID) {
		telemetry.ObserveRateLimitDenial()
		return crawl.Response{}, fmt.Errorf("session %q: %w", sessionID, crawl.ErrRateLimitExceeded)
	}

	f.metrics.RecordRequest()
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		resp, err := f.attempt(ctx, url)
		if err != nil {
			lastErr = err
			telemetry.ObserveFetchAttempt("retry")
			f.logger.Warn("fetch attempt failed",
				zap.String("url", url),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			if attempt == f.cfg.MaxRetries {
				break
			}
			if err := f.sleep(ctx, f.retryDelay(attempt, sessionID)); err != nil {
				return crawl.Response{}, err
			}
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			latency := time.Since(start)
			f.metrics.RecordSuccess(latency)
			telemetry.ObserveFetchAttempt("success")
			telemetry.ObserveFetchDuration(latency)
			telemetry.ObserveCrawl(url, "ok")
			resp.Duration = latency
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("http 429 from %s", url)
			telemetry.ObserveFetchAttempt("throttled")
			f.logger.Info("throttled, backing off",
				zap.String("url", url),
				zap.Int("attempt", attempt),
			)
			if attempt == f.cfg.MaxRetries {
				break
			}
			if err := f.sleep(ctx, f.throttleDelay(attempt)); err != nil {
				return crawl.Response{}, err
			}

		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			// Likely blocked; the next attempt gets a fresh identity.
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, url)
			telemetry.ObserveFetchAttempt("blocked")
			f.logger.Info("access denied, rotating identity",
				zap.String("url", url),
				zap.Int("status", resp.StatusCode),
				zap.Int("attempt", attempt),
			)
			if attempt == f.cfg.MaxRetries {
				break
			}
			if err := f.sleep(ctx, f.blockedDelay()); err != nil {
				return crawl.Response{}, err
			}

		default:
			lastErr = fmt.Errorf("http %d from %s", resp.StatusCode, url)
			telemetry.ObserveFetchAttempt("retry")
			if attempt == f.cfg.MaxRetries {
				break
			}
			if err := f.sleep(ctx, f.retryDelay(attempt, sessionID)); err != nil {
				return crawl.Response{}, err
			}
		}
	}

	f.metrics.RecordFailure()
	telemetry.ObserveFetchAttempt("failure")
	telemetry.ObserveCrawl(url, "failed")
	return crawl.Response{}, fmt.Errorf("fetch %s after %d attempts: %w (last: %v)", url, f.cfg.MaxRetries, crawl.ErrFetchExhausted, lastErr)
}

// attempt issues a single HTTP request with a freshly rolled identity.
func (f *Fetcher) attempt(ctx context.Context, url string) (crawl.Response, error) {
	userAgent := f.pool.UserAgent()
	proxy, hasProxy := f.pool.Proxy()
	proxyAddr := ""
	if hasProxy {
		proxyAddr = proxy.Addr()
	}
	f.metrics.RecordIdentity(userAgent, proxyAddr)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return crawl.Response{}, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	// Accept-Encoding is left to the transport so gzip is decoded
	// transparently.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("DNT", "1")
	for k, v := range f.pool.FingerprintHeaders() {
		req.Header.Set(k, v)
	}

	client := f.client
	if hasProxy {
		client = &http.Client{Timeout: f.cfg.Timeout, Transport: f.transportFor(proxy)}
	}

	resp, err := client.Do(req)
	if err != nil {
		return crawl.Response{}, fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return crawl.Response{}, fmt.Errorf("read body: %w", err)
	}

	return crawl.Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       body,
	}, nil
}

func (f *Fetcher) transportFor(proxy rotation.ProxyConfig) *http.Transport {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := proxy.Addr()
	if t, ok := f.proxyTransports[key]; ok {
		return t
	}
	t := &http.Transport{Proxy: http.ProxyURL(proxy.URL())}
	f.proxyTransports[key] = t
	return t
}

// retryDelay is base·2^(attempt-1) plus jitter, plus an extra
// randomized delay for non-default sessions.
func (f *Fetcher) retryDelay(attempt int, sessionID string) time.Duration {
	d := f.cfg.RetryBaseDelay << (attempt - 1)
	d += randDuration(f.cfg.RetryJitterMax)
	if sessionID != DefaultSession {
		d += randDuration(f.cfg.SessionJitterMax)
	}
	return d
}

// throttleDelay is min(base·2^attempt + jitter, cap).
func (f *Fetcher) throttleDelay(attempt int) time.Duration {
	d := f.cfg.ThrottleBaseDelay << attempt
	d += randDuration(f.cfg.ThrottleJitterMax)
	if d > f.cfg.ThrottleMaxDelay {
		d = f.cfg.ThrottleMaxDelay
	}
	return d
}

func (f *Fetcher) blockedDelay() time.Duration {
	return f.cfg.BlockedBaseDelay + randDuration(f.cfg.BlockedJitterMax)
}

// sleep suspends only the calling task, honoring cancellation.
func (f *Fetcher) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("backoff interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}

func randDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
