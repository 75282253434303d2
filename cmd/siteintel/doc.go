// Package main hosts the siteintel service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, crawl submission, job lookup, schedule
//     management, and analytics endpoints. Requests are validated and persisted via the JobStore
//     before being enqueued for work.
//   - Dispatcher & queue: jobs flow through a bounded in-memory queue sized by config.Crawler.QueueDepth
//     and are fanned out to a fixed worker pool sized by config.Crawler.Concurrency. Context cancellation
//     stops workers cleanly on shutdown.
//   - Crawl pipeline: workers hand each job to the orchestrator, which fetches the seed page through the
//     rotating fetcher, classifies internal links into sections, visits them under a page budget, follows
//     a discovered LinkedIn company page, and assembles the extraction result with AI summaries.
//   - Recurrence: the schedule engine sweeps for due schedules on a configurable tick and re-submits
//     their URLs through the job manager, which deduplicates against recent completions.
//   - Persistence: jobs and schedules live in memory by default, or in Postgres (pgx pool) when
//     configured. Results are stored as jsonb alongside job lifecycle state.
//   - Configuration & plumbing: Viper populates config from env/files (SITEINTEL_ prefix); zap provides
//     structured logging; Prometheus metrics are exported via the telemetry middleware and /metrics.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool. Shutdown is coordinated via context
//     cancellation propagated from main through dispatcher to workers and the schedule engine.
//   - Rate limiting/backoff: per-session fixed-window limiting inside the fetcher, plus exponential
//     backoff with jitter on retryable failures and longer holds after 429/403 responses.
//   - Observability: zap logs carry job IDs and URLs at key transitions; Prometheus counters/histograms
//     track API and crawl activity; /v1/analytics reports the fetcher's rolling request statistics.
//
// Quick checklist:
//   - Configure env vars: SITEINTEL_SERVER_PORT, SITEINTEL_CRAWLER_CONCURRENCY,
//     SITEINTEL_HTTP_TIMEOUT_SECONDS, SITEINTEL_RATELIMIT_*, SITEINTEL_STORAGE_* (provider/dsn),
//     and SITEINTEL_SUMMARIZER_API_KEY for live summaries.
//   - Run locally: go run ./cmd/siteintel -config config.yaml (or rely solely on env overrides).
//   - The process reacts to SIGTERM for graceful drain and shutdown of workers.
package main
