// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/crawl for job submission, GET /v1/jobs/{job_id} for results.
//   - /v1/schedules for recurring crawl management, including manual triggers.
//   - GET /v1/analytics for the fetcher's rolling request statistics.
package api
