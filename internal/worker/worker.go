// Package worker implements the crawl job execution loop.
package worker

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/telemetry"
)

// Worker consumes queue items and runs the analysis pipeline for each
// job.
type Worker struct {
	queue    crawl.Queue
	jobs     crawl.JobStore
	analyzer crawl.Analyzer
	clock    crawl.Clock
	logger   *zap.Logger
}

// New constructs a Worker.
func New(
	queue crawl.Queue,
	jobs crawl.JobStore,
	analyzer crawl.Analyzer,
	clock crawl.Clock,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:    queue,
		jobs:     jobs,
		analyzer: analyzer,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

func (w *Worker) processJob(ctx context.Context, item crawl.QueueItem) {
	if err := w.jobs.MarkProcessing(ctx, item.JobID); err != nil {
		w.logger.Error("mark processing failed",
			zap.String("job_id", item.JobID),
			zap.Error(err),
		)
		return
	}

	// Each job gets its own rate-limit session so one site's budget
	// never throttles another job. A schedule's session_tag setting
	// prefixes the session for per-schedule grouping.
	sessionID := "job-" + item.JobID
	if tag := item.Settings["session_tag"]; tag != "" {
		sessionID = tag + "-" + item.JobID
	}
	maxPages := 0
	if v := item.Settings["max_pages"]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			maxPages = n
		}
	}
	result, err := w.analyzer.Analyze(ctx, item.URL, sessionID, maxPages)
	if err != nil {
		telemetry.ObserveJob("failed")
		telemetry.ObserveCrawl(item.URL, "failed")
		w.logger.Error("crawl failed",
			zap.String("job_id", item.JobID),
			zap.String("url", item.URL),
			zap.Error(err),
		)
		if err := w.jobs.MarkFailed(ctx, item.JobID, err.Error()); err != nil {
			w.logger.Error("mark failed failed", zap.String("job_id", item.JobID), zap.Error(err))
		}
		return
	}

	if err := w.jobs.MarkCompleted(ctx, item.JobID, result, w.clock.Now().UTC()); err != nil {
		w.logger.Error("mark completed failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	telemetry.ObserveJob("completed")
	telemetry.ObserveCrawl(item.URL, "completed")
	w.logger.Info("crawl completed",
		zap.String("job_id", item.JobID),
		zap.String("url", item.URL),
		zap.Int("pages_analyzed", result.Stats.PagesAnalyzed),
		zap.Int("sections_found", result.Stats.SectionsFound),
	)
}
