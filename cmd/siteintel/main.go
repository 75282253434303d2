// Package main wires together the siteintel service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/api"
	"github.com/leadscope/siteintel/internal/clock/system"
	"github.com/leadscope/siteintel/internal/config"
	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/dispatcher"
	"github.com/leadscope/siteintel/internal/fetch"
	"github.com/leadscope/siteintel/internal/id/uuid"
	"github.com/leadscope/siteintel/internal/jobs"
	"github.com/leadscope/siteintel/internal/logging"
	"github.com/leadscope/siteintel/internal/orchestrate"
	"github.com/leadscope/siteintel/internal/queue/memory"
	"github.com/leadscope/siteintel/internal/ratelimit"
	"github.com/leadscope/siteintel/internal/rotation"
	"github.com/leadscope/siteintel/internal/schedule"
	storememory "github.com/leadscope/siteintel/internal/storage/memory"
	"github.com/leadscope/siteintel/internal/storage/postgres"
	"github.com/leadscope/siteintel/internal/summarize"
	"github.com/leadscope/siteintel/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clock := system.New()
	idGen := uuid.NewUUIDGenerator()

	jobStore, scheduleStore, closeStores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		os.Exit(1)
	}
	defer closeStores()

	queue := memory.NewQueue(cfg.Crawler.GlobalQueueDepth)
	pool := rotation.NewPool(nil)
	limiter := ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimitWindow(), clock)
	metrics := fetch.NewMetrics()

	fetchCfg := fetch.DefaultConfig()
	fetchCfg.MaxRetries = cfg.HTTP.MaxRetries
	fetchCfg.Timeout = cfg.FetchTimeout()
	fetcher := fetch.New(fetchCfg, pool, limiter, metrics, logger.Named("fetch"))

	summarizer := summarize.New(summarize.Config{
		APIKey:   cfg.Summarizer.APIKey,
		Endpoint: cfg.Summarizer.Endpoint,
	}, logger.Named("summarize"))

	analyzer := orchestrate.New(orchestratorConfig(cfg), fetcher, summarizer, logger.Named("orchestrate"))
	manager := jobs.NewManager(jobStore, queue, idGen, clock, logger.Named("jobs"))

	var workers []*worker.Worker
	for i := 0; i < cfg.Crawler.Concurrency; i++ {
		workers = append(workers, worker.New(
			queue,
			jobStore,
			analyzer,
			clock,
			logger.Named("worker").With(zap.Int("index", i)),
		))
	}
	dispatch := dispatcher.New(queue, workers)

	engine := schedule.NewEngine(scheduleStore, manager, idGen, clock, logger.Named("schedule"), cfg.SchedulerTick())
	apiServer := api.NewServer(manager, engine, metrics, limiter, logger.Named("api"), cfg)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dispatcher started")
		dispatch.Run(ctx)
	}()

	go func() {
		logger.Info("schedule engine started", zap.Duration("tick", cfg.SchedulerTick()))
		engine.Run(ctx)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	queue.Close()
	logger.Info("shutdown complete")
}

// orchestratorConfig converts the millisecond pacing knobs into the
// orchestrator's duration config.
func orchestratorConfig(cfg config.Config) orchestrate.Config {
	oc := orchestrate.DefaultConfig()
	if cfg.Crawler.MaxSectionPages > 0 {
		oc.MaxSectionPages = cfg.Crawler.MaxSectionPages
	}
	oc.RequestDelayMin = time.Duration(cfg.Crawler.RequestDelayMinMs) * time.Millisecond
	oc.RequestDelayMax = time.Duration(cfg.Crawler.RequestDelayMaxMs) * time.Millisecond
	oc.PageDelayMin = time.Duration(cfg.Crawler.PageDelayMinMs) * time.Millisecond
	oc.PageDelayMax = time.Duration(cfg.Crawler.PageDelayMaxMs) * time.Millisecond
	oc.LinkedInDelayMin = time.Duration(cfg.Crawler.LinkedInDelayMinMs) * time.Millisecond
	oc.LinkedInDelayMax = time.Duration(cfg.Crawler.LinkedInDelayMaxMs) * time.Millisecond
	return oc
}

// buildStores returns the configured job and schedule stores plus a
// cleanup func. Postgres shares one connection pool across both.
func buildStores(ctx context.Context, cfg config.Config, logger *zap.Logger) (crawl.JobStore, crawl.ScheduleStore, func(), error) {
	switch cfg.Storage.Provider {
	case "memory", "":
		return storememory.NewJobStore(), storememory.NewScheduleStore(), func() {}, nil
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Storage.DSN,
			MaxConns:        cfg.Storage.MaxConns,
			MinConns:        cfg.Storage.MinConns,
			MaxConnLifetime: time.Duration(cfg.Storage.ConnLifetimeMin) * time.Minute,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		jobStore, err := postgres.NewJobStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		scheduleStore, err := postgres.NewScheduleStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, nil, err
		}
		logger.Info("postgres storage initialized")
		return jobStore, scheduleStore, pool.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
	}
}
