package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/leadscope/siteintel/internal/config"
	"github.com/leadscope/siteintel/internal/crawl"
	"github.com/leadscope/siteintel/internal/fetch"
	"github.com/leadscope/siteintel/internal/jobs"
	"github.com/leadscope/siteintel/internal/ratelimit"
	"github.com/leadscope/siteintel/internal/schedule"
	"github.com/leadscope/siteintel/internal/telemetry"
)

// Server wires HTTP handlers to the job manager and schedule engine.
type Server struct {
	router  chi.Router
	manager *jobs.Manager
	engine  *schedule.Engine
	metrics *fetch.Metrics
	limiter *ratelimit.Limiter
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	manager *jobs.Manager,
	engine *schedule.Engine,
	metrics *fetch.Metrics,
	limiter *ratelimit.Limiter,
	logger *zap.Logger,
	cfg config.Config,
) *Server {
	s := &Server{
		manager: manager,
		engine:  engine,
		metrics: metrics,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(telemetry.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/crawl", s.submitCrawl)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Get("/analytics", s.analytics)
		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", s.createSchedule)
			r.Get("/", s.listSchedules)
			r.Route("/{schedule_id}", func(r chi.Router) {
				r.Get("/", s.getSchedule)
				r.Put("/", s.updateSchedule)
				r.Patch("/", s.updateSchedule)
				r.Delete("/", s.deleteSchedule)
				r.Post("/trigger", s.triggerSchedule)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type crawlRequest struct {
	URL string `json:"url"`
}

type crawlResponse struct {
	JobID  string     `json:"job_id"`
	Status string     `json:"status"`
	Cached bool       `json:"cached,omitempty"`
	Job    *crawl.Job `json:"job,omitempty"`
}

func (s *Server) submitCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	job, cached, err := s.manager.Submit(r.Context(), req.URL, "", nil)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	resp := crawlResponse{JobID: job.ID, Status: string(job.Status), Cached: cached}
	if cached {
		// A cache hit already carries full results.
		resp.Job = &job
		s.writeJSON(w, http.StatusOK, resp)
		return
	}
	s.writeJSON(w, http.StatusAccepted, resp)
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	job, err := s.manager.Get(r.Context(), jobID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, job)
}

type scheduleRequest struct {
	Name           string            `json:"name"`
	URLs           []string          `json:"urls"`
	Frequency      string            `json:"frequency"`
	CronExpression string            `json:"cron_expression"`
	Settings       map[string]string `json:"settings"`
	Active         *bool             `json:"is_active"`
}

func (s *Server) decodeScheduleRequest(r *http.Request) (schedule.Definition, error) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return schedule.Definition{}, fmt.Errorf("%w: invalid JSON", crawl.ErrInvalidRequest)
	}
	if err := validateSettings(req.Settings); err != nil {
		return schedule.Definition{}, err
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return schedule.Definition{
		Name:           req.Name,
		URLs:           req.URLs,
		Frequency:      crawl.Frequency(req.Frequency),
		CronExpression: req.CronExpression,
		Settings:       req.Settings,
		Active:         active,
	}, nil
}

// validateSettings rejects unknown keys and malformed values so bad
// settings fail at submission, not mid-crawl.
func validateSettings(settings map[string]string) error {
	for key, value := range settings {
		switch key {
		case "max_pages":
			n, err := strconv.Atoi(value)
			if err != nil || n <= 0 {
				return fmt.Errorf("%w: settings.max_pages must be a positive integer", crawl.ErrInvalidRequest)
			}
		case "session_tag":
			if value == "" {
				return fmt.Errorf("%w: settings.session_tag must not be empty", crawl.ErrInvalidRequest)
			}
		default:
			return fmt.Errorf("%w: unknown setting %q", crawl.ErrInvalidRequest, key)
		}
	}
	return nil
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	def, err := s.decodeScheduleRequest(r)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	created, err := s.engine.Create(r.Context(), def)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	schedules, err := s.engine.List(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if schedules == nil {
		schedules = []crawl.Schedule{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"schedules": schedules})
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	found, err := s.engine.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

// scheduleUpdateRequest mirrors scheduleRequest with every field
// optional; absent fields leave the stored schedule untouched.
type scheduleUpdateRequest struct {
	Name           *string           `json:"name"`
	URLs           []string          `json:"urls"`
	Frequency      *string           `json:"frequency"`
	CronExpression *string           `json:"cron_expression"`
	Settings       map[string]string `json:"settings"`
	Active         *bool             `json:"is_active"`
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	var req scheduleUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Settings != nil {
		if err := validateSettings(req.Settings); err != nil {
			s.writeDomainError(w, err)
			return
		}
	}
	patch := schedule.Patch{
		Name:           req.Name,
		URLs:           req.URLs,
		CronExpression: req.CronExpression,
		Settings:       req.Settings,
		Active:         req.Active,
	}
	if req.Frequency != nil {
		freq := crawl.Frequency(*req.Frequency)
		patch.Frequency = &freq
	}
	updated, err := s.engine.Update(r.Context(), id, patch)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	if err := s.engine.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) triggerSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "schedule_id")
	spawned, err := s.engine.Trigger(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	jobIDs := make([]string, 0, len(spawned))
	for _, job := range spawned {
		jobIDs = append(jobIDs, job.ID)
	}
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"schedule_id": id,
		"job_ids":     jobIDs,
	})
}

type analyticsResponse struct {
	fetch.Snapshot
	SuccessRatePct float64 `json:"success_rate_pct"`
	ActiveSessions int     `json:"active_sessions"`
}

func (s *Server) analytics(w http.ResponseWriter, _ *http.Request) {
	snap := s.metrics.Snapshot()
	resp := analyticsResponse{Snapshot: snap, ActiveSessions: s.limiter.ActiveSessions()}
	if snap.TotalRequests > 0 {
		resp.SuccessRatePct = 100 * float64(snap.SuccessfulRequests) / float64(snap.TotalRequests)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// writeDomainError maps sentinel errors onto HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, crawl.ErrInvalidRequest):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, crawl.ErrJobNotFound), errors.Is(err, crawl.ErrScheduleNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		s.writeError(w, http.StatusRequestTimeout, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
