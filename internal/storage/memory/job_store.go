// Package memory provides store implementations for local development
// and testing.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/leadscope/siteintel/internal/crawl"
)

// JobStore is an in-memory crawl.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]crawl.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]crawl.Job),
	}
}

// CreateJob stores a new job.
func (s *JobStore) CreateJob(_ context.Context, job crawl.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	s.jobs[job.ID] = job
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (crawl.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawl.Job{}, crawl.ErrJobNotFound
	}
	return job, nil
}

// MarkProcessing transitions a pending job to processing.
func (s *JobStore) MarkProcessing(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawl.ErrJobNotFound
	}
	if job.Status != crawl.JobStatusPending {
		return fmt.Errorf("job %s is %s, not pending", jobID, job.Status)
	}
	job.Status = crawl.JobStatusProcessing
	s.jobs[jobID] = job
	return nil
}

// MarkCompleted transitions a processing job to completed, attaching
// its results and completion time.
func (s *JobStore) MarkCompleted(_ context.Context, jobID string, results crawl.Result, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawl.ErrJobNotFound
	}
	if job.Status != crawl.JobStatusProcessing {
		return fmt.Errorf("job %s is %s, not processing", jobID, job.Status)
	}
	job.Status = crawl.JobStatusCompleted
	job.Results = &results
	job.Error = ""
	completed := at
	job.CompletedAt = &completed
	s.jobs[jobID] = job
	return nil
}

// MarkFailed transitions a processing job to failed with the error
// text. CompletedAt stays nil on failure.
func (s *JobStore) MarkFailed(_ context.Context, jobID string, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return crawl.ErrJobNotFound
	}
	if job.Status != crawl.JobStatusProcessing {
		return fmt.Errorf("job %s is %s, not processing", jobID, job.Status)
	}
	job.Status = crawl.JobStatusFailed
	job.Error = errText
	s.jobs[jobID] = job
	return nil
}

// LatestCompletedByURL returns the most recently completed job for a
// URL, by completion time.
func (s *JobStore) LatestCompletedByURL(_ context.Context, url string) (crawl.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		latest crawl.Job
		found  bool
	)
	for _, job := range s.jobs {
		if job.URL != url || job.Status != crawl.JobStatusCompleted || job.CompletedAt == nil {
			continue
		}
		if !found || job.CompletedAt.After(*latest.CompletedAt) {
			latest = job
			found = true
		}
	}
	if !found {
		return crawl.Job{}, crawl.ErrJobNotFound
	}
	return latest, nil
}
