package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leadscope/siteintel/internal/crawl"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := crawl.Job{ID: "job-1", URL: "https://example.com", Status: crawl.JobStatusPending}

	if err := store.CreateJob(ctx, job); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	if err := store.CreateJob(ctx, job); err == nil {
		t.Fatal("expected duplicate job error")
	}
	if err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}

	completedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	results := crawl.Result{Stats: crawl.Stats{PagesAnalyzed: 3}}
	if err := store.MarkCompleted(ctx, job.ID, results, completedAt); err != nil {
		t.Fatalf("MarkCompleted() error = %v", err)
	}

	final, err := store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if final.Status != crawl.JobStatusCompleted {
		t.Fatalf("expected completed status, got %s", final.Status)
	}
	if final.Results == nil || final.Results.Stats.PagesAnalyzed != 3 {
		t.Fatalf("expected results to persist, got %+v", final.Results)
	}
	if final.CompletedAt == nil || !final.CompletedAt.Equal(completedAt) {
		t.Fatalf("expected completion time %v, got %v", completedAt, final.CompletedAt)
	}
}

func TestJobStoreTransitionsAreMonotonic(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	if err := store.CreateJob(ctx, crawl.Job{ID: "job-1", Status: crawl.JobStatusPending}); err != nil {
		t.Fatalf("CreateJob() error = %v", err)
	}
	// Completing a pending job skips processing.
	if err := store.MarkCompleted(ctx, "job-1", crawl.Result{}, time.Now()); err == nil {
		t.Fatal("expected transition error for pending -> completed")
	}
	if err := store.MarkProcessing(ctx, "job-1"); err != nil {
		t.Fatalf("MarkProcessing() error = %v", err)
	}
	if err := store.MarkProcessing(ctx, "job-1"); err == nil {
		t.Fatal("expected transition error for processing -> processing")
	}
	if err := store.MarkFailed(ctx, "job-1", "upstream refused"); err != nil {
		t.Fatalf("MarkFailed() error = %v", err)
	}
	if err := store.MarkFailed(ctx, "job-1", "again"); err == nil {
		t.Fatal("expected transition error on terminal job")
	}

	failed, err := store.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if failed.Error != "upstream refused" {
		t.Fatalf("expected error text to persist, got %q", failed.Error)
	}
	if failed.CompletedAt != nil {
		t.Fatal("expected CompletedAt to stay nil on failure")
	}
}

func TestJobStoreLatestCompletedByURL(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	if _, err := store.LatestCompletedByURL(ctx, "https://example.com"); !errors.Is(err, crawl.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"job-old", "job-new"} {
		job := crawl.Job{ID: id, URL: "https://example.com", Status: crawl.JobStatusPending}
		if err := store.CreateJob(ctx, job); err != nil {
			t.Fatalf("CreateJob() error = %v", err)
		}
		if err := store.MarkProcessing(ctx, id); err != nil {
			t.Fatalf("MarkProcessing() error = %v", err)
		}
		if err := store.MarkCompleted(ctx, id, crawl.Result{}, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("MarkCompleted() error = %v", err)
		}
	}

	latest, err := store.LatestCompletedByURL(ctx, "https://example.com")
	if err != nil {
		t.Fatalf("LatestCompletedByURL() error = %v", err)
	}
	if latest.ID != "job-new" {
		t.Fatalf("expected job-new, got %s", latest.ID)
	}
}
