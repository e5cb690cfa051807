package jobs

import (
	"testing"
	"time"

	"github.com/sporenet/sporenet/internal/clock"
	"github.com/sporenet/sporenet/internal/corerr"
	"github.com/sporenet/sporenet/internal/storage"
)

func newTestStore(t *testing.T, now time.Time) *Store {
	t.Helper()
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := New(db, clock.Fixed{At: now})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestUpsertCreatesThenUpdates(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	job, err := s.Upsert("job-1", "reindex", "pending", "initial pass")
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if job.Status != "pending" {
		t.Errorf("expected status pending, got %s", job.Status)
	}

	updated, err := s.Upsert("job-1", "reindex", "running", "second pass")
	if err != nil {
		t.Fatalf("Upsert (update): %v", err)
	}
	if updated.Status != "running" || updated.Detail != "second pass" {
		t.Errorf("expected the upsert to overwrite in place, got %+v", updated)
	}

	all, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected a single row after upsert, got %d", len(all))
	}
}

func TestUpdateStatusRecordsError(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	if _, err := s.Upsert("job-1", "learn", "running", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.UpdateStatus("job-1", "failed", "provider unavailable"); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	job, err := s.Get("job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != "failed" || job.Error != "provider unavailable" {
		t.Errorf("expected failed status with error recorded, got %+v", job)
	}
}

func TestGetMissingJob(t *testing.T) {
	s := newTestStore(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	if _, err := s.Get("missing"); !corerr.Is(err, corerr.NotFound) {
		t.Errorf("expected NotFound for a missing job, got %v", err)
	}
}

func TestListFiltersByStatus(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	if _, err := s.Upsert("a", "reindex", "completed", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert("b", "reindex", "pending", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	completed, err := s.List("completed")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(completed) != 1 || completed[0].ID != "a" {
		t.Fatalf("expected only job a, got %+v", completed)
	}
}

func TestClearCompletedByAge(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	if _, err := s.Upsert("old", "reindex", "completed", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s.clock = clock.Fixed{At: now.Add(48 * time.Hour)}
	if _, err := s.Upsert("recent", "reindex", "completed", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := s.ClearCompleted(24 * time.Hour)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected one job older than 24h cleared, got %d", n)
	}

	remaining, err := s.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "recent" {
		t.Fatalf("expected only 'recent' to remain, got %+v", remaining)
	}
}

func TestClearCompletedAll(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now)

	if _, err := s.Upsert("a", "reindex", "completed", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert("b", "reindex", "failed", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if _, err := s.Upsert("c", "reindex", "pending", ""); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	n, err := s.ClearCompleted(0)
	if err != nil {
		t.Fatalf("ClearCompleted: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected two terminal jobs cleared, got %d", n)
	}
}
