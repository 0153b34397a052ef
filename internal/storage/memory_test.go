package storage

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/you/taskconvert/internal/domain"
)

// fakeClock hands out strictly increasing timestamps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(newFakeClock())

	job, err := store.Create(ctx, CreateJobParams{UserID: "user_a", Type: domain.TypeAudio})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("empty job id")
	}
	if !strings.HasSuffix(job.JobID, "_audio") {
		t.Fatalf("job id %q missing type suffix", job.JobID)
	}
	if job.Status != domain.StatusQueued {
		t.Fatalf("status = %s, want QUEUED", job.Status)
	}

	got, err := store.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SubmitterUserID != "user_a" || got.Type != domain.TypeAudio {
		t.Fatalf("got %+v", got)
	}

	// Repeated reads with no intervening change return identical state.
	again, err := store.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if again.Status != got.Status || !again.UpdatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("second get differs: %+v vs %+v", again, got)
	}
}

func TestGetUnknownJob(t *testing.T) {
	store := NewMemoryStore(nil)
	if _, err := store.Get(context.Background(), "nonexistent-123"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestConcurrentCreateUniqueIDs(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)

	const n = 200
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			job, err := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeTask})
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			ids <- job.JobID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate job id %q", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("created %d distinct jobs, want %d", len(seen), n)
	}
}

func TestListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(newFakeClock())

	var created []string
	for i := 0; i < 3; i++ {
		job, err := store.Create(ctx, CreateJobParams{UserID: "alice", Type: domain.TypeTask})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		created = append(created, job.JobID)
	}
	if _, err := store.Create(ctx, CreateJobParams{UserID: "bob", Type: domain.TypeAudio}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("list all = %d jobs, want 4", len(all))
	}

	alice, err := store.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	if len(alice) != 3 {
		t.Fatalf("list alice = %d jobs, want 3", len(alice))
	}
	// Newest first.
	if alice[0].JobID != created[2] || alice[2].JobID != created[0] {
		t.Fatalf("unexpected order: %v", []string{alice[0].JobID, alice[1].JobID, alice[2].JobID})
	}

	none, err := store.List(ctx, "nobody")
	if err != nil {
		t.Fatalf("list nobody: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("list nobody = %d jobs, want 0", len(none))
	}
}

func TestTransitionLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(newFakeClock())
	job, _ := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeAudio})

	for _, next := range []domain.Status{domain.StatusProcessing, domain.StatusSucceeded} {
		updated, err := store.Transition(ctx, job.JobID, next, "")
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if updated.Status != next {
			t.Fatalf("status = %s, want %s", updated.Status, next)
		}
	}

	// Terminal states are final.
	if _, err := store.Transition(ctx, job.JobID, domain.StatusFailed, "late"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("transition out of terminal: got %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionRejectsSkippingProcessing(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	job, _ := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeTask})

	if _, err := store.Transition(ctx, job.JobID, domain.StatusSucceeded, ""); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("QUEUED -> SUCCEEDED: got %v, want ErrInvalidTransition", err)
	}
}

func TestTransitionRecordsFailure(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	job, _ := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeTask})

	if _, err := store.Transition(ctx, job.JobID, domain.StatusProcessing, ""); err != nil {
		t.Fatalf("to PROCESSING: %v", err)
	}
	failed, err := store.Transition(ctx, job.JobID, domain.StatusFailed, "analyzer unreachable")
	if err != nil {
		t.Fatalf("to FAILED: %v", err)
	}
	if failed.ErrorMessage != "analyzer unreachable" {
		t.Fatalf("error message = %q", failed.ErrorMessage)
	}
}

func TestTransitionUnknownJob(t *testing.T) {
	store := NewMemoryStore(nil)
	if _, err := store.Transition(context.Background(), "missing", domain.StatusProcessing, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := NewMemoryStore(clock)

	old, _ := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeTask})
	cutoff := clock.Now()
	fresh, _ := store.Create(ctx, CreateJobParams{UserID: "u", Type: domain.TypeTask})

	deleted, err := store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != old.JobID {
		t.Fatalf("deleted = %v, want [%s]", deleted, old.JobID)
	}
	if _, err := store.Get(ctx, old.JobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old job still present: %v", err)
	}
	if _, err := store.Get(ctx, fresh.JobID); err != nil {
		t.Fatalf("fresh job gone: %v", err)
	}
}
