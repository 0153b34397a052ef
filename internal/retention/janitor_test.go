package retention

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/you/taskconvert/internal/domain"
	"github.com/you/taskconvert/internal/results"
	"github.com/you/taskconvert/internal/storage"
)

type shiftClock struct {
	mu     sync.Mutex
	offset time.Duration
}

func (c *shiftClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Now().UTC().Add(c.offset)
}

func (c *shiftClock) shift(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

func TestSweepEvictsOldJobsAndResults(t *testing.T) {
	ctx := context.Background()
	clock := &shiftClock{offset: -48 * time.Hour}
	store := storage.NewMemoryStore(clock)
	res := results.NewMemoryStore()

	// Job and unclaimed result created two days in the past.
	old, err := store.Create(ctx, storage.CreateJobParams{UserID: "u", Type: domain.TypeTask})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := res.Put(ctx, old.JobID, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	clock.shift(48 * time.Hour)
	fresh, err := store.Create(ctx, storage.CreateJobParams{UserID: "u", Type: domain.TypeTask})
	if err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	j := New(store, res, 24*time.Hour, time.Hour, zap.NewNop())
	if err := j.Sweep(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	if _, err := store.Get(ctx, old.JobID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("old job survived sweep: %v", err)
	}
	if _, err := res.TakeOnce(ctx, old.JobID); !errors.Is(err, results.ErrNotFound) {
		t.Fatalf("orphaned result survived sweep: %v", err)
	}
	if _, err := store.Get(ctx, fresh.JobID); err != nil {
		t.Fatalf("fresh job evicted: %v", err)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	j := New(storage.NewMemoryStore(nil), results.NewMemoryStore(), time.Hour, 10*time.Millisecond, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- j.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop on cancel")
	}
}
