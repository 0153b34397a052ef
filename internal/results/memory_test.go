package results

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
)

func TestPutTakeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	payload := json.RawMessage(`{"summary":"done"}`)
	if err := store.Put(ctx, "job-1", payload); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.TakeOnce(ctx, "job-1")
	if err != nil {
		t.Fatalf("first take: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload = %s", got)
	}

	if _, err := store.TakeOnce(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second take: got %v, want ErrNotFound", err)
	}
}

func TestTakeOnceNeverProduced(t *testing.T) {
	if _, err := NewMemoryStore().TakeOnce(context.Background(), "job-x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestDuplicatePut(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Put(ctx, "job-1", json.RawMessage(`1`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "job-1", json.RawMessage(`2`)); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("got %v, want ErrAlreadyExists", err)
	}
}

// Exactly one of N simultaneous readers may receive the payload.
func TestTakeOnceConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Put(ctx, "job-1", json.RawMessage(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}

	const readers = 64
	var wg sync.WaitGroup
	var winners int64
	results := make(chan error, readers)
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.TakeOnce(ctx, "job-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	for err := range results {
		switch {
		case err == nil:
			winners++
		case errors.Is(err, ErrNotFound):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if winners != 1 {
		t.Fatalf("winners = %d, want exactly 1", winners)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Put(ctx, "job-1", json.RawMessage(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Delete(ctx, "job-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.TakeOnce(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound after delete", err)
	}
	// Deleting a missing result is a no-op.
	if err := store.Delete(ctx, "job-2"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestPutCopiesPayload(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	payload := json.RawMessage(`{"a":1}`)
	if err := store.Put(ctx, "job-1", payload); err != nil {
		t.Fatalf("put: %v", err)
	}
	payload[2] = 'X'

	got, err := store.TakeOnce(ctx, "job-1")
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("stored payload aliased caller buffer: %s", got)
	}
}
