// Package results holds the output of succeeded jobs until its first read.
//
// Delivery is at-most-once: TakeOnce atomically hands the payload to exactly
// one caller and deletes it, so a second read (concurrent or later) sees
// ErrNotFound. Payloads are opaque JSON produced by the pipeline.
package results

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound indicates no unconsumed result exists for the job.
	ErrNotFound = errors.New("results: result not found")

	// ErrAlreadyExists indicates a duplicate Put for the same job. The
	// dispatcher is the sole writer, so this firing means an engine bug.
	ErrAlreadyExists = errors.New("results: result already exists")
)

// Store delivers each stored payload to at most one reader.
type Store interface {
	// Put stores the result for a job that just succeeded. At most one Put
	// per job; a second returns ErrAlreadyExists.
	Put(ctx context.Context, jobID string, payload json.RawMessage) error

	// TakeOnce atomically reads and removes the result. Exactly one of N
	// concurrent callers succeeds; the rest get ErrNotFound.
	TakeOnce(ctx context.Context, jobID string) (json.RawMessage, error)

	// Delete removes an unconsumed result, if any. Used by retention sweeps
	// for jobs whose records were evicted.
	Delete(ctx context.Context, jobID string) error
}
