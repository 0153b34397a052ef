// Package storage is the source of truth for job existence and lifecycle.
package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/you/taskconvert/internal/domain"
)

var (
	// ErrNotFound indicates no job with the given identifier exists.
	ErrNotFound = errors.New("storage: job not found")

	// ErrInvalidTransition indicates a status change that violates the
	// monotonic state machine. This is a dispatcher bug, never client input.
	ErrInvalidTransition = errors.New("storage: invalid status transition")
)

// CreateJobParams carries everything needed to insert a new QUEUED job.
type CreateJobParams struct {
	UserID string
	Type   domain.JobType

	// Task metadata; unused for AUDIO jobs.
	Geo   *domain.GeoLocation
	Name  string
	Group string
	Data  string
}

// Store persists job records (source of truth).
type Store interface {
	// Create inserts a job in state QUEUED under a fresh unique identifier.
	Create(ctx context.Context, p CreateJobParams) (domain.Job, error)

	// Get returns the job or ErrNotFound.
	Get(ctx context.Context, jobID string) (domain.Job, error)

	// List returns jobs in creation order, newest first. An empty userID
	// returns all jobs; otherwise only jobs submitted by that user.
	List(ctx context.Context, userID string) ([]domain.Job, error)

	// Transition applies a status change, enforcing
	// QUEUED -> PROCESSING -> SUCCEEDED | FAILED. errMsg is recorded for
	// FAILED transitions. Returns ErrNotFound or ErrInvalidTransition.
	Transition(ctx context.Context, jobID string, next domain.Status, errMsg string) (domain.Job, error)

	// DeleteOlderThan removes jobs created before cutoff and returns their
	// identifiers so callers can evict orphaned results. Retention policy,
	// not client-facing.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) ([]string, error)
}

// NewJobID mints a globally unique job identifier. The type suffix keeps
// identifiers self-describing in logs.
func NewJobID(typ domain.JobType) string {
	return fmt.Sprintf("job_%s_%s", uuid.NewString(), strings.ToLower(string(typ)))
}

// allowedTransition enforces forward-only movement through the lifecycle.
// QUEUED may fail directly when a job cannot be admitted to the pool.
func allowedTransition(from, to domain.Status) bool {
	switch from {
	case domain.StatusQueued:
		return to == domain.StatusProcessing || to == domain.StatusFailed
	case domain.StatusProcessing:
		return to == domain.StatusSucceeded || to == domain.StatusFailed
	default:
		return false
	}
}
