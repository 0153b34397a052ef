package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/you/taskconvert/internal/domain"
)

// Clock provides time keeping; overridable for tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// MemoryStore is an in-memory Store for single-node deployments and tests.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[string]domain.Job
	clock Clock
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore(clock Clock) *MemoryStore {
	if clock == nil {
		clock = systemClock{}
	}
	return &MemoryStore{jobs: make(map[string]domain.Job), clock: clock}
}

func (m *MemoryStore) Create(_ context.Context, p CreateJobParams) (domain.Job, error) {
	now := m.clock.Now()
	job := domain.Job{
		JobID:           NewJobID(p.Type),
		SubmitterUserID: p.UserID,
		Type:            p.Type,
		Status:          domain.StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
		Geo:             cloneGeo(p.Geo),
		Name:            p.Name,
		Group:           p.Group,
		Data:            p.Data,
	}
	m.mu.Lock()
	m.jobs[job.JobID] = job
	m.mu.Unlock()
	return job, nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (domain.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	return copyJob(job), nil
}

func (m *MemoryStore) List(_ context.Context, userID string) ([]domain.Job, error) {
	m.mu.RLock()
	out := make([]domain.Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		if userID != "" && job.SubmitterUserID != userID {
			continue
		}
		out = append(out, copyJob(job))
	}
	m.mu.RUnlock()

	// Newest first; identifier breaks creation-time ties so the order is
	// stable for a given store state.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].JobID < out[j].JobID
	})
	return out, nil
}

func (m *MemoryStore) Transition(_ context.Context, jobID string, next domain.Status, errMsg string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return domain.Job{}, ErrNotFound
	}
	if !allowedTransition(job.Status, next) {
		return domain.Job{}, ErrInvalidTransition
	}
	job.Status = next
	job.UpdatedAt = m.clock.Now()
	if next == domain.StatusFailed {
		job.ErrorMessage = errMsg
	}
	m.jobs[jobID] = job
	return copyJob(job), nil
}

func (m *MemoryStore) DeleteOlderThan(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []string
	for id, job := range m.jobs {
		if job.CreatedAt.Before(cutoff) {
			delete(m.jobs, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func copyJob(job domain.Job) domain.Job {
	out := job
	out.Geo = cloneGeo(job.Geo)
	return out
}

func cloneGeo(geo *domain.GeoLocation) *domain.GeoLocation {
	if geo == nil {
		return nil
	}
	out := *geo
	return &out
}
