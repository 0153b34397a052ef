package results

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore is the in-process Store implementation. The single mutex makes
// TakeOnce a check-and-remove with no window between read and delete.
type MemoryStore struct {
	mu       sync.Mutex
	payloads map[string]json.RawMessage
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payloads: make(map[string]json.RawMessage)}
}

func (m *MemoryStore) Put(_ context.Context, jobID string, payload json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payloads[jobID]; ok {
		return ErrAlreadyExists
	}
	buf := make(json.RawMessage, len(payload))
	copy(buf, payload)
	m.payloads[jobID] = buf
	return nil
}

func (m *MemoryStore) TakeOnce(_ context.Context, jobID string) (json.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.payloads[jobID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(m.payloads, jobID)
	return payload, nil
}

func (m *MemoryStore) Delete(_ context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.payloads, jobID)
	return nil
}
