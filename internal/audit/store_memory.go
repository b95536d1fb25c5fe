package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps records in insertion order. It backs tests and
// single-instance deployments without a database.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
}

func (s *InMemoryStore) Append(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *InMemoryStore) ListByPrincipal(_ context.Context, principalID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, r := range s.records {
		if r.PrincipalID != nil && *r.PrincipalID == principalID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByRequestID(_ context.Context, requestID string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for _, r := range s.records {
		if r.RequestID == requestID {
			out = append(out, r)
		}
	}
	return out, nil
}

// All returns every record in insertion order.
func (s *InMemoryStore) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Record{}, s.records...)
}
