package idempotency

import (
	"context"
	"time"

	psync "palisade/pkg/platform/sync"
	"palisade/pkg/requestcontext"
)

// InMemoryStore keeps records in a sharded map. The per-shard lock makes
// Insert an atomic check-then-write, so exactly one of two racing requests
// with the same key wins.
type InMemoryStore struct {
	records *psync.Map[Record]
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: psync.NewMap[Record]()}
}

func (s *InMemoryStore) Insert(ctx context.Context, record Record) error {
	now := requestcontext.Now(ctx)
	var conflict bool
	s.records.Update(record.Key, func(current Record, exists bool) (Record, bool) {
		if exists && !current.Expired(now) {
			conflict = true
			return current, true
		}
		return record, true
	})
	if conflict {
		return ErrDuplicateKey
	}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (*Record, error) {
	record, ok := s.records.Get(key)
	if !ok || record.Expired(requestcontext.Now(ctx)) {
		return nil, ErrNotFound
	}
	return &record, nil
}

func (s *InMemoryStore) Update(_ context.Context, record Record) error {
	var found bool
	s.records.Update(record.Key, func(current Record, exists bool) (Record, bool) {
		if !exists {
			return current, false
		}
		found = true
		return record, true
	})
	if !found {
		return ErrNotFound
	}
	return nil
}

func (s *InMemoryStore) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	var expired []string
	s.records.Range(func(key string, record Record) bool {
		if record.Expired(now) {
			expired = append(expired, key)
		}
		return true
	})

	removed := 0
	for _, key := range expired {
		// Re-check under the shard lock; a fresh record may have replaced
		// the expired one since the scan.
		s.records.Update(key, func(current Record, exists bool) (Record, bool) {
			if exists && current.Expired(now) {
				removed++
				return current, false
			}
			return current, exists
		})
	}
	return removed, nil
}

// Len returns the number of records currently held, expired included.
func (s *InMemoryStore) Len() int {
	return s.records.Len()
}
