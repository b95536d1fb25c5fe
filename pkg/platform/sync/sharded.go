// Package sync provides a hash-sharded map with per-shard locking.
// Operations are distributed across N shards based on a hash of the key,
// reducing contention under concurrent load compared to one global lock.
package sync

import (
	"sync"
)

const shardCount = 32

// Map is a string-keyed map split into independently locked shards.
type Map[V any] struct {
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu    sync.Mutex
	items map[string]V
}

// NewMap creates an empty sharded map.
func NewMap[V any]() *Map[V] {
	m := &Map[V]{}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

// Get returns the value stored under key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	return v, ok
}

// Set stores value under key, replacing any existing entry.
func (m *Map[V]) Set(key string, value V) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
}

// Delete removes the entry for key if present.
func (m *Map[V]) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Update runs fn under the key's shard lock as an atomic read-modify-write.
// fn receives the current value and whether it exists; it returns the new
// value and whether to keep the entry. Returning keep=false deletes it.
func (m *Map[V]) Update(key string, fn func(current V, exists bool) (V, bool)) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	current, exists := s.items[key]
	next, keep := fn(current, exists)
	if keep {
		s.items[key] = next
	} else if exists {
		delete(s.items, key)
	}
}

// Range calls fn for every entry, one shard at a time. fn returning false
// stops the iteration. Entries added or removed concurrently in other shards
// may or may not be visited.
func (m *Map[V]) Range(fn func(key string, value V) bool) {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		for k, v := range s.items {
			if !fn(k, v) {
				s.mu.Unlock()
				return
			}
		}
		s.mu.Unlock()
	}
}

// Len returns the total number of entries across all shards.
func (m *Map[V]) Len() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		n += len(s.items)
		s.mu.Unlock()
	}
	return n
}

// shardFor returns the shard owning key. Empty keys map to shard 0.
func (m *Map[V]) shardFor(key string) *shard[V] {
	return &m.shards[hashString(key)%shardCount]
}

// hashString provides a simple hash for shard selection.
func hashString(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
