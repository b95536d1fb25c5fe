// Package window implements the in-memory sliding-window counter store.
// State is kept purely in-process; multi-instance deployments would need an
// external shared store (known limitation, see DESIGN.md).
package window

import (
	"context"
	"math"
	"sync"
	"time"

	"palisade/internal/ratelimit/models"
	"palisade/pkg/requestcontext"
)

// sweepFactor is how much looser the background eviction threshold is than
// the check threshold. Eviction at 2x the window can never remove a
// timestamp that a concurrently-running check could still count.
const sweepFactor = 2

// InMemoryStore keeps one ordered timestamp list per rate limit key.
// All mutation happens under the store mutex so a check-then-record pair is
// atomic with respect to other requests on the same key.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string]*slidingWindow
}

// slidingWindow holds event instants within the lookback window.
// Invariants: after any access, all retained timestamps satisfy
// now - ts < window, and the slice is sorted ascending.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

// record inserts ts preserving sort order. Each request carries its own
// start-time clock, so two in-flight requests can reach the store out of
// order; the common case is still a plain append.
func (sw *slidingWindow) record(ts time.Time) {
	i := len(sw.timestamps)
	for i > 0 && sw.timestamps[i-1].After(ts) {
		i--
	}
	sw.timestamps = append(sw.timestamps, time.Time{})
	copy(sw.timestamps[i+1:], sw.timestamps[i:])
	sw.timestamps[i] = ts
}

// evictExpired drops timestamps at or past the cutoff. The slice is sorted,
// so eviction is a single prefix cut.
func (sw *slidingWindow) evictExpired(cutoff time.Time) {
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// NewInMemoryStore creates an empty sliding-window store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{windows: make(map[string]*slidingWindow)}
}

// Allow counts in-window events for the key and either records the current
// instant (admitted) or rejects without recording, so a rejected attempt
// never consumes capacity for the next check.
func (s *InMemoryStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows[key]
	if !ok {
		sw = &slidingWindow{window: window}
		s.windows[key] = sw
	}
	sw.window = window
	sw.evictExpired(now.Add(-window))

	if len(sw.timestamps) >= limit {
		oldest := sw.timestamps[0]
		resetAt := oldest.Add(window)
		return &models.Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	sw.record(now)

	return &models.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: max(limit-len(sw.timestamps), 0),
		ResetAt:   sw.timestamps[0].Add(window),
	}, nil
}

// Count returns how many in-window events the key currently has.
func (s *InMemoryStore) Count(ctx context.Context, key string, window time.Duration) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	sw, ok := s.windows[key]
	if !ok {
		return 0, nil
	}
	sw.evictExpired(now.Add(-window))
	return len(sw.timestamps), nil
}

// Reset clears the counter for a key.
func (s *InMemoryStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Sweep evicts timestamps older than sweepFactor times each key's window and
// removes keys left empty, bounding memory growth from one-off clients.
// Returns the number of keys removed and timestamps evicted.
func (s *InMemoryStore) Sweep(ctx context.Context) (keysRemoved, timestampsEvicted int, err error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	for key, sw := range s.windows {
		before := len(sw.timestamps)
		sw.evictExpired(now.Add(-sweepFactor * sw.window))
		timestampsEvicted += before - len(sw.timestamps)
		if len(sw.timestamps) == 0 {
			delete(s.windows, key)
			keysRemoved++
		}
	}
	return keysRemoved, timestampsEvicted, nil
}

// TrackedKeys reports how many keys currently hold state.
func (s *InMemoryStore) TrackedKeys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// retryAfterSeconds computes seconds until the oldest in-window event leaves
// the window, ceiling-rounded and floored to one second.
func retryAfterSeconds(now, resetAt time.Time) int {
	seconds := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}
