// Package sweep runs the periodic housekeeping pass over sliding-window
// state. It only removes data strictly outside any window a live check could
// still be using, so it can never reorder with an in-flight check/record pair.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"palisade/internal/ratelimit/metrics"
)

// Store is the eviction surface the worker drives.
type Store interface {
	Sweep(ctx context.Context) (keysRemoved, timestampsEvicted int, err error)
	TrackedKeys() int
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(w *Worker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

type Worker struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
}

func New(store Store, opts ...Option) *Worker {
	w := &Worker{
		store:    store,
		logger:   slog.Default(),
		interval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start blocks, sweeping on every tick until the context is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			keysRemoved, evicted, err := w.store.Sweep(ctx)
			duration := time.Since(startTime)

			if err != nil {
				w.logger.Error("ratelimit_sweep_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				if w.metrics != nil {
					w.metrics.RecordSweep("error", duration.Seconds(), w.store.TrackedKeys())
				}
				continue
			}

			w.logger.Info("ratelimit_sweep_completed",
				"keys_removed", keysRemoved,
				"timestamps_evicted", evicted,
				"tracked_keys", w.store.TrackedKeys(),
				"duration_ms", duration.Milliseconds(),
			)
			if w.metrics != nil {
				w.metrics.RecordSweep("success", duration.Seconds(), w.store.TrackedKeys())
			}

		case <-ctx.Done():
			w.logger.Info("ratelimit sweep worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}
