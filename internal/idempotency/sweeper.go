package idempotency

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper garbage-collects expired records on a fixed interval. Expired
// records are already invisible to Get and Insert, so the sweep is purely
// about reclaiming storage.
type Sweeper struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweeperLogger sets the structured logger.
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepInterval overrides the default sweep interval.
func WithSweepInterval(interval time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func NewSweeper(store Store, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		store:    store,
		logger:   slog.Default(),
		interval: time.Hour,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start blocks, deleting expired records on every tick until the context is
// cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			startTime := time.Now()
			removed, err := s.store.DeleteExpired(ctx, time.Now())
			duration := time.Since(startTime)

			if err != nil {
				s.logger.Error("idempotency_sweep_failed",
					"error", err,
					"duration_ms", duration.Milliseconds(),
				)
				continue
			}
			s.logger.Info("idempotency_sweep_completed",
				"records_removed", removed,
				"duration_ms", duration.Milliseconds(),
			)

		case <-ctx.Done():
			s.logger.Info("idempotency sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}
