// Package service enforces per-IP and per-principal request throughput
// limits using sliding-window counters.
//
// Two independent windows are evaluated per request: the IP window always,
// the user window only when a principal is present. The IP check runs first;
// if it rejects, the user check never runs, so an authenticated abusive
// client is still caught by IP limiting before identity-specific limiting
// applies.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"palisade/internal/platform/privacy"
	"palisade/internal/ratelimit/config"
	"palisade/internal/ratelimit/metrics"
	"palisade/internal/ratelimit/models"
	dErrors "palisade/pkg/domain-errors"
)

// WindowStore checks and records events in sliding-window counters.
type WindowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error)
}

// Service runs the two-scope rate limit check.
type Service struct {
	store   WindowStore
	config  *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig overrides the default limit configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the rate limiting service.
func New(store WindowStore, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("window store is required")
	}

	svc := &Service{
		store:  store,
		config: config.Default(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Check evaluates the IP window and, when principalID is non-empty, the user
// window. The first exhausted window rejects; its result carries the
// exhausted LimitType. On full success the user result wins when both ran
// (it reflects the scope checked last), keeping header values consistent
// with the most specific limit.
func (s *Service) Check(ctx context.Context, clientIP, principalID string) (*models.Result, error) {
	ipRes, err := s.checkScope(ctx, models.NewKey(models.KeyPrefixIP, clientIP), s.config.IP, models.LimitTypeIP)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check ip rate limit")
	}
	if !ipRes.Allowed {
		s.logger.WarnContext(ctx, "ip rate limit exceeded",
			"ip_prefix", privacy.AnonymizeIP(clientIP),
			"limit", ipRes.Limit,
			"retry_after", ipRes.RetryAfter,
		)
		return ipRes, nil
	}

	if principalID == "" {
		return ipRes, nil
	}

	userRes, err := s.checkScope(ctx, models.NewKey(models.KeyPrefixUser, principalID), s.config.User, models.LimitTypeUser)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check user rate limit")
	}
	if !userRes.Allowed {
		s.logger.WarnContext(ctx, "user rate limit exceeded",
			"principal_id", principalID,
			"limit", userRes.Limit,
			"retry_after", userRes.RetryAfter,
		)
	}
	return userRes, nil
}

func (s *Service) checkScope(ctx context.Context, key string, limit config.Limit, lt models.LimitType) (*models.Result, error) {
	res, err := s.store.Allow(ctx, key, limit.Max, limit.Window)
	if err != nil {
		return nil, err
	}
	res.LimitType = lt
	if s.metrics != nil {
		s.metrics.RecordCheck(string(lt), res.Allowed)
	}
	return res, nil
}
