package idempotency

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"palisade/internal/platform/metrics"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/requestcontext"
)

// DefaultRetention is how long a record shields its key from re-execution.
const DefaultRetention = 24 * time.Hour

// Outcome is the replayable result of one operation.
type Outcome struct {
	StatusCode int
	Body       json.RawMessage
}

// Service coordinates the record lifecycle around handler execution.
type Service struct {
	store     Store
	logger    *slog.Logger
	metrics   *metrics.Metrics
	retention time.Duration
}

// Option configures a Service instance.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithRetention overrides the default record retention.
func WithRetention(retention time.Duration) Option {
	return func(s *Service) {
		if retention > 0 {
			s.retention = retention
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates the idempotency service.
func NewService(store Store, opts ...Option) *Service {
	svc := &Service{
		store:     store,
		logger:    slog.Default(),
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Execute runs fn at most once per live key. payload is the canonicalized
// request body; reusing a key with a different payload is client misuse and
// rejected. A second request while the first is still processing is rejected
// rather than queued. Terminal records replay the stored outcome; the
// returned bool reports a replay. An empty key bypasses the store entirely.
func (s *Service) Execute(ctx context.Context, key string, payload []byte, fn func(ctx context.Context) (*Outcome, error)) (*Outcome, bool, error) {
	if key == "" {
		out, err := fn(ctx)
		return out, false, err
	}

	hash := HashPayload(payload)
	existing, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		out, err := s.resolveExisting(ctx, existing, hash)
		return out, err == nil, err
	case !dErrors.HasCode(err, dErrors.CodeNotFound):
		// Lookup failures fail open: losing replay protection beats
		// failing the request on a side-channel error.
		s.logger.ErrorContext(ctx, "idempotency lookup failed", "error", err, "key", key)
		out, err := fn(ctx)
		return out, false, err
	}

	now := requestcontext.Now(ctx)
	record := Record{
		Key:         key,
		PayloadHash: hash,
		Status:      StatusProcessing,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.retention),
	}
	if err := s.store.Insert(ctx, record); err != nil {
		if dErrors.HasCode(err, dErrors.CodeConflict) {
			// Lost the race to a concurrent request with the same key.
			s.metrics.RecordIdempotencyOutcome("in_flight")
			return nil, false, dErrors.New(dErrors.CodeDuplicateInFlight, "a request with this idempotency key is already in progress")
		}
		s.logger.ErrorContext(ctx, "idempotency insert failed", "error", err, "key", key)
		out, err := fn(ctx)
		return out, false, err
	}
	s.metrics.RecordIdempotencyOutcome("miss")

	out, err := fn(ctx)
	if err != nil {
		record.Status = StatusFailed
		s.finish(ctx, record)
		return nil, false, err
	}

	record.Status = StatusCompleted
	if out.StatusCode >= 400 {
		record.Status = StatusFailed
	}
	record.StatusCode = out.StatusCode
	record.Response = out.Body
	s.finish(ctx, record)
	return out, false, nil
}

func (s *Service) resolveExisting(ctx context.Context, record *Record, hash string) (*Outcome, error) {
	if record.PayloadHash != hash {
		s.metrics.RecordIdempotencyOutcome("mismatch")
		return nil, dErrors.New(dErrors.CodeKeyPayloadMismatch, "idempotency key reused with a different payload")
	}

	if record.Status == StatusProcessing {
		s.metrics.RecordIdempotencyOutcome("in_flight")
		return nil, dErrors.New(dErrors.CodeDuplicateInFlight, "a request with this idempotency key is already in progress")
	}

	s.metrics.RecordIdempotencyOutcome("replay")
	s.logger.InfoContext(ctx, "replaying stored response",
		"key", record.Key,
		"status", string(record.Status),
	)
	return &Outcome{StatusCode: record.StatusCode, Body: record.Response}, nil
}

// finish records the terminal state. Failures here are logged and swallowed;
// the client already has its response.
func (s *Service) finish(ctx context.Context, record Record) {
	if err := s.store.Update(ctx, record); err != nil {
		s.logger.ErrorContext(ctx, "failed to finalize idempotency record",
			"error", err,
			"key", record.Key,
			"status", string(record.Status),
		)
	}
}
