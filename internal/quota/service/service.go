// Package service estimates the resource cost implied by request attachments
// and checks it against the configured quota limits.
//
// Four dimensions are checked independently: per-file size, cumulative total
// size, file count, and cumulative estimated pages. Every dimension is
// evaluated even when an earlier one already failed, so one response carries
// the complete violation set.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"palisade/internal/quota/metrics"
	"palisade/internal/quota/models"
	"palisade/internal/schema"
)

// Service evaluates attachment cost against quota limits.
type Service struct {
	limits  models.Limits
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

// WithLimits overrides the default limit configuration.
func WithLimits(limits models.Limits) Option {
	return func(s *Service) {
		s.limits = limits
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New creates the quota service.
func New(opts ...Option) *Service {
	svc := &Service{
		limits: models.DefaultLimits(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Limits returns the active limit configuration, echoed in rejection
// responses so clients can self-correct.
func (s *Service) Limits() models.Limits {
	return s.limits
}

// Evaluate estimates the cost of every attachment and returns the complete
// list of violated dimensions. An empty result means the request is within
// quota.
func (s *Service) Evaluate(ctx context.Context, attachments []schema.Attachment) []models.Violation {
	var violations []models.Violation

	sizes := make([]int64, len(attachments))
	var totalBytes, totalPages int64
	for i, att := range attachments {
		size := estimateBytes(att)
		sizes[i] = size
		totalBytes += size
		totalPages += estimatePages(size, s.limits.BytesPerPage)

		if size > s.limits.MaxFileBytes {
			violations = append(violations, models.Violation{
				Kind:     models.KindFileSize,
				Message:  fmt.Sprintf("file %q is %d bytes, over the %d byte per-file limit", att.Filename, size, s.limits.MaxFileBytes),
				Limit:    s.limits.MaxFileBytes,
				Actual:   size,
				Unit:     "bytes",
				Filename: att.Filename,
			})
		}
	}

	if totalBytes > s.limits.MaxTotalBytes {
		violations = append(violations, models.Violation{
			Kind:    models.KindTotalSize,
			Message: fmt.Sprintf("attachments total %d bytes, over the %d byte limit", totalBytes, s.limits.MaxTotalBytes),
			Limit:   s.limits.MaxTotalBytes,
			Actual:  totalBytes,
			Unit:    "bytes",
		})
	}
	if len(attachments) > s.limits.MaxFileCount {
		violations = append(violations, models.Violation{
			Kind:    models.KindFileCount,
			Message: fmt.Sprintf("%d attachments sent, over the limit of %d", len(attachments), s.limits.MaxFileCount),
			Limit:   int64(s.limits.MaxFileCount),
			Actual:  int64(len(attachments)),
			Unit:    "files",
		})
	}
	if totalPages > int64(s.limits.MaxTotalPages) {
		violations = append(violations, models.Violation{
			Kind:    models.KindTotalPages,
			Message: fmt.Sprintf("attachments estimated at %d pages, over the limit of %d", totalPages, s.limits.MaxTotalPages),
			Limit:   int64(s.limits.MaxTotalPages),
			Actual:  totalPages,
			Unit:    "pages",
		})
	}

	s.metrics.RecordEvaluation(sizes)
	for _, v := range violations {
		s.metrics.RecordViolation(string(v.Kind))
	}

	if len(violations) > 0 {
		s.logger.WarnContext(ctx, "quota limits exceeded",
			"violation_count", len(violations),
			"attachment_count", len(attachments),
			"total_bytes", totalBytes,
			"total_pages", totalPages,
		)
	}
	return violations
}

// estimateBytes derives the best available size estimate for one attachment.
// Priority: the explicit size field, then a decoded-length estimate for
// base64 data URIs, then the literal content length, then the contentLength
// field, then zero.
func estimateBytes(att schema.Attachment) int64 {
	if att.Size != nil {
		return *att.Size
	}
	if att.Content != "" {
		if payload, ok := base64Payload(att.Content); ok {
			// base64 expands 3 bytes to 4 characters; reverse it.
			return int64(len(payload)) * 3 / 4
		}
		return int64(len(att.Content))
	}
	if att.ContentLength != nil {
		return *att.ContentLength
	}
	return 0
}

// base64Payload returns the encoded payload of a base64 data URI, with the
// prefix up to and including the comma stripped.
func base64Payload(content string) (string, bool) {
	if !strings.HasPrefix(content, "data:") {
		return "", false
	}
	comma := strings.IndexByte(content, ',')
	if comma < 0 || !strings.HasSuffix(content[:comma], ";base64") {
		return "", false
	}
	return content[comma+1:], true
}

func estimatePages(size, bytesPerPage int64) int64 {
	if size <= 0 || bytesPerPage <= 0 {
		return 0
	}
	return (size + bytesPerPage - 1) / bytesPerPage
}
