// Package middleware rejects bulk-mode requests whose attachments exceed the
// configured resource quotas before any expensive processing starts.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"palisade/internal/quota/models"
	"palisade/internal/schema"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// Evaluator checks attachments against quota limits.
type Evaluator interface {
	Evaluate(ctx context.Context, attachments []schema.Attachment) []models.Violation
	Limits() models.Limits
}

// ErrorResponse is the quota rejection envelope. The active limits are
// echoed so clients can self-correct without a docs round-trip.
type ErrorResponse struct {
	Code       string             `json:"code"`
	Message    string             `json:"message"`
	RequestID  string             `json:"requestId"`
	Violations []models.Violation `json:"violations"`
	Limits     models.Limits      `json:"limits"`
}

// Guard is the quota stage. It activates only for requests carrying
// attachments; everything else passes through untouched.
type Guard struct {
	evaluator Evaluator
	logger    *slog.Logger
}

// New creates the quota guard middleware.
func New(evaluator Evaluator, logger *slog.Logger) *Guard {
	return &Guard{evaluator: evaluator, logger: logger}
}

// Handler evaluates the validated body's attachments and short-circuits with
// a 422 itemized violation list when any limit is exceeded.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		c := requestcontext.GetContract(ctx)
		if c == nil {
			g.logger.ErrorContext(ctx, "quota stage invoked without request contract",
				"path", r.URL.Path,
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeContextMissing, "request context not initialized"), "")
			return
		}

		carrier, ok := requestcontext.ValidatedBody(ctx).(schema.AttachmentCarrier)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		attachments := carrier.AttachmentList()
		if len(attachments) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		violations := g.evaluator.Evaluate(ctx, attachments)
		if len(violations) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		g.logger.WarnContext(ctx, "request rejected by quota guard",
			"request_id", c.RequestID,
			"violation_count", len(violations),
		)
		httputil.WriteJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Code:       "QUOTA_EXCEEDED",
			Message:    violations[0].Message,
			RequestID:  c.RequestID,
			Violations: violations,
			Limits:     g.evaluator.Limits(),
		})
	})
}
