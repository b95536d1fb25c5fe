package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
	"palisade/pkg/validation"
)

// validatable is the contract every shape satisfies.
type validatable interface {
	Normalize()
	Validate() error
}

// ErrorResponse is the validation failure envelope. The full field-level
// error list is reported so one round-trip surfaces every problem; the
// message stays short.
type ErrorResponse struct {
	Code      string                  `json:"code"`
	Message   string                  `json:"message"`
	RequestID string                  `json:"requestId"`
	Errors    []validation.FieldError `json:"errors"`
}

// Middleware validates request bodies against a route-selected shape.
type Middleware struct {
	logger *slog.Logger
}

// New creates the schema validation middleware.
func New(logger *slog.Logger) *Middleware {
	return &Middleware{logger: logger}
}

// Validate returns the stage handler for the given shape. On success the
// canonicalized value replaces the request body and is stored on the context;
// on failure the request short-circuits with the structured multi-error
// envelope.
func (m *Middleware) Validate(shape Shape) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch shape {
			case ShapeChat:
				m.validateAs(w, r, next, &ChatRequest{})
			case ShapeAnalyze:
				m.validateAs(w, r, next, &AnalyzeRequest{})
			default:
				m.logger.ErrorContext(r.Context(), "unknown request shape", "shape", shape)
				httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "unknown request shape"), requestcontext.RequestID(r.Context()))
			}
		})
	}
}

func (m *Middleware) validateAs(w http.ResponseWriter, r *http.Request, next http.Handler, req validatable) {
	ctx := r.Context()

	c := requestcontext.GetContract(ctx)
	if c == nil {
		// Wiring bug, not a client error: the contract stage must run first.
		m.logger.ErrorContext(ctx, "schema stage invoked without request contract",
			"path", r.URL.Path,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeContextMissing, "request context not initialized"), "")
		return
	}

	if err := json.NewDecoder(r.Body).Decode(req); err != nil && !errors.Is(err, io.EOF) {
		m.writeValidationError(w, ctx, c.RequestID, "request body is not valid JSON", []validation.FieldError{
			{Field: "", Message: "request body is not valid JSON"},
		})
		return
	}

	req.Normalize()

	if err := req.Validate(); err != nil {
		summary := "invalid request body"
		fieldErrs := []validation.FieldError{{Field: "", Message: summary}}
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			summary = domainErr.Message
			fieldErrs = validation.FieldErrors(domainErr.Err)
		}
		m.writeValidationError(w, ctx, c.RequestID, summary, fieldErrs)
		return
	}

	// Replace the raw body with the canonical form for any reader that
	// prefers bytes over the context value.
	canonical, err := json.Marshal(req)
	if err == nil {
		r.Body = io.NopCloser(bytes.NewReader(canonical))
		r.ContentLength = int64(len(canonical))
	}

	ctx = requestcontext.WithValidatedBody(ctx, req)
	next.ServeHTTP(w, r.WithContext(ctx))
}

func (m *Middleware) writeValidationError(w http.ResponseWriter, ctx context.Context, requestID, summary string, fieldErrs []validation.FieldError) {
	m.logger.WarnContext(ctx, "schema validation failed",
		"request_id", requestID,
		"summary", summary,
		"error_count", len(fieldErrs),
	)
	httputil.WriteJSON(w, http.StatusBadRequest, ErrorResponse{
		Code:      "VALIDATION_ERROR",
		Message:   summary,
		RequestID: requestID,
		Errors:    fieldErrs,
	})
}
