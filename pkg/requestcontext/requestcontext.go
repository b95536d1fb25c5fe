// Package requestcontext carries per-request correlation data through the
// governance pipeline: request ID, idempotency key, client metadata, principal,
// and the request-scoped clock. All values are attached once by early
// middleware and are read-only for the rest of the request.
package requestcontext

import (
	"context"
	"time"
)

type contextKeyRequestID struct{}
type contextKeyIdempotencyKey struct{}
type contextKeyClientMetadata struct{}
type contextKeyPrincipalID struct{}
type contextKeyContract struct{}
type contextKeyRequestTime struct{}
type contextKeyValidatedBody struct{}

// Contract is the immutable per-request identity published by the request
// contract middleware. Later stages read it instead of re-deriving fields
// from the raw request.
type Contract struct {
	RequestID        string
	IdempotencyKey   string // empty means "not idempotent, execute every time"
	ClientIP         string
	UserAgent        string
	PrincipalID      string // empty for anonymous requests
	AttachmentsCount int
	IsBulkMode       bool
	StartTime        time.Time
}

// WithContract attaches the resolved request contract to the context.
func WithContract(ctx context.Context, c *Contract) context.Context {
	return context.WithValue(ctx, contextKeyContract{}, c)
}

// GetContract retrieves the request contract, or nil if the contract
// middleware has not run. Callers that require a contract should treat nil as
// a wiring bug, not a client error.
func GetContract(ctx context.Context) *Contract {
	if c, ok := ctx.Value(contextKeyContract{}).(*Contract); ok {
		return c
	}
	return nil
}

// WithRequestID injects the resolved request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID retrieves the request ID from the context.
// Returns an empty string if not set.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyRequestID{}).(string); ok {
		return id
	}
	if c := GetContract(ctx); c != nil {
		return c.RequestID
	}
	return ""
}

// WithIdempotencyKey injects the client-supplied idempotency key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKeyIdempotencyKey{}, key)
}

// IdempotencyKey retrieves the idempotency key. Absence is valid and means
// the request is not idempotent.
func IdempotencyKey(ctx context.Context) string {
	if key, ok := ctx.Value(contextKeyIdempotencyKey{}).(string); ok {
		return key
	}
	if c := GetContract(ctx); c != nil {
		return c.IdempotencyKey
	}
	return ""
}

type clientMetadata struct {
	ip        string
	userAgent string
}

// WithClientMetadata injects client IP and User-Agent into the context.
func WithClientMetadata(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, contextKeyClientMetadata{}, clientMetadata{ip: ip, userAgent: userAgent})
}

// ClientIP retrieves the client IP, or "unknown" if metadata was never attached.
func ClientIP(ctx context.Context) string {
	if md, ok := ctx.Value(contextKeyClientMetadata{}).(clientMetadata); ok {
		return md.ip
	}
	if c := GetContract(ctx); c != nil {
		return c.ClientIP
	}
	return "unknown"
}

// UserAgent retrieves the client User-Agent string, or "" when absent.
func UserAgent(ctx context.Context) string {
	if md, ok := ctx.Value(contextKeyClientMetadata{}).(clientMetadata); ok {
		return md.userAgent
	}
	if c := GetContract(ctx); c != nil {
		return c.UserAgent
	}
	return ""
}

// WithPrincipalID injects the authenticated principal. The auth middleware
// calls this before the contract stage runs so the contract can capture it.
func WithPrincipalID(ctx context.Context, principalID string) context.Context {
	return context.WithValue(ctx, contextKeyPrincipalID{}, principalID)
}

// PrincipalID retrieves the authenticated principal ID, or "" for anonymous
// requests.
func PrincipalID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKeyPrincipalID{}).(string); ok {
		return id
	}
	if c := GetContract(ctx); c != nil {
		return c.PrincipalID
	}
	return ""
}

// WithTime injects a specific time into a context. Useful for service unit
// tests that don't run the full middleware chain, and for workers that need
// a consistent time within a batch operation.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, contextKeyRequestTime{}, t)
}

// Now retrieves the request-scoped time from the context so all stages of one
// request share a single clock reading. Falls back to time.Now() for
// non-HTTP contexts (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(contextKeyRequestTime{}).(time.Time); ok {
		return t
	}
	if c := GetContract(ctx); c != nil && !c.StartTime.IsZero() {
		return c.StartTime
	}
	return time.Now()
}

// WithValidatedBody stores the canonicalized request body produced by the
// schema validation stage. Handlers prefer this over re-decoding the raw body.
func WithValidatedBody(ctx context.Context, body any) context.Context {
	return context.WithValue(ctx, contextKeyValidatedBody{}, body)
}

// ValidatedBody retrieves the canonicalized body, or nil if the schema stage
// did not run for this route.
func ValidatedBody(ctx context.Context) any {
	return ctx.Value(contextKeyValidatedBody{})
}
