// Package contract implements the first governance stage: it derives a
// canonical per-request identity and publishes it as immutable context for
// every later stage. The stage cannot fail; malformed or absent inputs fall
// back to safe defaults.
package contract

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"palisade/internal/platform/privacy"
	"palisade/pkg/requestcontext"
)

const (
	headerRequestID      = "X-Request-Id"
	headerIdempotencyKey = "X-Idempotency-Key"
	headerForwardedFor   = "X-Forwarded-For"

	// defaultPeekBytes bounds how much of the body the attachment peek will
	// read when no limit is configured. Bodies beyond the limit count as zero
	// attachments; the body limit stage rejects them before the schema stage.
	defaultPeekBytes = 64 << 20
)

var tracer trace.Tracer = otel.Tracer("palisade/contract")

// Middleware derives the request contract and attaches it to the context.
type Middleware struct {
	logger    *slog.Logger
	peekLimit int64
}

// Option configures the contract middleware.
type Option func(*Middleware)

// WithPeekLimit caps how many body bytes the attachment peek buffers. Set it
// to the configured request body limit so this stage never holds more of the
// body in memory than the body limit stage would admit.
func WithPeekLimit(n int64) Option {
	return func(m *Middleware) {
		if n > 0 {
			m.peekLimit = n
		}
	}
}

// New creates the contract middleware.
func New(logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{logger: logger, peekLimit: defaultPeekBytes}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler resolves the request contract before any other stage runs.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		attachments := peekAttachmentsCount(r, m.peekLimit)

		c := &requestcontext.Contract{
			RequestID:        resolveRequestID(r.Header.Get(headerRequestID)),
			IdempotencyKey:   r.Header.Get(headerIdempotencyKey),
			ClientIP:         resolveClientIP(r),
			UserAgent:        r.Header.Get("User-Agent"),
			PrincipalID:      requestcontext.PrincipalID(r.Context()),
			AttachmentsCount: attachments,
			IsBulkMode:       attachments > 0,
			StartTime:        start,
		}

		ctx := requestcontext.WithContract(r.Context(), c)
		ctx = requestcontext.WithTime(ctx, start)

		ctx, span := tracer.Start(ctx, "governance.admission",
			trace.WithAttributes(
				attribute.String("request.id", c.RequestID),
				attribute.Bool("request.bulk_mode", c.IsBulkMode),
			))
		defer span.End()

		w.Header().Set(headerRequestID, c.RequestID)

		m.logger.InfoContext(ctx, "request contract resolved",
			"request_id", c.RequestID,
			"client_ip_prefix", privacy.AnonymizeIP(c.ClientIP),
			"principal_id", c.PrincipalID,
			"idempotency_key_present", c.IdempotencyKey != "",
			"attachments_count", c.AttachmentsCount,
			"bulk_mode", c.IsBulkMode,
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolveRequestID accepts the client's value only if it is a version-4 UUID
// in the canonical hyphenated form; anything else gets a freshly minted ID.
// uuid.Parse also admits braced, urn-prefixed, and unhyphenated encodings,
// so the round-trip comparison rejects those.
func resolveRequestID(clientID string) string {
	id, err := uuid.Parse(clientID)
	if err == nil && id.Version() == 4 && strings.EqualFold(id.String(), clientID) {
		return clientID
	}
	return uuid.New().String()
}

// resolveClientIP prefers the first address in the forwarded-for chain, falls
// back to the transport peer address, and finally to the literal "unknown".
func resolveClientIP(r *http.Request) string {
	if xff := r.Header.Get(headerForwardedFor); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if host := stripPort(r.RemoteAddr); host != "" {
		return host
	}
	return "unknown"
}

// stripPort extracts the host part of RemoteAddr.
func stripPort(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}

	// IPv6 with brackets: [::1]:port
	if strings.HasPrefix(remoteAddr, "[") {
		if idx := strings.LastIndex(remoteAddr, "]:"); idx != -1 {
			return remoteAddr[1:idx]
		}
		return strings.Trim(remoteAddr, "[]")
	}

	if idx := strings.LastIndex(remoteAddr, ":"); idx != -1 {
		return remoteAddr[:idx]
	}
	return remoteAddr
}

// peekAttachmentsCount counts entries in a top-level "attachments" array on a
// JSON body, re-buffering the body so later stages can read it again. Any
// decode failure counts as zero; the schema stage owns real validation.
// One byte past the limit is read so an over-limit body re-buffers as over
// limit and the body limit stage still rejects it.
func peekAttachmentsCount(r *http.Request, limit int64) int {
	if r.Body == nil || r.Body == http.NoBody {
		return 0
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	_ = r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil || len(raw) == 0 || int64(len(raw)) > limit {
		return 0
	}

	var probe struct {
		Attachments json.RawMessage `json:"attachments"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.Attachments) == 0 {
		return 0
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(probe.Attachments, &entries); err != nil {
		// Present but not an array.
		return 0
	}
	return len(entries)
}
