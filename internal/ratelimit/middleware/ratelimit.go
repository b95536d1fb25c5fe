package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"palisade/internal/ratelimit/models"
	"palisade/pkg/platform/httputil"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/requestcontext"
)

// RateLimiter is the service contract this middleware consumes.
type RateLimiter interface {
	Check(ctx context.Context, clientIP, principalID string) (*models.Result, error)
}

type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
}

func New(limiter RateLimiter, logger *slog.Logger) *Middleware {
	return &Middleware{limiter: limiter, logger: logger}
}

// rateLimitErrorBody is the 429 envelope naming the exhausted dimension.
type rateLimitErrorBody struct {
	Error rateLimitError `json:"error"`
}

type rateLimitError struct {
	Code       string           `json:"code"`
	Message    string           `json:"message"`
	RequestID  string           `json:"requestId"`
	RetryAfter int              `json:"retryAfter"`
	LimitType  models.LimitType `json:"limitType"`
}

// Handler enforces the rate limit stage. Headers are emitted on every
// outcome; an exhausted window short-circuits with 429 and retry guidance.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		c := requestcontext.GetContract(ctx)
		if c == nil {
			// Wiring bug, not a client error: the contract stage must run first.
			m.logger.ErrorContext(ctx, "rate limiter invoked without request contract")
			httputil.WriteError(w, dErrors.New(dErrors.CodeContextMissing, "request context not initialized"), "")
			return
		}

		result, err := m.limiter.Check(ctx, c.ClientIP, c.PrincipalID)
		if err != nil {
			// Fail open: an internal limiter failure must not take down the API.
			m.logger.ErrorContext(ctx, "rate limit check failed", "error", err, "request_id", c.RequestID)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			writeRateLimitExceeded(w, result, c.RequestID)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// addRateLimitHeaders emits X-RateLimit-* on success and failure alike.
func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(result.Remaining, 0)))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.Result, requestID string) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))

	message := "Too many requests from this IP address. Please try again later."
	if result.LimitType == models.LimitTypeUser {
		message = "You have exceeded your request quota. Please try again later."
	}

	httputil.WriteJSON(w, http.StatusTooManyRequests, rateLimitErrorBody{
		Error: rateLimitError{
			Code:       string(dErrors.CodeRateLimited),
			Message:    message,
			RequestID:  requestID,
			RetryAfter: result.RetryAfter,
			LimitType:  result.LimitType,
		},
	})
}
