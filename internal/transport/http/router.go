// Package httptransport wires the governance pipeline around the API
// endpoints. Per request the stages run in a fixed order: contract, schema
// validation, quota guard, rate limiting, then the handler, with the audit
// recorder firing after the response is sent. Stages short-circuit; a
// rejected request never reaches a later stage.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palisade/internal/audit"
	"palisade/internal/platform/health"
	"palisade/internal/platform/metrics"
	quotamw "palisade/internal/quota/middleware"
	ratelimitmw "palisade/internal/ratelimit/middleware"
	"palisade/internal/schema"
	authmw "palisade/pkg/platform/middleware/auth"
	contractmw "palisade/pkg/platform/middleware/contract"
	"palisade/pkg/platform/middleware/request"
)

// RouterConfig carries the wired pipeline pieces.
type RouterConfig struct {
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
	Verifier       *authmw.Verifier
	Contract       *contractmw.Middleware
	Schema         *schema.Middleware
	Quota          *quotamw.Guard
	RateLimit      *ratelimitmw.Middleware
	Audit          *audit.Recorder
	Health         *health.Handler
	MaxBodyBytes   int64
	RequestTimeout time.Duration
}

// NewRouter builds the full middleware chain and mounts the API routes.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(cfg.Verifier.Optional)
	r.Use(cfg.Contract.Handler)
	r.Use(request.Logger(cfg.Logger, cfg.Metrics))
	r.Use(request.BodyLimit(cfg.MaxBodyBytes))
	r.Use(request.Timeout(cfg.RequestTimeout))

	cfg.Health.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(request.ContentTypeJSON)

		r.With(
			cfg.Schema.Validate(schema.ShapeChat),
			cfg.Quota.Handler,
			cfg.RateLimit.Handler,
			cfg.Audit.Middleware(audit.ActionChatMessage, "chat"),
		).Post("/chat", h.handleChat)

		r.With(
			cfg.Schema.Validate(schema.ShapeAnalyze),
			cfg.Quota.Handler,
			cfg.RateLimit.Handler,
			cfg.Audit.Middleware(audit.ActionDocumentAnalyze, "documents"),
		).Post("/analyze", h.handleAnalyze)

		r.With(cfg.Verifier.Require).Get("/audit", h.handleAuditTrail)
	})

	return r
}
