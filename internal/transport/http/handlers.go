package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"palisade/internal/audit"
	"palisade/internal/idempotency"
	"palisade/internal/schema"
	dErrors "palisade/pkg/domain-errors"
	"palisade/pkg/platform/httputil"
	"palisade/pkg/requestcontext"
)

// Handler is the thin HTTP layer behind the governance pipeline. Message
// generation and document processing are external collaborators; these
// handlers accept the work and answer with its identity.
type Handler struct {
	logger      *slog.Logger
	idempotency *idempotency.Service
	audit       *audit.Publisher
}

func NewHandler(logger *slog.Logger, idem *idempotency.Service, auditPub *audit.Publisher) *Handler {
	return &Handler{
		logger:      logger,
		idempotency: idem,
		audit:       auditPub,
	}
}

type chatResponse struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Model     string    `json:"model"`
	Status    string    `json:"status"`
	RequestID string    `json:"requestId"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := requestcontext.ValidatedBody(ctx).(*schema.ChatRequest)
	if !ok {
		h.logger.ErrorContext(ctx, "chat handler invoked without validated body")
		httputil.WriteError(w, dErrors.New(dErrors.CodeContextMissing, "request context not initialized"), requestcontext.RequestID(ctx))
		return
	}

	h.execute(w, r, body, func() (*idempotency.Outcome, error) {
		chatID := body.ChatID
		if chatID == "" {
			chatID = uuid.NewString()
		}
		resp := chatResponse{
			ID:        uuid.NewString(),
			ChatID:    chatID,
			Model:     body.Model,
			Status:    "accepted",
			RequestID: requestcontext.RequestID(ctx),
			CreatedAt: requestcontext.Now(ctx),
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode chat response")
		}
		return &idempotency.Outcome{StatusCode: http.StatusCreated, Body: raw}, nil
	})
}

type analyzeResponse struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	OutputFormat    string    `json:"outputFormat"`
	AttachmentCount int       `json:"attachmentCount"`
	RequestID       string    `json:"requestId"`
	CreatedAt       time.Time `json:"createdAt"`
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, ok := requestcontext.ValidatedBody(ctx).(*schema.AnalyzeRequest)
	if !ok {
		h.logger.ErrorContext(ctx, "analyze handler invoked without validated body")
		httputil.WriteError(w, dErrors.New(dErrors.CodeContextMissing, "request context not initialized"), requestcontext.RequestID(ctx))
		return
	}

	h.execute(w, r, body, func() (*idempotency.Outcome, error) {
		resp := analyzeResponse{
			ID:              uuid.NewString(),
			Status:          "accepted",
			OutputFormat:    body.OutputFormat,
			AttachmentCount: len(body.Attachments),
			RequestID:       requestcontext.RequestID(ctx),
			CreatedAt:       requestcontext.Now(ctx),
		}
		raw, err := json.Marshal(resp)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "encode analyze response")
		}
		return &idempotency.Outcome{StatusCode: http.StatusAccepted, Body: raw}, nil
	})
}

// execute runs fn through the idempotency store using the key and canonical
// payload established earlier in the pipeline, then writes the outcome.
func (h *Handler) execute(w http.ResponseWriter, r *http.Request, body any, fn func() (*idempotency.Outcome, error)) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	payload, err := json.Marshal(body)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "encode request payload"), requestID)
		return
	}

	key := requestcontext.IdempotencyKey(ctx)
	out, replayed, err := h.idempotency.Execute(ctx, key, payload, func(context.Context) (*idempotency.Outcome, error) {
		return fn()
	})
	if err != nil {
		httputil.WriteError(w, err, requestID)
		return
	}
	if out == nil || out.StatusCode == 0 {
		// A replayed record of an attempt that died before storing a
		// response has nothing usable to return.
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "stored response unavailable"), requestID)
		return
	}

	if replayed {
		w.Header().Set("X-Idempotent-Replay", "true")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(out.StatusCode)
	_, _ = w.Write(out.Body)
}

type auditTrailResponse struct {
	Records []audit.Record `json:"records"`
}

// handleAuditTrail returns the caller's own audit trail. The route sits
// behind required authentication, so a principal is always present.
func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal := requestcontext.PrincipalID(ctx)

	records, err := h.audit.List(ctx, principal)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "load audit trail"), requestcontext.RequestID(ctx))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, auditTrailResponse{Records: records})
}
