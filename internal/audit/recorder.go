package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"palisade/internal/platform/metrics"
	"palisade/pkg/redact"
	"palisade/pkg/requestcontext"
)

// Recorder writes an audit record after the response has been sent. It only
// fires for mutating methods and runs detached from the request lifecycle:
// the client never waits on it, and nothing it does, including a panic, can
// reach the already-sent response.
type Recorder struct {
	publisher *Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	// pending tracks detached writes so tests and shutdown can drain them.
	pending sync.WaitGroup
}

func NewRecorder(publisher *Publisher, logger *slog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{publisher: publisher, logger: logger, metrics: m}
}

// Wait blocks until every detached audit write has finished.
func (rec *Recorder) Wait() {
	rec.pending.Wait()
}

// Middleware returns the audit stage for one route. action and resource name
// what the route does; the rest of the record comes from the request
// contract and the validated body.
func (rec *Recorder) Middleware(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			if !isMutating(r.Method) || !performed(sw) {
				return
			}

			ctx := context.WithoutCancel(r.Context())
			record := rec.buildRecord(ctx, r, action, resource, sw.status)

			rec.pending.Add(1)
			go func() {
				defer rec.pending.Done()
				defer func() {
					if p := recover(); p != nil {
						rec.logger.Error("audit record write panicked",
							"panic", p,
							"request_id", record.RequestID,
						)
						rec.metrics.RecordAuditOutcome("panic")
					}
				}()

				if err := rec.publisher.Emit(ctx, record); err != nil {
					rec.logger.ErrorContext(ctx, "failed to write audit record",
						"error", err,
						"request_id", record.RequestID,
						"action", record.Action,
					)
					rec.metrics.RecordAuditOutcome("error")
					return
				}
				rec.metrics.RecordAuditOutcome("ok")
			}()
		})
	}
}

func (rec *Recorder) buildRecord(ctx context.Context, r *http.Request, action, resource string, status int) Record {
	record := Record{
		Action:    action,
		Resource:  resource,
		Status:    status,
		ClientIP:  requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Details:   buildDetails(r, requestcontext.ValidatedBody(ctx)),
		Timestamp: requestcontext.Now(ctx),
	}
	if principal := requestcontext.PrincipalID(ctx); principal != "" {
		record.PrincipalID = &principal
	}
	return record
}

// buildDetails summarizes the request for the audit trail. Attachment
// content is dropped before redaction; only names and sizes are recorded.
func buildDetails(r *http.Request, body any) map[string]any {
	details := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
	}
	if body == nil {
		return details
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return details
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return details
	}
	if atts, ok := m["attachments"].([]any); ok {
		for _, a := range atts {
			if am, ok := a.(map[string]any); ok {
				delete(am, "content")
			}
		}
	}
	if redacted, ok := redact.Value(m).(map[string]any); ok {
		details["body"] = redacted
	}
	return details
}

// performed reports whether the handler executed the underlying action.
// A replayed idempotent response is answered from the store, and a conflict
// response rejects the duplicate outright; neither leaves a new side effect,
// so the original record stays the only one for the action.
func performed(sw *statusWriter) bool {
	if sw.Header().Get("X-Idempotent-Replay") == "true" {
		return false
	}
	return sw.status != http.StatusConflict
}

func isMutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// statusWriter captures the status code written by the handler chain.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
