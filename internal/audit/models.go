// Package audit persists an append-only trail of mutating actions. Records
// are written after the response is sent and never block or fail the request
// that produced them.
package audit

import "time"

// Record is one audited action. Details are redacted before the record is
// built; nothing in this package sees raw secret values.
type Record struct {
	ID          string         `json:"id"`
	RequestID   string         `json:"requestId"`
	PrincipalID *string        `json:"principalId,omitempty"`
	Action      string         `json:"action"`
	Resource    string         `json:"resource"`
	Details     map[string]any `json:"details,omitempty"`
	ClientIP    string         `json:"clientIp"`
	UserAgent   string         `json:"userAgent"`
	Status      int            `json:"status"`
	Timestamp   time.Time      `json:"timestamp"`
}

const (
	ActionChatMessage     = "chat_message"
	ActionDocumentAnalyze = "document_analyze"
)
