package models

import "time"

// LimitType names the window that produced a result.
type LimitType string

const (
	LimitTypeIP   LimitType = "ip"
	LimitTypeUser LimitType = "user"
)

// Result is the outcome of a single sliding-window check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"` // clamped to zero, never negative
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // whole seconds, only set when not allowed
	LimitType  LimitType `json:"limit_type"`
}
