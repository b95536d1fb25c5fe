// Package idempotency gives retried requests the same outcome as their
// original attempt. Operations are identified by a client-supplied key; the
// first attempt records itself before executing, and later attempts either
// replay the stored response or are rejected while the original is still in
// flight.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Status is the lifecycle state of a record. A record is created as
// StatusProcessing and transitions to a terminal state exactly once.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Record is the durable trace of one logically-single operation.
type Record struct {
	Key         string          `json:"key"`
	PayloadHash string          `json:"payloadHash"`
	Status      Status          `json:"status"`
	StatusCode  int             `json:"statusCode,omitempty"`
	Response    json.RawMessage `json:"response,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	ExpiresAt   time.Time       `json:"expiresAt"`
}

// Expired reports whether the record is past retention. Expired records are
// treated as if the key had never been seen.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// HashPayload fingerprints a canonicalized payload so key reuse with a
// different body can be detected.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
