package idempotency

import (
	"context"
	"time"

	dErrors "palisade/pkg/domain-errors"
)

var (
	// ErrNotFound is returned when a key has never been seen or has expired.
	ErrNotFound = dErrors.New(dErrors.CodeNotFound, "idempotency record not found")
	// ErrDuplicateKey is returned by Insert when a live record already holds
	// the key.
	ErrDuplicateKey = dErrors.New(dErrors.CodeConflict, "idempotency key already recorded")
)

// Store persists idempotency records. Get must not return expired records;
// Insert must fail with ErrDuplicateKey when a live record exists, but may
// replace an expired one.
type Store interface {
	Insert(ctx context.Context, record Record) error
	Get(ctx context.Context, key string) (*Record, error)
	Update(ctx context.Context, record Record) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}
