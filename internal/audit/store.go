package audit

import (
	"context"
)

// Store is the append-only persistence contract. Implementations never
// update or delete records.
type Store interface {
	Append(ctx context.Context, record Record) error
	ListByPrincipal(ctx context.Context, principalID string) ([]Record, error)
	ListByRequestID(ctx context.Context, requestID string) ([]Record, error)
}
