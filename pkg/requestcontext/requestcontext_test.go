package requestcontext_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"palisade/pkg/requestcontext"
)

func TestContractRoundTrip(t *testing.T) {
	ctx := context.Background()
	require.Nil(t, requestcontext.GetContract(ctx))

	c := &requestcontext.Contract{
		RequestID:      "req-abc",
		IdempotencyKey: "idem-1",
		ClientIP:       "198.51.100.7",
		UserAgent:      "palisade-test/1.0",
		PrincipalID:    "user-17",
		StartTime:      time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	ctx = requestcontext.WithContract(ctx, c)

	assert.Same(t, c, requestcontext.GetContract(ctx))
}

func TestAccessorsFallBackToContract(t *testing.T) {
	start := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithContract(context.Background(), &requestcontext.Contract{
		RequestID:      "req-abc",
		IdempotencyKey: "idem-1",
		ClientIP:       "198.51.100.7",
		UserAgent:      "palisade-test/1.0",
		PrincipalID:    "user-17",
		StartTime:      start,
	})

	assert.Equal(t, "req-abc", requestcontext.RequestID(ctx))
	assert.Equal(t, "idem-1", requestcontext.IdempotencyKey(ctx))
	assert.Equal(t, "198.51.100.7", requestcontext.ClientIP(ctx))
	assert.Equal(t, "palisade-test/1.0", requestcontext.UserAgent(ctx))
	assert.Equal(t, "user-17", requestcontext.PrincipalID(ctx))
	assert.Equal(t, start, requestcontext.Now(ctx))
}

func TestDirectValuesTakePrecedenceOverContract(t *testing.T) {
	ctx := requestcontext.WithContract(context.Background(), &requestcontext.Contract{
		RequestID:      "contract-req",
		IdempotencyKey: "contract-key",
		ClientIP:       "10.0.0.1",
		UserAgent:      "contract-agent",
		PrincipalID:    "contract-user",
		StartTime:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	direct := time.Date(2025, 6, 1, 8, 30, 0, 0, time.UTC)
	ctx = requestcontext.WithRequestID(ctx, "direct-req")
	ctx = requestcontext.WithIdempotencyKey(ctx, "direct-key")
	ctx = requestcontext.WithClientMetadata(ctx, "192.0.2.44", "direct-agent")
	ctx = requestcontext.WithPrincipalID(ctx, "direct-user")
	ctx = requestcontext.WithTime(ctx, direct)

	assert.Equal(t, "direct-req", requestcontext.RequestID(ctx))
	assert.Equal(t, "direct-key", requestcontext.IdempotencyKey(ctx))
	assert.Equal(t, "192.0.2.44", requestcontext.ClientIP(ctx))
	assert.Equal(t, "direct-agent", requestcontext.UserAgent(ctx))
	assert.Equal(t, "direct-user", requestcontext.PrincipalID(ctx))
	assert.Equal(t, direct, requestcontext.Now(ctx))
}

func TestZeroValuesWithoutContract(t *testing.T) {
	ctx := context.Background()

	assert.Empty(t, requestcontext.RequestID(ctx))
	assert.Empty(t, requestcontext.IdempotencyKey(ctx))
	assert.Equal(t, "unknown", requestcontext.ClientIP(ctx))
	assert.Empty(t, requestcontext.UserAgent(ctx))
	assert.Empty(t, requestcontext.PrincipalID(ctx))
	assert.Nil(t, requestcontext.ValidatedBody(ctx))
}

func TestNowFallsBackToWallClock(t *testing.T) {
	before := time.Now()
	got := requestcontext.Now(context.Background())
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestNowIgnoresZeroContractStartTime(t *testing.T) {
	ctx := requestcontext.WithContract(context.Background(), &requestcontext.Contract{RequestID: "r"})

	got := requestcontext.Now(ctx)
	assert.False(t, got.IsZero())
}

func TestValidatedBody(t *testing.T) {
	type payload struct{ Message string }

	ctx := requestcontext.WithValidatedBody(context.Background(), &payload{Message: "hi"})

	body, ok := requestcontext.ValidatedBody(ctx).(*payload)
	require.True(t, ok)
	assert.Equal(t, "hi", body.Message)
}
