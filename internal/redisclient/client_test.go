package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestClaimIdempotencyKey(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	claimed, result, err := client.ClaimIdempotencyKey(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Empty(t, result)

	claimed, result, err = client.ClaimIdempotencyKey(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed, "in-flight key cannot be claimed twice")
	assert.Empty(t, result)

	require.NoError(t, client.CompleteIdempotencyKey(ctx, "k1", "order-1", time.Minute))
	claimed, result, err = client.ClaimIdempotencyKey(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, "order-1", result)

	require.NoError(t, client.ReleaseIdempotencyKey(ctx, "k1"))
	claimed, _, err = client.ClaimIdempotencyKey(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)

	mr.FastForward(2 * time.Minute)
	claimed, _, err = client.ClaimIdempotencyKey(ctx, "k1", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed, "expired claim is free again")
}

func TestJSONCache(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	type entry struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}

	var got entry
	found, err := client.GetJSON(ctx, "identity:x", &got)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetJSON(ctx, "identity:x", entry{UserID: "u1", Role: "admin"}, time.Second))
	found, err = client.GetJSON(ctx, "identity:x", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, entry{UserID: "u1", Role: "admin"}, got)

	mr.FastForward(2 * time.Second)
	found, err = client.GetJSON(ctx, "identity:x", &got)
	require.NoError(t, err)
	assert.False(t, found)
}
