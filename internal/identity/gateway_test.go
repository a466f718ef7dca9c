package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront-orders/internal/models"
	"storefront-orders/internal/redisclient"
	"storefront-orders/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGateway(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Path != "/auth/v1/user" || r.Header.Get("apikey") != "anon-key" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		switch r.Header.Get("Authorization") {
		case "Bearer admin-token":
			_, _ = w.Write([]byte(`{"id":"admin-1","email":"admin@example.com"}`))
		case "Bearer user-token":
			_, _ = w.Write([]byte(`{"id":"user-1","email":"user@example.com"}`))
		case "Bearer broken-token":
			w.WriteHeader(http.StatusBadGateway)
		default:
			w.WriteHeader(http.StatusUnauthorized)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGatewayClientAuthenticate(t *testing.T) {
	var calls int32
	srv := newGateway(t, &calls)

	roles := store.NewMemoryStore()
	require.NoError(t, roles.UpsertProfile(context.Background(), &models.Profile{ID: "admin-1", Role: "admin"}))

	client := NewGatewayClient(srv.URL, "anon-key", roles)
	ctx := context.Background()

	id, err := client.Authenticate(ctx, "admin-token")
	require.NoError(t, err)
	assert.Equal(t, "admin-1", id.UserID)
	assert.True(t, id.HasRole("admin"))

	id, err = client.Authenticate(ctx, "user-token")
	require.NoError(t, err)
	assert.Equal(t, DefaultRole, id.Role, "users without a profile are customers")

	_, err = client.Authenticate(ctx, "expired")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = client.Authenticate(ctx, "broken-token")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)

	before := atomic.LoadInt32(&calls)
	_, err = client.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, before, atomic.LoadInt32(&calls), "empty token never reaches the gateway")
}

func TestCachedAuthenticator(t *testing.T) {
	var calls int32
	srv := newGateway(t, &calls)

	mr := miniredis.RunT(t)
	cache, err := redisclient.NewClient(mr.Addr(), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { cache.Close() })

	auth := NewCachedAuthenticator(NewGatewayClient(srv.URL, "anon-key", store.NewMemoryStore()), cache, time.Minute)
	ctx := context.Background()

	first, err := auth.Authenticate(ctx, "user-token")
	require.NoError(t, err)
	second, err := auth.Authenticate(ctx, "user-token")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	assert.False(t, mr.Exists("identity:user-token"), "raw tokens are not used as keys")

	_, err = auth.Authenticate(ctx, "expired")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = auth.Authenticate(ctx, "expired")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "failures are not cached")

	mr.FastForward(2 * time.Minute)
	_, err = auth.Authenticate(ctx, "user-token")
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), &Identity{UserID: "u1"})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "u1", id.UserID)
}
