package identity

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"storefront-orders/internal/util"

	"go.uber.org/zap"
)

// IdentityCache stores resolved identities as JSON
type IdentityCache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// CachedAuthenticator remembers successful authentications for a short TTL,
// keyed by a hash of the token so raw credentials never reach the cache.
type CachedAuthenticator struct {
	next   Authenticator
	cache  IdentityCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedAuthenticator wraps next with a cache
func NewCachedAuthenticator(next Authenticator, cache IdentityCache, ttl time.Duration) *CachedAuthenticator {
	return &CachedAuthenticator{
		next:   next,
		cache:  cache,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

func cacheKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return "identity:" + hex.EncodeToString(sum[:])
}

// Authenticate serves from cache when possible. Cache errors fall through
// to the wrapped authenticator.
func (c *CachedAuthenticator) Authenticate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}

	key := cacheKey(token)

	var cached Identity
	found, err := c.cache.GetJSON(ctx, key, &cached)
	if err != nil {
		c.logger.Warn("Identity cache read failed", zap.Error(err))
	} else if found {
		return &cached, nil
	}

	id, err := c.next.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetJSON(ctx, key, id, c.ttl); err != nil {
		c.logger.Warn("Identity cache write failed", zap.Error(err))
	}
	return id, nil
}
