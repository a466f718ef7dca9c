package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_idempotency.lua
var claimIdempotencyScript string

// pendingMarker is stored under an idempotency key while its request runs
const pendingMarker = "pending"

type Client struct {
	rdb         *redis.Client
	claimScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:         rdb,
		claimScript: redis.NewScript(claimIdempotencyScript),
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func idempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:checkout:%s", key)
}

// ClaimIdempotencyKey atomically claims key for a new request.
// It returns claimed=true when the caller now owns the key. Otherwise
// result holds the stored order ID, or is empty while the owning request
// is still running.
func (c *Client) ClaimIdempotencyKey(ctx context.Context, key string, ttl time.Duration) (claimed bool, result string, err error) {
	res, err := c.claimScript.Run(ctx, c.rdb, []string{idempotencyKey(key)}, pendingMarker, ttl.Milliseconds()).Result()
	if err != nil {
		return false, "", fmt.Errorf("claim idempotency script failed: %w", err)
	}

	current, ok := res.(string)
	if !ok {
		return false, "", fmt.Errorf("unexpected script result type")
	}

	switch current {
	case "":
		return true, "", nil
	case pendingMarker:
		return false, "", nil
	default:
		return false, current, nil
	}
}

// CompleteIdempotencyKey stores the order produced for key
func (c *Client) CompleteIdempotencyKey(ctx context.Context, key, orderID string, ttl time.Duration) error {
	return c.rdb.Set(ctx, idempotencyKey(key), orderID, ttl).Err()
}

// ReleaseIdempotencyKey drops a claim so the request may be retried
func (c *Client) ReleaseIdempotencyKey(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, idempotencyKey(key)).Err()
}

// SetJSON stores value encoded as JSON with TTL
func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

// GetJSON decodes the JSON stored at key into dst. It reports false on a miss.
func (c *Client) GetJSON(ctx context.Context, key string, dst interface{}) (bool, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}
