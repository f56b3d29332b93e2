package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const responsePrefix = "wallet:idem:"

// IdempotencyCache keeps the serialized result of a completed money movement
// so that a retried request can be answered without touching Postgres.
type IdempotencyCache struct {
	client *goredis.Client
}

// NewIdempotencyCache creates an IdempotencyCache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{client: client}
}

// Get returns the cached response for key, or nil when there is none.
func (c *IdempotencyCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, responsePrefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading idempotent response %q: %w", key, err)
	}
	return val, nil
}

// Set stores value under key for ttl.
func (c *IdempotencyCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, responsePrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("caching idempotent response %q: %w", key, err)
	}
	return nil
}
