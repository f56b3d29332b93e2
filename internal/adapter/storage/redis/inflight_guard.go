package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const inflightPrefix = "wallet:inflight:"

// InFlightGuard marks an idempotency key as being processed so a concurrent
// retry is rejected instead of moving money twice. The mark expires after ttl
// in case the holder dies before releasing it.
type InFlightGuard struct {
	client *goredis.Client
}

// NewInFlightGuard creates an InFlightGuard.
func NewInFlightGuard(client *goredis.Client) *InFlightGuard {
	return &InFlightGuard{client: client}
}

// Acquire reports whether the caller now owns key.
func (g *InFlightGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res, err := g.client.SetArgs(ctx, inflightPrefix+key, time.Now().UnixNano(), goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("acquiring in-flight mark %q: %w", key, err)
	}
	return res == "OK", nil
}

// Release drops the mark on key.
func (g *InFlightGuard) Release(ctx context.Context, key string) error {
	if err := g.client.Del(ctx, inflightPrefix+key).Err(); err != nil {
		return fmt.Errorf("releasing in-flight mark %q: %w", key, err)
	}
	return nil
}
