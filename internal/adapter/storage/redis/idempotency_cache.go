package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis. It only
// remembers that a key was committed; it never stores results.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: "ledger:idempotency:",
	}
}

// Seen reports whether key was marked and has not expired.
func (c *IdempotencyCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis idempotency exists: %w", err)
	}
	return n > 0, nil
}

// Mark records key as committed for ttl. Marking an already-marked key keeps
// its original expiry.
func (c *IdempotencyCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.SetNX(ctx, c.prefix+key, 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency mark: %w", err)
	}
	return nil
}
