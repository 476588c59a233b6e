package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
)

// RedisCounter implements the fixed-window counter over a shared Redis
// instance. INCR is atomic server-side, so concurrent callers on the same
// key never lose updates; there is no get/set round trip to race.
type RedisCounter struct {
	client *redis.Client
	logger *logging.Logger
	now    func() time.Time
}

// NewRedisCounter creates a new Redis-backed counter store
func NewRedisCounter(client *redis.Client, logger *logging.Logger) *RedisCounter {
	return &RedisCounter{
		client: client,
		logger: logger.WithComponent("redis_counter"),
		now:    time.Now,
	}
}

// IncrementAndGet atomically increments the counter for key in the current
// window and returns the new value. The EXPIRE rides the same pipeline as
// the INCR: the first increment of a fresh window sets the TTL, so stale
// windows self-expire without explicit cleanup.
func (c *RedisCounter) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, error) {
	composite := WindowKey(key, c.now(), window)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, composite)
	pipe.Expire(ctx, composite, window)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("counter increment failed: %w", err)
	}

	count := incr.Val()
	c.logger.Debug("counter incremented",
		zap.String("key", composite),
		zap.Int64("count", count),
	)
	return count, nil
}

// Ping verifies the counter store is reachable.
func (c *RedisCounter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
