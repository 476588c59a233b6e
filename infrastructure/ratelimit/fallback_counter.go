package ratelimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// FallbackCounter tries the shared counter store first and falls back to the
// in-process counter when it is unreachable. Fallback keeps limits enforced
// per instance rather than failing wide open while Redis is down.
type FallbackCounter struct {
	primary   service.CounterStore
	secondary service.CounterStore
	logger    *logging.Logger
	collector *metrics.Collector
}

// NewFallbackCounter creates a counter store with a degraded-mode secondary.
// secondary may be nil, in which case primary errors are returned as-is.
func NewFallbackCounter(primary, secondary service.CounterStore, logger *logging.Logger, collector *metrics.Collector) *FallbackCounter {
	return &FallbackCounter{
		primary:   primary,
		secondary: secondary,
		logger:    logger.WithComponent("fallback_counter"),
		collector: collector,
	}
}

// IncrementAndGet implements service.CounterStore.
func (c *FallbackCounter) IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := c.primary.IncrementAndGet(ctx, key, window)
	if err == nil {
		return count, nil
	}

	if c.collector != nil {
		c.collector.CounterStoreDegraded.Inc()
	}

	if c.secondary == nil {
		return 0, err
	}

	c.logger.Warn("primary counter store unavailable, using in-memory fallback",
		zap.String("key", key),
		zap.Error(err),
	)
	return c.secondary.IncrementAndGet(ctx, key, window)
}
