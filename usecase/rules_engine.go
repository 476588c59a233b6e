package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/ratelimit"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// RulesEngine decides whether a request is admitted. The decision is a pure
// function of the accumulated window count against the configured limit: no
// randomness, no probabilistic admission. All dependency failures degrade
// toward allowing the request.
type RulesEngine struct {
	counters  service.CounterStore
	limits    service.LimitProvider
	logger    *logging.Logger
	collector *metrics.Collector
	now       func() time.Time
}

// NewRulesEngine creates the admission decision service.
func NewRulesEngine(counters service.CounterStore, limits service.LimitProvider, logger *logging.Logger, collector *metrics.Collector) *RulesEngine {
	return &RulesEngine{
		counters:  counters,
		limits:    limits,
		logger:    logger.WithComponent("rules_engine"),
		collector: collector,
		now:       time.Now,
	}
}

// Check classifies the caller, consults the fixed-window counter, and
// returns the verdict. scope is recorded for future per-endpoint limits; the
// current decision path resolves only the two global identity-class configs.
func (e *RulesEngine) Check(ctx context.Context, ip string, identity *entity.Identity, scope string) entity.Verdict {
	authenticated := identity != nil && identity.UserID != ""
	start := e.now()

	limit := e.limits.GlobalLimit(ctx, authenticated)
	if limit.Disabled() {
		return entity.Allow(limit)
	}

	key := counterKey(ip, identity, authenticated)

	count, err := e.counters.IncrementAndGet(ctx, key, limit.Window)
	if err != nil {
		// Fail open: rate limiting is protective, not correctness-critical.
		if e.collector != nil {
			e.collector.CounterStoreDegraded.Inc()
		}
		e.logger.Warn("counter store unavailable, admitting request",
			zap.String("key", key),
			zap.Error(err),
		)
		return entity.Allow(limit)
	}

	e.observe(authenticated, start)

	if count > limit.Count {
		retryAfter := ratelimit.UntilRollover(e.now(), limit.Window)
		if e.collector != nil {
			e.collector.RequestsBlocked.WithLabelValues(identityClass(authenticated)).Inc()
		}
		e.logger.Info("request blocked by rate limit",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int64("limit", limit.Count),
			zap.Duration("retry_after", retryAfter),
		)
		return entity.Deny(limit, retryAfter)
	}

	if e.collector != nil {
		e.collector.RequestsAllowed.WithLabelValues(identityClass(authenticated)).Inc()
	}
	return entity.Allow(limit)
}

func (e *RulesEngine) observe(authenticated bool, start time.Time) {
	if e.collector == nil {
		return
	}
	e.collector.CheckDuration.
		WithLabelValues(identityClass(authenticated)).
		Observe(e.now().Sub(start).Seconds())
}

// counterKey builds the per-identity counter base key. Authenticated callers
// share one bucket per user regardless of source address; everyone else is
// keyed by IP, raw string included even when it fails IPv4 validation.
func counterKey(ip string, identity *entity.Identity, authenticated bool) string {
	if authenticated {
		return "auth_user:" + identity.UserID
	}
	return "unauth_ip:" + ip
}

func identityClass(authenticated bool) string {
	if authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}
