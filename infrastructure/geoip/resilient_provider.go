package geoip

import (
	"context"
	"errors"
	"fmt"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
)

// ErrProviderThrottled is returned when the local pacing budget for a
// provider is exhausted.
var ErrProviderThrottled = errors.New("provider request budget exhausted")

// ResilientProvider decorates a remote provider with a circuit breaker and
// client-side request pacing. Free-tier endpoints enforce per-minute budgets;
// exceeding them gets the caller banned, so the limiter errs on the low side.
type ResilientProvider struct {
	inner   service.GeoProvider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewResilientProvider wraps a provider. ratePerMinute <= 0 disables pacing.
func NewResilientProvider(inner service.GeoProvider, ratePerMinute int, logger *logging.Logger) *ResilientProvider {
	p := &ResilientProvider{
		inner:  inner,
		logger: logger.WithComponent("geo_provider_" + inner.Name()),
	}

	if ratePerMinute > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(float64(ratePerMinute)/60.0), ratePerMinute)
	}

	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name: fmt.Sprintf("%s-circuit-breaker", inner.Name()),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			p.logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return p
}

// Name identifies the provider in logs and metrics.
func (p *ResilientProvider) Name() string {
	return p.inner.Name()
}

// Lookup runs the inner lookup inside the breaker, consuming one pacing
// token. A throttled or open-circuit call fails fast without touching the
// network so the resolver can fall through to the next tier.
func (p *ResilientProvider) Lookup(ctx context.Context, ip string) (*entity.GeoRecord, error) {
	if p.limiter != nil && !p.limiter.Allow() {
		return nil, ErrProviderThrottled
	}

	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.inner.Lookup(ctx, ip)
	})
	if err != nil {
		return nil, err
	}

	record, _ := result.(*entity.GeoRecord)
	return record, nil
}
