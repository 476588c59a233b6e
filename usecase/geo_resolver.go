package usecase

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/geoip"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// GeoResolver resolves an IP to a geographic record through the tiered
// chain: in-process cache, persistent cache, remote provider A, remote
// provider B, static dataset, negative sentinel. Each tier is consulted only
// when the previous one missed, and whatever the chain produces is written
// through to both caches.
type GeoResolver struct {
	memory     *geoip.MemoryCache
	repository service.GeoRepository
	providers  []service.GeoProvider
	dataset    service.RangeResolver
	freshness  time.Duration
	logger     *logging.Logger
	collector  *metrics.Collector
	now        func() time.Time
}

// GeoResolverOptions collects the tier implementations.
type GeoResolverOptions struct {
	Memory     *geoip.MemoryCache
	Repository service.GeoRepository
	Providers  []service.GeoProvider
	Dataset    service.RangeResolver
	Freshness  time.Duration
}

// NewGeoResolver creates the tiered resolver.
func NewGeoResolver(opts GeoResolverOptions, logger *logging.Logger, collector *metrics.Collector) *GeoResolver {
	return &GeoResolver{
		memory:     opts.Memory,
		repository: opts.Repository,
		providers:  opts.Providers,
		dataset:    opts.Dataset,
		freshness:  opts.Freshness,
		logger:     logger.WithComponent("geo_resolver"),
		collector:  collector,
		now:        time.Now,
	}
}

// Resolve returns the record for ip, or nil when no tier produced real data.
// force bypasses both caches. Failures inside any tier fall through to the
// next; the caller never sees a provider error.
func (g *GeoResolver) Resolve(ctx context.Context, ip string, force bool) (*entity.GeoRecord, error) {
	if _, ok := geoip.IPv4ToUint32(ip); !ok {
		return nil, nil
	}

	if !force {
		if record, hit := g.memory.Get(ip); hit {
			g.countTier("memory")
			return record, nil
		}

		if record := g.fromRepository(ctx, ip); record != nil {
			g.countTier("persistent")
			g.memory.Set(ip, record)
			if record.Sentinel() {
				return nil, nil
			}
			return record, nil
		}
	}

	record := g.lookup(ctx, ip)

	if record == nil {
		record = entity.SentinelRecord(ip, g.now())
		g.countTier("sentinel")
	}

	g.writeThrough(ctx, ip, record)

	if record.Sentinel() {
		return nil, nil
	}
	return record, nil
}

// lookup runs the non-cache tiers in order.
func (g *GeoResolver) lookup(ctx context.Context, ip string) *entity.GeoRecord {
	if publicIPv4(ip) {
		for _, provider := range g.providers {
			record, err := provider.Lookup(ctx, ip)
			if err != nil {
				if g.collector != nil {
					g.collector.GeoProviderErrors.WithLabelValues(provider.Name()).Inc()
				}
				g.logger.Debug("geo provider failed",
					zap.String("provider", provider.Name()),
					zap.String("ip", ip),
					zap.Error(err),
				)
				continue
			}
			if record != nil {
				g.countTier(provider.Name())
				return record
			}
		}
	}

	if g.dataset != nil {
		if code := g.dataset.CountryCode(ip); code != "" {
			g.countTier("dataset")
			return &entity.GeoRecord{
				IP:          ip,
				CountryCode: code,
				CheckedAt:   g.now(),
			}
		}
	}

	return nil
}

// fromRepository returns the persisted record when it is still fresh.
func (g *GeoResolver) fromRepository(ctx context.Context, ip string) *entity.GeoRecord {
	if g.repository == nil {
		return nil
	}

	record, err := g.repository.GetByIP(ctx, ip)
	if err != nil {
		g.logger.Warn("geoip cache read failed",
			zap.String("ip", ip),
			zap.Error(err),
		)
		return nil
	}
	if record == nil || !record.Fresh(g.now(), g.freshness) {
		return nil
	}
	return record
}

// writeThrough persists the outcome (real or sentinel) to both caches.
// Persistence failures are logged and swallowed: enrichment is best-effort.
func (g *GeoResolver) writeThrough(ctx context.Context, ip string, record *entity.GeoRecord) {
	if record.Sentinel() {
		g.memory.SetNegative(ip)
	} else {
		g.memory.Set(ip, record)
	}

	if g.repository == nil {
		return
	}
	if err := g.repository.Upsert(ctx, record); err != nil {
		g.logger.Warn("geoip cache write failed",
			zap.String("ip", ip),
			zap.Error(err),
		)
	}
}

func (g *GeoResolver) countTier(tier string) {
	if g.collector != nil {
		g.collector.GeoLookups.WithLabelValues(tier).Inc()
	}
}

// publicIPv4 reports whether ip is publicly routable. Private, loopback,
// link-local, multicast, and unspecified addresses never reach the remote
// providers; they resolve from the static dataset or not at all.
func publicIPv4(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return false
	}
	if parsed.IsPrivate() || parsed.IsLoopback() || parsed.IsUnspecified() {
		return false
	}
	if parsed.IsLinkLocalUnicast() || parsed.IsLinkLocalMulticast() || parsed.IsMulticast() {
		return false
	}
	return true
}
