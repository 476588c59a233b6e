package service

import (
	"context"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// GeoResolver resolves an IP address to a geographic record through the
// tiered lookup chain. A nil record with a nil error means "no data": lookups
// are best-effort enrichment and never fail the request.
type GeoResolver interface {
	// Resolve returns the record for ip, or nil when no tier produced data.
	// force bypasses both caches and re-queries the remote tiers.
	Resolve(ctx context.Context, ip string, force bool) (*entity.GeoRecord, error)
}

// GeoProvider is one remote geolocation endpoint.
type GeoProvider interface {
	// Name identifies the provider in logs and metrics.
	Name() string

	// Lookup queries the provider for ip. A nil record with a nil error
	// means the provider answered but had no usable data; an error covers
	// timeouts, transport failures, and malformed responses.
	Lookup(ctx context.Context, ip string) (*entity.GeoRecord, error)
}

// GeoRepository is the persistent GeoIP cache, keyed by IP.
type GeoRepository interface {
	GetByIP(ctx context.Context, ip string) (*entity.GeoRecord, error)
	Upsert(ctx context.Context, record *entity.GeoRecord) error
}

// RangeResolver answers country lookups from the static local dataset.
type RangeResolver interface {
	// CountryCode returns the country for an IPv4 address, or "" when the
	// address falls outside every known range.
	CountryCode(ip string) string
}
