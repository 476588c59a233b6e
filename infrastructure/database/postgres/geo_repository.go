package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// GeoRepository implements the persistent GeoIP cache for PostgreSQL
type GeoRepository struct {
	db *sqlx.DB
}

// NewGeoRepository creates a new PostgreSQL GeoIP cache repository
func NewGeoRepository(db *sqlx.DB) *GeoRepository {
	return &GeoRepository{db: db}
}

// GetByIP returns the cached record for an IP, or nil when none exists.
func (r *GeoRepository) GetByIP(ctx context.Context, ip string) (*entity.GeoRecord, error) {
	var record entity.GeoRecord

	query := `
		SELECT ip, country_code, country_name, region, city,
		       latitude, longitude, is_vpn, is_tor, is_in_eu, checked_at
		FROM geoip_cache
		WHERE ip = $1`

	err := r.db.GetContext(ctx, &record, query, ip)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query geoip cache: %w", err)
	}

	return &record, nil
}

// Upsert writes a record through to the cache, keyed by IP.
func (r *GeoRepository) Upsert(ctx context.Context, record *entity.GeoRecord) error {
	query := `
		INSERT INTO geoip_cache (
			ip, country_code, country_name, region, city,
			latitude, longitude, is_vpn, is_tor, is_in_eu, checked_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
		ON CONFLICT (ip) DO UPDATE SET
			country_code = EXCLUDED.country_code,
			country_name = EXCLUDED.country_name,
			region = EXCLUDED.region,
			city = EXCLUDED.city,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			is_vpn = EXCLUDED.is_vpn,
			is_tor = EXCLUDED.is_tor,
			is_in_eu = EXCLUDED.is_in_eu,
			checked_at = EXCLUDED.checked_at`

	_, err := r.db.ExecContext(ctx, query,
		record.IP, record.CountryCode, record.CountryName, record.Region,
		record.City, record.Latitude, record.Longitude,
		record.IsVPN, record.IsTor, record.IsInEU, record.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert geoip record: %w", err)
	}

	return nil
}
