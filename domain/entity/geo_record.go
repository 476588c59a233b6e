package entity

import (
	"time"
)

// UnknownCountryCode is the sentinel stored when no tier produced data for an
// IP. Caching it suppresses repeated remote lookups within the freshness
// window.
const UnknownCountryCode = "ZZ"

// GeoRecord is the geographic annotation for an IP address, owned by the
// persistent GeoIP cache and keyed by IP.
type GeoRecord struct {
	IP          string    `json:"ip" db:"ip"`
	CountryCode string    `json:"country_code" db:"country_code"`
	CountryName string    `json:"country_name,omitempty" db:"country_name"`
	Region      string    `json:"region,omitempty" db:"region"`
	City        string    `json:"city,omitempty" db:"city"`
	Latitude    float64   `json:"latitude,omitempty" db:"latitude"`
	Longitude   float64   `json:"longitude,omitempty" db:"longitude"`
	IsVPN       bool      `json:"is_vpn" db:"is_vpn"`
	IsTor       bool      `json:"is_tor" db:"is_tor"`
	IsInEU      bool      `json:"is_in_eu" db:"is_in_eu"`
	CheckedAt   time.Time `json:"checked_at" db:"checked_at"`
}

// Sentinel reports whether this record is a cached "no data" marker.
func (r *GeoRecord) Sentinel() bool {
	return r.CountryCode == UnknownCountryCode || r.CountryCode == ""
}

// Fresh reports whether the record is still inside the freshness window and
// does not need a re-lookup.
func (r *GeoRecord) Fresh(now time.Time, freshness time.Duration) bool {
	return now.Sub(r.CheckedAt) < freshness
}

// SentinelRecord builds the negative-result record persisted when every
// lookup tier missed.
func SentinelRecord(ip string, now time.Time) *GeoRecord {
	return &GeoRecord{
		IP:          ip,
		CountryCode: UnknownCountryCode,
		CheckedAt:   now,
	}
}
