package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// IPWhoisProvider queries the secondary geolocation endpoint. Its schema
// signals success with a boolean rather than a status string.
type IPWhoisProvider struct {
	baseURL string
	client  *http.Client
}

type ipWhoisResponse struct {
	Success     bool    `json:"success"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsEU        bool    `json:"is_eu"`
	Security    struct {
		VPN bool `json:"vpn"`
		Tor bool `json:"tor"`
	} `json:"security"`
}

// NewIPWhoisProvider creates the secondary remote geolocation provider.
func NewIPWhoisProvider(baseURL string, timeout time.Duration) *IPWhoisProvider {
	return &IPWhoisProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs and metrics.
func (p *IPWhoisProvider) Name() string {
	return "ipwhois"
}

// Lookup queries the provider for ip. Returns nil, nil when the provider
// answered but reported no usable data.
func (p *IPWhoisProvider) Lookup(ctx context.Context, ip string) (*entity.GeoRecord, error) {
	url := fmt.Sprintf("%s/%s", p.baseURL, ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	var body ipWhoisResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if !body.Success || placeholderCountry(body.CountryCode) {
		return nil, nil
	}

	return &entity.GeoRecord{
		IP:          ip,
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		Region:      body.Region,
		City:        body.City,
		Latitude:    body.Latitude,
		Longitude:   body.Longitude,
		IsVPN:       body.Security.VPN,
		IsTor:       body.Security.Tor,
		IsInEU:      body.IsEU,
		CheckedAt:   time.Now().UTC(),
	}, nil
}
