package geoip

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// IPAPIProvider queries the ip-api style endpoint: the IP is appended to the
// base URL and the response carries an explicit "status" discriminator.
type IPAPIProvider struct {
	baseURL string
	client  *http.Client
}

type ipAPIResponse struct {
	Status      string  `json:"status"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Proxy       bool    `json:"proxy"`
	Hosting     bool    `json:"hosting"`
}

// NewIPAPIProvider creates the primary remote geolocation provider.
func NewIPAPIProvider(baseURL string, timeout time.Duration) *IPAPIProvider {
	return &IPAPIProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs and metrics.
func (p *IPAPIProvider) Name() string {
	return "ipapi"
}

// Lookup queries the provider for ip. Returns nil, nil when the provider
// answered but reported no usable data.
func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*entity.GeoRecord, error) {
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

	var body ipAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode provider response: %w", err)
	}

	if body.Status != "success" || placeholderCountry(body.CountryCode) {
		return nil, nil
	}

	return &entity.GeoRecord{
		IP:          ip,
		CountryCode: body.CountryCode,
		CountryName: body.Country,
		Region:      body.RegionName,
		City:        body.City,
		Latitude:    body.Lat,
		Longitude:   body.Lon,
		IsVPN:       body.Proxy,
		CheckedAt:   time.Now().UTC(),
	}, nil
}

// placeholderCountry reports whether a provider country code carries no
// information.
func placeholderCountry(code string) bool {
	switch code {
	case "", "-", "--", entity.UnknownCountryCode:
		return true
	}
	return false
}
