package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/database/postgres"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
)

// Settings keys for the two global limit configurations.
const (
	SettingKeyUnauthenticated = "rate_limit.unauthenticated"
	SettingKeyAuthenticated   = "rate_limit.authenticated"
)

// limitSetting is the JSON document stored in the settings table.
type limitSetting struct {
	Count         int64 `json:"count"`
	WindowSeconds int64 `json:"window_seconds"`
	Enabled       bool  `json:"enabled"`
}

// SettingsLimitProvider resolves limit configurations from the key-value
// settings store, caching them in-process for a short TTL so the hot path
// never waits on postgres. Any load failure resolves to the hardcoded safe
// defaults, never to a request failure.
type SettingsLimitProvider struct {
	settings  service.SettingsRepository
	defaults  config.RateLimitConfig
	ttl       time.Duration
	logger    *logging.Logger
	collector *metrics.Collector
	now       func() time.Time

	mu     sync.RWMutex
	cache  map[string]entity.LimitConfig
	loaded map[string]time.Time
}

// NewSettingsLimitProvider creates the settings-backed limit provider.
func NewSettingsLimitProvider(settings service.SettingsRepository, defaults config.RateLimitConfig, logger *logging.Logger, collector *metrics.Collector) *SettingsLimitProvider {
	return &SettingsLimitProvider{
		settings:  settings,
		defaults:  defaults,
		ttl:       defaults.SettingsTTL,
		logger:    logger.WithComponent("limit_provider"),
		collector: collector,
		now:       time.Now,
		cache:     make(map[string]entity.LimitConfig),
		loaded:    make(map[string]time.Time),
	}
}

// GlobalLimit returns the global limit for the identity class, provisioning
// the settings row with configured defaults on first read-miss.
func (p *SettingsLimitProvider) GlobalLimit(ctx context.Context, authenticated bool) entity.LimitConfig {
	key := SettingKeyUnauthenticated
	fallback := entity.LimitConfig{
		ScopeKind: entity.ScopeGlobalUnauthenticated,
		Count:     p.defaults.UnauthenticatedCount,
		Window:    p.defaults.UnauthenticatedWindow,
		Enabled:   true,
	}
	if authenticated {
		key = SettingKeyAuthenticated
		fallback = entity.LimitConfig{
			ScopeKind: entity.ScopeGlobalAuthenticated,
			Count:     p.defaults.AuthenticatedCount,
			Window:    p.defaults.AuthenticatedWindow,
			Enabled:   true,
		}
	}
	if fallback.Count <= 0 || fallback.Window <= 0 {
		if authenticated {
			fallback = entity.DefaultAuthenticatedLimit()
		} else {
			fallback = entity.DefaultUnauthenticatedLimit()
		}
	}

	if cached, ok := p.cached(key); ok {
		return cached
	}

	cfg, err := p.load(ctx, key, fallback)
	if err != nil {
		if p.collector != nil {
			p.collector.LimitConfigFallbacks.Inc()
		}
		p.logger.Warn("failed to load limit configuration, using defaults",
			zap.String("key", key),
			zap.Error(err),
		)
		return fallback
	}

	p.store(key, cfg)
	return cfg
}

// ResolveLimit looks up a specific (scope, target) configuration. Only the
// two global scopes are stored today; richer scopes are part of the data
// model and resolve to "not configured".
func (p *SettingsLimitProvider) ResolveLimit(ctx context.Context, kind entity.ScopeKind, target string) (entity.LimitConfig, bool) {
	switch kind {
	case entity.ScopeGlobalUnauthenticated:
		return p.GlobalLimit(ctx, false), true
	case entity.ScopeGlobalAuthenticated:
		return p.GlobalLimit(ctx, true), true
	}
	return entity.LimitConfig{}, false
}

// UpdateGlobalLimit persists a new global limit and invalidates the cache.
func (p *SettingsLimitProvider) UpdateGlobalLimit(ctx context.Context, authenticated bool, count, windowSeconds int64) (entity.LimitConfig, error) {
	if count <= 0 || windowSeconds <= 0 {
		return entity.LimitConfig{}, fmt.Errorf("count and window must be positive")
	}

	key := SettingKeyUnauthenticated
	kind := entity.ScopeGlobalUnauthenticated
	if authenticated {
		key = SettingKeyAuthenticated
		kind = entity.ScopeGlobalAuthenticated
	}

	doc, err := json.Marshal(limitSetting{Count: count, WindowSeconds: windowSeconds, Enabled: true})
	if err != nil {
		return entity.LimitConfig{}, fmt.Errorf("failed to encode limit setting: %w", err)
	}

	if err := p.settings.Set(ctx, key, string(doc)); err != nil {
		return entity.LimitConfig{}, err
	}

	cfg := entity.LimitConfig{
		ScopeKind: kind,
		Count:     count,
		Window:    time.Duration(windowSeconds) * time.Second,
		Enabled:   true,
	}
	p.store(key, cfg)
	return cfg, nil
}

// load reads a limit setting, provisioning it on first miss.
func (p *SettingsLimitProvider) load(ctx context.Context, key string, fallback entity.LimitConfig) (entity.LimitConfig, error) {
	raw, err := p.settings.Get(ctx, key)
	if errors.Is(err, postgres.ErrSettingNotFound) {
		doc, mErr := json.Marshal(limitSetting{
			Count:         fallback.Count,
			WindowSeconds: int64(fallback.Window / time.Second),
			Enabled:       true,
		})
		if mErr == nil {
			if sErr := p.settings.Set(ctx, key, string(doc)); sErr != nil {
				p.logger.Warn("failed to provision default limit setting",
					zap.String("key", key),
					zap.Error(sErr),
				)
			}
		}
		return fallback, nil
	}
	if err != nil {
		return entity.LimitConfig{}, err
	}

	var doc limitSetting
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return entity.LimitConfig{}, fmt.Errorf("malformed limit setting %q: %w", key, err)
	}

	return entity.LimitConfig{
		ScopeKind: fallback.ScopeKind,
		Count:     doc.Count,
		Window:    time.Duration(doc.WindowSeconds) * time.Second,
		Enabled:   doc.Enabled,
	}, nil
}

func (p *SettingsLimitProvider) cached(key string) (entity.LimitConfig, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	loadedAt, ok := p.loaded[key]
	if !ok || p.now().Sub(loadedAt) >= p.ttl {
		return entity.LimitConfig{}, false
	}
	return p.cache[key], true
}

func (p *SettingsLimitProvider) store(key string, cfg entity.LimitConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache[key] = cfg
	p.loaded[key] = p.now()
}
