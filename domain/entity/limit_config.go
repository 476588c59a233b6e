package entity

import (
	"time"
)

// ScopeKind identifies which dimension a rate limit applies to.
type ScopeKind string

const (
	ScopeGlobalUnauthenticated ScopeKind = "global_unauthenticated"
	ScopeGlobalAuthenticated   ScopeKind = "global_authenticated"
	ScopePerRole               ScopeKind = "per_role"
	ScopePerEndpoint           ScopeKind = "per_endpoint"
	ScopePerUser               ScopeKind = "per_user"
	ScopePerIP                 ScopeKind = "per_ip"
)

// Default global limits, applied when no configuration can be loaded.
const (
	DefaultUnauthenticatedCount  = 100
	DefaultUnauthenticatedWindow = 60 * time.Second
	DefaultAuthenticatedCount    = 500
	DefaultAuthenticatedWindow   = 60 * time.Second
)

// LimitConfig represents a rate limit configuration for a scope.
// At most one enabled config exists per (ScopeKind, Target) pair.
type LimitConfig struct {
	ScopeKind     ScopeKind     `json:"scope_kind" yaml:"scope_kind"`
	Target        string        `json:"target,omitempty" yaml:"target,omitempty"`
	Count         int64         `json:"count" yaml:"count"`
	Window        time.Duration `json:"window" yaml:"window"`
	Burst         int64         `json:"burst,omitempty" yaml:"burst,omitempty"`
	BlockDuration time.Duration `json:"block_duration,omitempty" yaml:"block_duration,omitempty"`
	Enabled       bool          `json:"enabled" yaml:"enabled"`
}

// Disabled reports whether this limit should be treated as "no limiting":
// a non-positive count or window always resolves to allow.
func (c LimitConfig) Disabled() bool {
	return !c.Enabled || c.Count <= 0 || c.Window <= 0
}

// DefaultUnauthenticatedLimit returns the hardcoded safe default for
// unauthenticated callers.
func DefaultUnauthenticatedLimit() LimitConfig {
	return LimitConfig{
		ScopeKind: ScopeGlobalUnauthenticated,
		Count:     DefaultUnauthenticatedCount,
		Window:    DefaultUnauthenticatedWindow,
		Enabled:   true,
	}
}

// DefaultAuthenticatedLimit returns the hardcoded safe default for
// authenticated callers.
func DefaultAuthenticatedLimit() LimitConfig {
	return LimitConfig{
		ScopeKind: ScopeGlobalAuthenticated,
		Count:     DefaultAuthenticatedCount,
		Window:    DefaultAuthenticatedWindow,
		Enabled:   true,
	}
}

// Identity represents an authenticated caller.
type Identity struct {
	UserID string `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

// Verdict is the outcome of a rate limit check. It is transient: only its
// effects on the response and the audit record persist.
type Verdict struct {
	Blocked    bool          `json:"blocked"`
	RetryAfter time.Duration `json:"retry_after"`

	// Limit is the configuration that produced the verdict, echoed back for
	// response headers and logging.
	Limit LimitConfig `json:"-"`
}

// Allow is the verdict for an admitted request.
func Allow(limit LimitConfig) Verdict {
	return Verdict{Blocked: false, RetryAfter: 0, Limit: limit}
}

// Deny is the verdict for a rejected request.
func Deny(limit LimitConfig, retryAfter time.Duration) Verdict {
	return Verdict{Blocked: true, RetryAfter: retryAfter, Limit: limit}
}
