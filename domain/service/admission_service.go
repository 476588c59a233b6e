package service

import (
	"context"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// CounterStore is the shared fixed-window counter backing the rate limiter.
// IncrementAndGet must be atomic across concurrent callers of the same key:
// a read-then-write implementation is a correctness bug.
type CounterStore interface {
	// IncrementAndGet increments the counter for key in the current fixed
	// window and returns the post-increment value. The entry is created with
	// a TTL of one window on first increment so stale windows self-expire.
	IncrementAndGet(ctx context.Context, key string, window time.Duration) (int64, error)
}

// LimitProvider resolves the applicable limit configuration for a request.
// Implementations must never fail the request: on any load error they return
// the hardcoded safe defaults.
type LimitProvider interface {
	// GlobalLimit returns the global limit for the given identity class.
	GlobalLimit(ctx context.Context, authenticated bool) entity.LimitConfig

	// ResolveLimit looks up a specific (scope, target) configuration.
	// Returns false when no enabled config exists for the pair.
	ResolveLimit(ctx context.Context, kind entity.ScopeKind, target string) (entity.LimitConfig, bool)
}

// AdmissionService decides whether an inbound request is admitted.
type AdmissionService interface {
	// Check classifies the caller, consults the counter store, and returns
	// an allow/deny verdict. It never performs network I/O beyond the
	// counter store and never returns an error: degraded dependencies
	// resolve to an allow verdict.
	Check(ctx context.Context, ip string, identity *entity.Identity, scope string) entity.Verdict
}

// SettingsRepository is the key-value settings store backing limit
// configuration.
type SettingsRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
