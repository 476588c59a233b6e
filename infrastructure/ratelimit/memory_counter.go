package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounter is the in-process fixed-window counter. It backs tests and
// the degraded path when Redis is unreachable. Counts are local to the
// process, so under fallback each instance enforces the limit independently.
type MemoryCounter struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time

	lastSweep time.Time
}

type memoryEntry struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryCounter creates a new in-memory counter store
func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

// IncrementAndGet increments the counter for key in the current window under
// a single lock acquisition, matching the atomicity contract of the Redis
// implementation.
func (c *MemoryCounter) IncrementAndGet(_ context.Context, key string, window time.Duration) (int64, error) {
	now := c.now()
	composite := WindowKey(key, now, window)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.sweepLocked(now)

	ent, ok := c.entries[composite]
	if !ok || now.After(ent.expiresAt) {
		ent = &memoryEntry{expiresAt: now.Add(window)}
		c.entries[composite] = ent
	}
	ent.value++
	return ent.value, nil
}

// sweepLocked drops expired windows. Piggybacks on increments instead of a
// janitor goroutine; runs at most once per second.
func (c *MemoryCounter) sweepLocked(now time.Time) {
	if now.Sub(c.lastSweep) < time.Second {
		return
	}
	c.lastSweep = now
	for k, ent := range c.entries {
		if now.After(ent.expiresAt) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live counter entries. Used in tests.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
