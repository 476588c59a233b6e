package geoip

import (
	"sync"
	"time"

	"github.com/dominic-g/wp-api-rate-limiter/domain/entity"
)

// MemoryCache is the short-lived in-process GeoIP cache. It stores either a
// record or an explicit negative marker, so repeated misses for the same IP
// do not hit the persistent cache or the remote tiers within the TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryCacheEntry
	ttl     time.Duration
	now     func() time.Time

	lastSweep time.Time
}

type memoryCacheEntry struct {
	record    *entity.GeoRecord
	negative  bool
	expiresAt time.Time
}

// NewMemoryCache creates an in-process cache with the given entry TTL.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*memoryCacheEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached record for ip. The second return distinguishes "no
// cache entry" from a cached negative result (nil record, true).
func (c *MemoryCache) Get(ip string) (*entity.GeoRecord, bool) {
	c.mu.RLock()
	ent, ok := c.entries[ip]
	c.mu.RUnlock()

	if !ok || c.now().After(ent.expiresAt) {
		return nil, false
	}
	if ent.negative {
		return nil, true
	}
	return ent.record, true
}

// Set caches a record for ip.
func (c *MemoryCache) Set(ip string, record *entity.GeoRecord) {
	c.store(ip, &memoryCacheEntry{record: record, expiresAt: c.now().Add(c.ttl)})
}

// SetNegative caches a "no data" marker for ip.
func (c *MemoryCache) SetNegative(ip string) {
	c.store(ip, &memoryCacheEntry{negative: true, expiresAt: c.now().Add(c.ttl)})
}

// Delete evicts the entry for ip. Used by forced re-resolution.
func (c *MemoryCache) Delete(ip string) {
	c.mu.Lock()
	delete(c.entries, ip)
	c.mu.Unlock()
}

func (c *MemoryCache) store(ip string, ent *memoryCacheEntry) {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[ip] = ent

	// Opportunistic sweep instead of a janitor goroutine.
	if now.Sub(c.lastSweep) >= time.Minute {
		c.lastSweep = now
		for k, e := range c.entries {
			if now.After(e.expiresAt) {
				delete(c.entries, k)
			}
		}
	}
}

// Len returns the number of live entries. Used in tests.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
