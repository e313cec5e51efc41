package retrieval

import (
	"sync"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// resultCache is a bounded TTL cache of grounding results keyed by
// query+options. Inserts and evictions are mutex-guarded; concurrent
// requests may race to cache the same key and the last write wins.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	entries  map[string]cacheEntry
	now      func() time.Time
}

type cacheEntry struct {
	result    domain.GroundingResult
	expiresAt time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	if capacity <= 0 {
		capacity = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		entries:  make(map[string]cacheEntry, capacity),
		now:      time.Now,
	}
}

func (c *resultCache) get(key string) (domain.GroundingResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return domain.GroundingResult{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return domain.GroundingResult{}, false
	}
	return entry.result, true
}

func (c *resultCache) put(key string, result domain.GroundingResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.capacity {
		c.evictLocked()
	}

	c.entries[key] = cacheEntry{
		result:    result,
		expiresAt: c.now().Add(c.ttl),
	}
}

// evictLocked removes all expired entries; if none expired, it removes the
// entry closest to expiry to free one slot. Callers hold c.mu.
func (c *resultCache) evictLocked() {
	now := c.now()
	evicted := false
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			evicted = true
		}
	}
	if evicted {
		return
	}

	var oldestKey string
	var oldest time.Time
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// EvictExpired removes every expired entry and returns how many were
// dropped. Called from the maintenance worker.
func (c *resultCache) EvictExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
