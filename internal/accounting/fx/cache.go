package fx

import (
	"sync"
	"time"
)

type cacheEntry struct {
	snapshot Snapshot
	expires  time.Time
}

// Cache is the resolver's in-process snapshot cache. Entries expire after the
// TTL; when full, expired entries are purged first and then the entry closest to
// expiry is evicted.
type Cache struct {
	mu         sync.Mutex
	ttl        time.Duration
	maxEntries int
	entries    map[string]cacheEntry
	now        func() time.Time
}

// NewCache constructs a cache. maxEntries <= 0 means unbounded.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Cache{ttl: ttl, maxEntries: maxEntries, entries: make(map[string]cacheEntry), now: time.Now}
}

// WithNow overrides the clock.
func (c *Cache) WithNow(now func() time.Time) {
	if now != nil {
		c.now = now
	}
}

// Get returns a live entry.
func (c *Cache) Get(key string) (Snapshot, bool) {
	if c == nil {
		return Snapshot{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return Snapshot{}, false
	}
	if !c.now().Before(entry.expires) {
		delete(c.entries, key)
		return Snapshot{}, false
	}
	return entry.snapshot, true
}

// Put stores snapshot under key for the cache TTL.
func (c *Cache) Put(key string, snapshot Snapshot) {
	if c == nil {
		return
	}
	c.PutFor(key, snapshot, c.ttl)
}

// PutFor stores snapshot for ttl, capped at the cache TTL.
func (c *Cache) PutFor(key string, snapshot Snapshot, ttl time.Duration) {
	if c == nil || ttl <= 0 {
		return
	}
	if ttl > c.ttl {
		ttl = c.ttl
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.evictLocked(now)
	}
	c.entries[key] = cacheEntry{snapshot: snapshot, expires: now.Add(ttl)}
}

// Invalidate drops key.
func (c *Cache) Invalidate(key string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *Cache) evictLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expires) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.maxEntries {
		return
	}
	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expires.Before(oldest) {
			oldestKey, oldest = key, entry.expires
		}
	}
	delete(c.entries, oldestKey)
}
