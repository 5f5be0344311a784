package insights

import "sync"

// CacheEntry bundles the derived artifacts for one table fingerprint.
type CacheEntry struct {
	Profile  *TableProfile
	Insights []Insight
}

// ProfileCache memoizes profiles and insight runs by table fingerprint. The
// analysis itself never consults it; callers decide when to reuse and when
// to invalidate. Entries evict oldest-first once maxEntries is reached.
// Safe for concurrent access.
type ProfileCache struct {
	mu         sync.RWMutex
	entries    map[string]*CacheEntry
	order      []string
	maxEntries int
}

func NewProfileCache(maxEntries int) *ProfileCache {
	if maxEntries <= 0 {
		maxEntries = 64
	}
	return &ProfileCache{
		entries:    make(map[string]*CacheEntry),
		maxEntries: maxEntries,
	}
}

func (c *ProfileCache) Get(fingerprint string) (*CacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.entries[fingerprint]
	c.mu.RUnlock()
	return e, ok
}

func (c *ProfileCache) Put(fingerprint string, e *CacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fingerprint]; !ok {
		c.order = append(c.order, fingerprint)
		for len(c.order) > c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[fingerprint] = e
}

// Invalidate drops one fingerprint and reports whether it was present.
func (c *ProfileCache) Invalidate(fingerprint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fingerprint]; !ok {
		return false
	}
	delete(c.entries, fingerprint)
	for i, fp := range c.order {
		if fp == fingerprint {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Reset drops every entry.
func (c *ProfileCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*CacheEntry)
	c.order = nil
}

func (c *ProfileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
