package stats

import "sync"

// cache memoizes computed results by key. It is bounded: once full, the
// oldest entry is evicted. A recompute race between two goroutines is
// benign (both compute the same value, last write wins), so there is no
// per-key locking.
type cache struct {
	mu      sync.RWMutex
	max     int
	entries map[string]any
	order   []string
}

func newCache(max int) *cache {
	return &cache{
		max:     max,
		entries: make(map[string]any, max),
	}
}

func (c *cache) get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *cache) put(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists {
		for len(c.entries) >= c.max && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = v
}

func (c *cache) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]any, c.max)
	c.order = c.order[:0]
}

func (c *cache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
