package tisapi

import (
	"sync"

	"github.com/tisops/tis-crawler/pkg/metrics"
)

// responseCache is a thread-safe, exact-URL-keyed cache for decoded
// catalog responses. Unlike a true-LRU cache, this one refuses new
// inserts once at capacity instead of evicting; a cached entry is never
// dropped to make room, only by an explicit clear(). See DESIGN.md for the
// eviction-policy rationale.
type responseCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string][]byte
	metrics  *metrics.CacheMetrics
}

func newResponseCache(capacity int, m *metrics.CacheMetrics) *responseCache {
	return &responseCache{
		capacity: capacity,
		entries:  make(map[string][]byte),
		metrics:  m,
	}
}

func (c *responseCache) get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	if ok {
		c.metrics.HitsTotal.Inc()
	} else {
		c.metrics.MissesTotal.Inc()
	}
	return v, ok
}

// set inserts key/value, refusing the insert if the cache is already at
// capacity and key is new. Returns whether the insert was accepted.
func (c *responseCache) set(key string, value []byte) bool {
	if c.capacity <= 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		c.metrics.InsertsRejectedTotal.Inc()
		return false
	}
	c.entries[key] = value
	c.metrics.Size.Set(float64(len(c.entries)))
	return true
}

func (c *responseCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.metrics.Size.Set(0)
}

func (c *responseCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
