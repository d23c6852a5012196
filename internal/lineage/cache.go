package lineage

import "github.com/hashicorp/golang-lru/v2/simplelru"

// DefaultCacheSize is the number of results the reuse cache keeps by default.
const DefaultCacheSize = 256

// CacheStats summarizes reuse-cache activity.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

type cacheEntry struct {
	key  string
	rows int
	cols int
	data []float64
}

// reuseCache is an LRU map from structural lineage key to computed values.
// Not safe for concurrent use; Context serializes access. A nil lru means
// reuse is disabled.
type reuseCache struct {
	lru   *simplelru.LRU[string, *cacheEntry]
	size  int
	stats CacheStats
}

func newReuseCache(capacity int) *reuseCache {
	c := &reuseCache{size: capacity}
	c.reset()
	return c
}

func (c *reuseCache) get(key string) (*cacheEntry, bool) {
	if c.lru == nil {
		return nil, false
	}
	e, ok := c.lru.Get(key)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.stats.Hits++
	return e, true
}

func (c *reuseCache) put(e *cacheEntry) {
	if c.lru == nil {
		return
	}
	c.lru.Add(e.key, e)
}

func (c *reuseCache) snapshot() CacheStats {
	s := c.stats
	if c.lru != nil {
		s.Size = c.lru.Len()
	}
	return s
}

// reset drops all entries without counting them as evictions.
func (c *reuseCache) reset() {
	if c.size <= 0 {
		c.lru = nil
		return
	}
	lru, err := simplelru.NewLRU[string, *cacheEntry](c.size, func(string, *cacheEntry) {
		c.stats.Evictions++
	})
	if err != nil {
		c.lru = nil
		return
	}
	c.lru = lru
}
