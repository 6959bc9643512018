package cache

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is a size-bounded, thread-safe cache with hit/miss accounting.
//
// The embedding cache uses it as its in-process tier: entries are never
// invalidated, only evicted when the bound is reached.
type LRU[K comparable, V any] struct {
	cache   *lru.Cache[K, V]
	hits    atomic.Uint64
	misses  atomic.Uint64
	evicted atomic.Uint64
	purging atomic.Bool
	onEvict func(K, V)
}

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithEvictHook registers fn to run after an entry is evicted for capacity.
func WithEvictHook[K comparable, V any](fn func(K, V)) Option[K, V] {
	return func(c *LRU[K, V]) { c.onEvict = fn }
}

// NewLRU creates an LRU holding at most size entries.
//
// Example:
//
//	c, err := NewLRU[string, []float64](10000)
//	if err != nil {
//	    return err
//	}
//	c.Add("img.jpg|raw", vec)
func NewLRU[K comparable, V any](size int, opts ...Option[K, V]) (*LRU[K, V], error) {
	c := &LRU[K, V]{}
	for _, opt := range opts {
		opt(c)
	}

	inner, err := lru.NewWithEvict[K, V](size, func(k K, v V) {
		if c.purging.Load() {
			return
		}
		c.evicted.Add(1)
		if c.onEvict != nil {
			c.onEvict(k, v)
		}
	})
	if err != nil {
		return nil, err
	}
	c.cache = inner
	return c, nil
}

// Get returns the value for key and records a hit or miss.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Add stores value under key, evicting the least recently used entry when
// full. It reports whether an eviction happened.
func (c *LRU[K, V]) Add(key K, value V) bool {
	return c.cache.Add(key, value)
}

// Contains reports presence without touching recency or counters.
func (c *LRU[K, V]) Contains(key K) bool {
	return c.cache.Contains(key)
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.cache.Remove(key)
}

// Len returns the number of entries in the cache.
func (c *LRU[K, V]) Len() int {
	return c.cache.Len()
}

// Purge drops every entry and resets the counters. Purged entries are not
// counted as evictions.
func (c *LRU[K, V]) Purge() {
	c.purging.Store(true)
	c.cache.Purge()
	c.purging.Store(false)
	c.hits.Store(0)
	c.misses.Store(0)
	c.evicted.Store(0)
}

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Evicted uint64  `json:"evicted"`
	Size    int     `json:"size"`
	HitRate float64 `json:"hitRate"`
}

// Stats returns current cache statistics.
func (c *LRU[K, V]) Stats() Stats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}
	return Stats{
		Hits:    hits,
		Misses:  misses,
		Evicted: c.evicted.Load(),
		Size:    c.cache.Len(),
		HitRate: hitRate,
	}
}
