// Package cache is a small in-process TTL cache with hit and miss counters.
package cache

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	DefaultTTL     = 5 * time.Minute
	DefaultMaxSize = 500
)

type Config struct {
	TTL     time.Duration
	MaxSize int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Stats is a snapshot of the cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Sets      int64
	Deletes   int64
	Evictions int64
	Size      int
	TTL       time.Duration
}

// InMemoryCache maps string keys to values of type V for a fixed TTL. Safe
// for concurrent use.
type InMemoryCache[V any] struct {
	cache   map[string]*cachedRecord[V]
	mu      sync.RWMutex
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	// counters
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	evictions int64
}

type cachedRecord[V any] struct {
	value    V
	cachedAt time.Time
}

// NewInMemoryCache creates a new in-memory cache
func NewInMemoryCache[V any](c Config) *InMemoryCache[V] {
	if c.TTL == 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxSize == 0 {
		c.MaxSize = DefaultMaxSize
	}
	if c.Now == nil {
		c.Now = time.Now
	}

	return &InMemoryCache[V]{
		cache:   make(map[string]*cachedRecord[V]),
		ttl:     c.TTL,
		maxSize: c.MaxSize,
		now:     c.Now,
	}
}

// Get returns the value stored under key if it has not expired.
func (c *InMemoryCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	record, exists := c.cache[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		atomic.AddInt64(&c.misses, 1)
		return zero, false
	}
	if c.now().Sub(record.cachedAt) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		c.Delete(key)
		return zero, false
	}

	atomic.AddInt64(&c.hits, 1)
	return record.value, true
}

// Set stores value under key, evicting an arbitrary entry when full.
func (c *InMemoryCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.cache[key]; !exists && len(c.cache) >= c.maxSize {
		for k := range c.cache {
			delete(c.cache, k)
			atomic.AddInt64(&c.evictions, 1)
			break
		}
	}

	c.cache[key] = &cachedRecord[V]{
		value:    value,
		cachedAt: c.now(),
	}
	atomic.AddInt64(&c.sets, 1)
}

// Delete removes key from the cache
func (c *InMemoryCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, existed := c.cache[key]; existed {
		delete(c.cache, key)
		atomic.AddInt64(&c.deletes, 1)
	}
}

// Clear removes every entry
func (c *InMemoryCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = make(map[string]*cachedRecord[V])
}

// Len returns the number of cached entries
func (c *InMemoryCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

// Stats returns cache statistics
func (c *InMemoryCache[V]) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Sets:      atomic.LoadInt64(&c.sets),
		Deletes:   atomic.LoadInt64(&c.deletes),
		Evictions: atomic.LoadInt64(&c.evictions),
		Size:      c.Len(),
		TTL:       c.ttl,
	}
}
