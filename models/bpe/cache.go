package bpe

import (
	"sync"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/sebpuetz/tokenizers/api"
)

// DefaultCacheCapacity is the number of words a BPE cache holds by default.
const DefaultCacheCapacity = 10_000

// Cache memoizes the tokenization of single words across encode calls. It
// is strictly best effort: reads and writes both use non-blocking lock
// acquisition, so a contended cache produces misses and dropped updates
// instead of stalling the tokenization hot path. Entries are immutable
// once stored and callers must not mutate returned values.
type Cache struct {
	mu       sync.Mutex
	lru      *simplelru.LRU[string, []api.Token]
	capacity int
}

// NewCache creates a cache bounded to capacity entries. A capacity of 0
// disables caching entirely.
func NewCache(capacity int) *Cache {
	c := &Cache{capacity: capacity}
	if capacity > 0 {
		// NewLRU only fails on a non-positive size.
		c.lru, _ = simplelru.NewLRU[string, []api.Token](capacity, nil)
	}
	return c
}

// Fresh returns an empty cache with the same capacity.
func (c *Cache) Fresh() *Cache {
	return NewCache(c.capacity)
}

// Capacity returns the configured capacity.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Clear empties the cache. Unlike the hot-path operations it blocks.
func (c *Cache) Clear() {
	if c.lru == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// GetValues looks up a batch of keys. The second return value is false
// when the cache could not be read without waiting; the caller treats
// every key as a miss. Otherwise the returned slice has one entry per key,
// nil for misses.
func (c *Cache) GetValues(keys []string) ([][]api.Token, bool) {
	if c.lru == nil {
		return nil, false
	}
	if !c.mu.TryLock() {
		return nil, false
	}
	defer c.mu.Unlock()
	values := make([][]api.Token, len(keys))
	for i, k := range keys {
		if v, ok := c.lru.Get(k); ok {
			values[i] = v
		}
	}
	return values, true
}

// SetValues stores a batch of entries. The update is discarded when the
// cache cannot be written without waiting. nil values are skipped.
func (c *Cache) SetValues(keys []string, values [][]api.Token) {
	if c.lru == nil {
		return
	}
	if !c.mu.TryLock() {
		return
	}
	defer c.mu.Unlock()
	for i, k := range keys {
		if values[i] == nil {
			continue
		}
		c.lru.Add(k, values[i])
	}
}
