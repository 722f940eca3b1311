package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResponseCache stores pre-marshaled JSON responses, bounded by entry count.
// Keys should embed whatever version makes the data stale (for the catalog,
// its generation), so stale entries are never read and simply age out.
type ResponseCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewResponseCache creates a cache of at most maxEntries entries, each
// living for at most ttl. maxEntries <= 0 means unbounded and ttl <= 0 means
// entries never expire.
func NewResponseCache(maxEntries int, ttl time.Duration) *ResponseCache {
	if maxEntries < 0 {
		maxEntries = 0
	}
	return &ResponseCache{
		lru: expirable.NewLRU[string, []byte](maxEntries, nil, ttl),
	}
}

// GetOrSet returns the cached value or builds, stores and returns it. Build
// errors are returned and nothing is stored.
func (c *ResponseCache) GetOrSet(key string, build func() ([]byte, error)) ([]byte, error) {
	if data, ok := c.lru.Get(key); ok {
		return data, nil
	}
	data, err := build()
	if err != nil {
		return nil, err
	}
	c.lru.Add(key, data)
	return data, nil
}

// Purge drops every entry.
func (c *ResponseCache) Purge() {
	c.lru.Purge()
}

func (c *ResponseCache) Len() int {
	return c.lru.Len()
}
