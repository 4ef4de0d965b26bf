package tokenizer

import (
	"fmt"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TokenCache memoizes merge results keyed by raw BPE token.
//
// Implementations must be safe for concurrent use. Values are pure functions
// of their key, so when two goroutines miss on the same key at once both may
// compute, but only one result is stored and both results are equal.
type TokenCache interface {
	// GetOrCompute returns the cached value for token, calling compute and
	// storing its result on a miss.
	GetOrCompute(token string, compute func(string) string) string

	// Len returns the number of cached entries.
	Len() int
}

// NewTokenCache selects a cache implementation from size: 0 is unbounded,
// a positive size is an LRU holding at most size entries, and a negative size
// disables caching.
func NewTokenCache(size int) (TokenCache, error) {
	switch {
	case size == 0:
		return NewUnboundedCache(), nil
	case size > 0:
		return NewLRUCache(size)
	default:
		return NewNopCache(), nil
	}
}

// UnboundedCache is an append-only cache. Entries are never evicted, which
// suits short-lived batch jobs.
type UnboundedCache struct {
	m sync.Map
	n atomic.Int64
}

// NewUnboundedCache creates an empty UnboundedCache.
func NewUnboundedCache() *UnboundedCache {
	return &UnboundedCache{}
}

// GetOrCompute implements TokenCache.
func (c *UnboundedCache) GetOrCompute(token string, compute func(string) string) string {
	if v, ok := c.m.Load(token); ok {
		return v.(string)
	}

	v, loaded := c.m.LoadOrStore(token, compute(token))
	if !loaded {
		c.n.Add(1)
	}
	return v.(string)
}

// Len implements TokenCache.
func (c *UnboundedCache) Len() int {
	return int(c.n.Load())
}

// LRUCache is a bounded cache for long-running services.
type LRUCache struct {
	c *lru.Cache[string, string]
}

// NewLRUCache creates an LRU cache holding at most size entries.
func NewLRUCache(size int) (*LRUCache, error) {
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create token cache of size %d: %w", size, err)
	}
	return &LRUCache{c: c}, nil
}

// GetOrCompute implements TokenCache.
func (c *LRUCache) GetOrCompute(token string, compute func(string) string) string {
	if v, ok := c.c.Get(token); ok {
		return v
	}

	v := compute(token)
	if prev, ok, _ := c.c.PeekOrAdd(token, v); ok {
		return prev
	}
	return v
}

// Len implements TokenCache.
func (c *LRUCache) Len() int {
	return c.c.Len()
}

type nopCache struct{}

// NewNopCache returns a cache that never stores anything.
func NewNopCache() TokenCache {
	return nopCache{}
}

func (nopCache) GetOrCompute(token string, compute func(string) string) string {
	return compute(token)
}

func (nopCache) Len() int { return 0 }
