package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultLRUSize bounds the LRU backend when no size is configured.
const DefaultLRUSize = 10000

// LRUCache is a size-bounded in-memory cache. It evicts the least recently
// used key once full, and expires every key after the configured TTL.
//
// The underlying LRU has a single cache-wide TTL, so SetWithTTL records a
// per-key deadline that Get checks on read.
type LRUCache struct {
	lru       *expirable.LRU[string, []byte]
	mu        sync.Mutex
	deadlines map[string]time.Time
}

// NewLRU creates an LRU cache holding at most size keys.
func NewLRU(size int, ttl time.Duration) *LRUCache {
	if size <= 0 {
		size = DefaultLRUSize
	}
	c := &LRUCache{deadlines: make(map[string]time.Time)}
	c.lru = expirable.NewLRU[string, []byte](size, c.onEvict, ttl)
	return c
}

func (c *LRUCache) onEvict(key string, _ []byte) {
	c.mu.Lock()
	delete(c.deadlines, key)
	c.mu.Unlock()
}

func (c *LRUCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	deadline, ok := c.deadlines[key]
	c.mu.Unlock()
	if ok && time.Now().After(deadline) {
		c.lru.Remove(key)
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *LRUCache) Set(_ context.Context, key string, value []byte) {
	c.mu.Lock()
	delete(c.deadlines, key)
	c.mu.Unlock()
	c.lru.Add(key, value)
}

func (c *LRUCache) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) {
	c.lru.Add(key, value)
	c.mu.Lock()
	if ttl > 0 {
		c.deadlines[key] = time.Now().Add(ttl)
	} else {
		delete(c.deadlines, key)
	}
	c.mu.Unlock()
}

func (c *LRUCache) Delete(_ context.Context, key string) {
	c.lru.Remove(key)
}

func (c *LRUCache) Clear(_ context.Context) {
	c.lru.Purge()
}

// Len returns the number of keys currently held.
func (c *LRUCache) Len() int {
	return c.lru.Len()
}

var _ Cache = (*LRUCache)(nil)
