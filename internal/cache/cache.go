package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Cached represents a cached backend response
type Cached[T any] struct {
	Value     T
	Timestamp time.Time
}

// Cache is a goroutine-safe in-memory cache with a fixed time to live
type Cache[T any] struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

// New creates a cache whose entries expire after ttl. A ttl <= 0 never expires.
func New[T any](ttl time.Duration) *Cache[T] {
	return &Cache[T]{ttl: ttl, now: time.Now}
}

// GenerateKey generates a cache key from its parts
func GenerateKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Load returns the cached value for key if present and fresh
func (c *Cache[T]) Load(key string) (T, bool) {
	var zero T
	val, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}
	cached := val.(Cached[T])
	if c.ttl > 0 && c.now().Sub(cached.Timestamp) > c.ttl {
		c.entries.Delete(key)
		return zero, false
	}
	return cached.Value, true
}

// Store caches v under key
func (c *Cache[T]) Store(key string, v T) {
	c.entries.Store(key, Cached[T]{Value: v, Timestamp: c.now()})
}

// Purge drops every entry
func (c *Cache[T]) Purge() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
}
