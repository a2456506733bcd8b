package cache

import (
	"context"
	"time"
)

// LayeredCache reads through a small memory layer in front of Redis. Writes
// go to Redis first; locks are Redis-only so they hold across processes.
type LayeredCache struct {
	mem    *MemoryCache
	remote Service
	ttl    time.Duration
}

// LayeredOption configures a LayeredCache.
type LayeredOption func(*LayeredCache)

// WithLayeredMemorySize bounds the memory layer.
func WithLayeredMemorySize(n int) LayeredOption {
	return func(c *LayeredCache) { c.mem = NewMemoryCache(WithMemoryMaxSize(n)) }
}

// WithLayeredLocalTTL caps how long a record is served from memory.
func WithLayeredLocalTTL(d time.Duration) LayeredOption {
	return func(c *LayeredCache) { c.ttl = d }
}

func NewLayeredCache(remote Service, opts ...LayeredOption) *LayeredCache {
	c := &LayeredCache{mem: NewMemoryCache(WithMemoryMaxSize(256)), remote: remote, ttl: 30 * time.Second}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *LayeredCache) localTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 || ttl > c.ttl {
		return c.ttl
	}
	return ttl
}

func (c *LayeredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if b, err := c.mem.Get(ctx, key); err == nil {
		return b, nil
	}
	b, err := c.remote.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	_ = c.mem.Set(ctx, key, b, c.ttl)
	return b, nil
}

func (c *LayeredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.remote.Set(ctx, key, value, ttl); err != nil {
		_ = c.mem.Delete(ctx, key)
		return err
	}
	return c.mem.Set(ctx, key, value, c.localTTL(ttl))
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.mem.Delete(ctx, keys...)
	return c.remote.Delete(ctx, keys...)
}

func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	return c.remote.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key, token string) error {
	return c.remote.Unlock(ctx, key, token)
}

var _ Service = (*LayeredCache)(nil)
