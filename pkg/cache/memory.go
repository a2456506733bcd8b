package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memItem struct {
	value    []byte
	expireAt time.Time
	touched  time.Time
}

func (m memItem) expired(now time.Time) bool {
	return !m.expireAt.IsZero() && now.After(m.expireAt)
}

// MemoryCache is a bounded in-process Service. When full, the least
// recently read key is evicted; expired keys are dropped lazily.
type MemoryCache struct {
	mu      sync.Mutex
	items   map[string]memItem
	maxSize int
	now     func() time.Time
}

// MemoryOption configures a MemoryCache.
type MemoryOption func(*MemoryCache)

// WithMemoryMaxSize bounds the number of keys.
func WithMemoryMaxSize(n int) MemoryOption {
	return func(c *MemoryCache) {
		if n > 0 {
			c.maxSize = n
		}
	}
}

func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	c := &MemoryCache{items: make(map[string]memItem), maxSize: 1024, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	it, ok := c.items[key]
	if !ok || it.expired(now) {
		delete(c.items, key)
		return nil, ErrCacheMiss
	}
	it.touched = now
	c.items[key] = it
	return append([]byte(nil), it.value...), nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.put(key, append([]byte(nil), value...), ttl)
	return nil
}

func (c *MemoryCache) put(key string, value []byte, ttl time.Duration) {
	now := c.now()
	if _, ok := c.items[key]; !ok && len(c.items) >= c.maxSize {
		c.evict(now)
	}
	it := memItem{value: value, touched: now}
	if ttl > 0 {
		it.expireAt = now.Add(ttl)
	}
	c.items[key] = it
}

func (c *MemoryCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
	return nil
}

func (c *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.items[key]; ok && !it.expired(c.now()) {
		return "", false, nil
	}
	token := uuid.NewString()
	c.put(key, []byte(token), ttl)
	return token, true, nil
}

func (c *MemoryCache) Unlock(_ context.Context, key, token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.items[key]
	if !ok || it.expired(c.now()) || string(it.value) != token {
		return ErrNotLockOwner
	}
	delete(c.items, key)
	return nil
}

// evict drops expired keys, or the least recently touched one if none expired.
func (c *MemoryCache) evict(now time.Time) {
	var (
		oldest string
		at     time.Time
	)
	for k, it := range c.items {
		if it.expired(now) {
			delete(c.items, k)
			continue
		}
		if oldest == "" || it.touched.Before(at) {
			oldest, at = k, it.touched
		}
	}
	if len(c.items) >= c.maxSize && oldest != "" {
		delete(c.items, oldest)
	}
}

// Len reports the number of stored keys, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

var _ Service = (*MemoryCache)(nil)
