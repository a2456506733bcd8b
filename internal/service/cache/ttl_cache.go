package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	v   T
	exp time.Time
}

// TTL is a small in-process cache for collaborator responses.
type TTL[T any] struct {
	mu  sync.RWMutex
	m   map[string]entry[T]
	now func() time.Time
}

func NewTTL[T any]() *TTL[T] {
	return &TTL[T]{m: make(map[string]entry[T]), now: time.Now}
}

func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	if !e.exp.IsZero() && c.now().After(e.exp) {
		c.mu.Lock()
		delete(c.m, key)
		c.mu.Unlock()
		var zero T
		return zero, false
	}
	return e.v, true
}

// Set stores v; ttl <= 0 keeps it until deleted.
func (c *TTL[T]) Set(key string, v T, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.m[key] = entry[T]{v: v, exp: exp}
	c.mu.Unlock()
}

func (c *TTL[T]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}
