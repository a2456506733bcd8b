// Package cache stores small serialized records (engine day state) with an
// expiry, plus short owner-checked locks around their writers.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrCacheMiss = errors.New("cache: key not found")
	// ErrNotLockOwner is returned by Unlock when the lock expired or was
	// taken over by another writer.
	ErrNotLockOwner = errors.New("cache: lock held by another owner")
)

// Service is implemented by the memory, Redis and layered caches.
type Service interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// TryLock takes key for ttl and returns the owner token, or ok=false
	// when someone else holds it.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Unlock(ctx context.Context, key, token string) error
}

// Key joins parts with ':' and lower-cases them, so "EURUSD" and "eurusd"
// address the same record.
func Key(parts ...interface{}) string {
	s := make([]string, len(parts))
	for i, p := range parts {
		s[i] = strings.ToLower(fmt.Sprint(p))
	}
	return strings.Join(s, ":")
}
