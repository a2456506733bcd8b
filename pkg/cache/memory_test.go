package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryCacheGetSet(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss, got %v", err)
	}
	raw := []byte(`{"day":"2024-03-04"}`)
	if err := c.Set(ctx, "state:eurusd", raw, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	raw[0] = 'x'
	got, err := c.Get(ctx, "state:eurusd")
	if err != nil || string(got) != `{"day":"2024-03-04"}` {
		t.Fatalf("get: %q %v", got, err)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache()
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), time.Second)
	_ = c.Set(ctx, "forever", []byte("v"), 0)
	now = now.Add(2 * time.Second)
	if _, err := c.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected expired miss, got %v", err)
	}
	if _, err := c.Get(ctx, "forever"); err != nil {
		t.Fatalf("zero ttl must not expire: %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyRead(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2))
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	c.now = func() time.Time { now = now.Add(time.Millisecond); return now }
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_ = c.Set(ctx, "b", []byte("2"), 0)
	_, _ = c.Get(ctx, "a")
	_ = c.Set(ctx, "c", []byte("3"), 0)

	if c.Len() != 2 {
		t.Fatalf("expected 2 keys, got %d", c.Len())
	}
	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrCacheMiss) {
		t.Fatal("expected b evicted")
	}
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatal("recently read key evicted")
	}
}

func TestMemoryCacheLockOwnership(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	token, ok, _ := c.TryLock(ctx, "lock", time.Minute)
	if !ok || token == "" {
		t.Fatal("first lock should succeed")
	}
	if _, ok, _ := c.TryLock(ctx, "lock", time.Minute); ok {
		t.Fatal("second lock should fail")
	}
	if err := c.Unlock(ctx, "lock", "someone-else"); !errors.Is(err, ErrNotLockOwner) {
		t.Fatalf("foreign unlock: %v", err)
	}
	if err := c.Unlock(ctx, "lock", token); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, ok, _ := c.TryLock(ctx, "lock", time.Minute); !ok {
		t.Fatal("lock after unlock should succeed")
	}
}

type failingRemote struct {
	*MemoryCache
	setErr error
	gets   int
}

func (f *failingRemote) Get(ctx context.Context, key string) ([]byte, error) {
	f.gets++
	return f.MemoryCache.Get(ctx, key)
}

func (f *failingRemote) Set(ctx context.Context, key string, v []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.MemoryCache.Set(ctx, key, v, ttl)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	remote := &failingRemote{MemoryCache: NewMemoryCache()}
	c := NewLayeredCache(remote, WithLayeredMemorySize(8))
	ctx := context.Background()

	_ = remote.MemoryCache.Set(ctx, "k", []byte("v1"), 0)
	for i := 0; i < 3; i++ {
		if b, err := c.Get(ctx, "k"); err != nil || string(b) != "v1" {
			t.Fatalf("get: %q %v", b, err)
		}
	}
	if remote.gets != 1 {
		t.Fatalf("expected one remote read, got %d", remote.gets)
	}

	remote.setErr = errors.New("redis down")
	if err := c.Set(ctx, "k", []byte("v2"), time.Minute); err == nil {
		t.Fatal("expected remote write error")
	}
	if _, err := c.mem.Get(ctx, "k"); !errors.Is(err, ErrCacheMiss) {
		t.Fatal("failed write left a stale local copy")
	}
}

func TestKey(t *testing.T) {
	if k := Key("state", "EURUSD", 3); k != "state:eurusd:3" {
		t.Fatalf("unexpected key %q", k)
	}
}
