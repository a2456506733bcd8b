package cache

import (
	"testing"
	"time"
)

func TestTTLExpiry(t *testing.T) {
	now := time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)
	c := NewTTL[int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("b", 2, 0)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected expiry")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Fatal("zero ttl must not expire")
	}
	c.Delete("b")
	if _, ok := c.Get("b"); ok {
		t.Fatal("expected delete")
	}
}
