package pricing

import (
	"testing"
	"time"
)

func TestPriceCache(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	c := NewPriceCache(30*time.Second, WithClock(clock))

	if _, ok := c.Get("token-1"); ok {
		t.Error("empty cache should miss")
	}

	c.Set("token-1", 42)

	price, ok := c.Get("token-1")
	if !ok || price != 42 {
		t.Errorf("got %d, %v, want 42, true", price, ok)
	}

	// Fresh just before the TTL boundary.
	now = now.Add(30 * time.Second)
	if _, ok := c.Get("token-1"); !ok {
		t.Error("entry at exact TTL should still be fresh")
	}

	// Expired after the TTL.
	now = now.Add(time.Second)
	if _, ok := c.Get("token-1"); ok {
		t.Error("entry past TTL should miss")
	}
}

func TestPriceCacheInvalidate(t *testing.T) {
	c := NewPriceCache(time.Minute)

	c.Set("token-1", 10)
	c.Set("token-2", 20)

	c.Invalidate("token-1")

	if _, ok := c.Get("token-1"); ok {
		t.Error("invalidated entry should miss")
	}
	if price, ok := c.Get("token-2"); !ok || price != 20 {
		t.Error("unrelated entry should survive invalidation")
	}
}
