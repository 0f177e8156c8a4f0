package pricing

import (
	"sync"
	"time"
)

// PriceCache caches per-token current prices with an explicit TTL.
// Owned by whichever service composes the pricing engine; there is no
// package-level instance.
type PriceCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	price     int64
	expiresAt time.Time
}

// CacheOption configures a PriceCache.
type CacheOption func(*PriceCache)

// WithClock overrides the cache clock. Used in tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *PriceCache) {
		c.now = now
	}
}

// NewPriceCache creates a cache whose entries expire after ttl.
func NewPriceCache(ttl time.Duration, opts ...CacheOption) *PriceCache {
	c := &PriceCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached price for a token, if present and fresh.
func (c *PriceCache) Get(tokenID string) (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[tokenID]
	if !ok || c.now().After(e.expiresAt) {
		return 0, false
	}
	return e.price, true
}

// Set stores the current price for a token.
func (c *PriceCache) Set(tokenID string, price int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[tokenID] = cacheEntry{
		price:     price,
		expiresAt: c.now().Add(c.ttl),
	}
}

// Invalidate drops a token's cached price. Called after any trade or
// treasury sale moves the curve.
func (c *PriceCache) Invalidate(tokenID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, tokenID)
}
