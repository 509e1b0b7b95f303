package pricefeed

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type cacheEntry struct {
	price   decimal.Decimal
	fetched time.Time
}

// CachedFeed serves quotes younger than ttl from memory. Failures are never
// cached.
type CachedFeed struct {
	next Feed
	ttl  time.Duration
	now  func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func NewCachedFeed(next Feed, ttl time.Duration) *CachedFeed {
	return &CachedFeed{next: next, ttl: ttl, now: time.Now, entries: make(map[string]cacheEntry)}
}

func (c *CachedFeed) Quote(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if c.ttl > 0 {
		c.mu.RLock()
		e, ok := c.entries[symbol]
		c.mu.RUnlock()
		if ok && c.now().Sub(e.fetched) < c.ttl {
			return e.price, nil
		}
	}
	return c.Refresh(ctx, symbol)
}

// Refresh bypasses the cache and stores the fresh quote.
func (c *CachedFeed) Refresh(ctx context.Context, symbol string) (decimal.Decimal, error) {
	price, err := c.next.Quote(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	c.mu.Lock()
	c.entries[symbol] = cacheEntry{price: price, fetched: c.now()}
	c.mu.Unlock()
	return price, nil
}
