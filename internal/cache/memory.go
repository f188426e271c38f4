package cache

import (
	"context"
	"sync"
	"time"

	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
)

// MemoryQuoteCache keeps quotes in-process with the same TTL semantics as
// the redis cache. Process-wide shared state; refreshed by whichever
// request observes a miss.
type MemoryQuoteCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	all     []models.Quote
	allExp  time.Time
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	quote     models.Quote
	expiresAt time.Time
}

func NewMemoryQuoteCache(ttl time.Duration) *MemoryQuoteCache {
	return &MemoryQuoteCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryQuoteCache) Get(ctx context.Context, symbol string) (*models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	entry, ok := c.entries[symbol]
	c.mu.RUnlock()

	if !ok || c.now().After(entry.expiresAt) {
		return nil, nil
	}

	quote := entry.quote
	return &quote, nil
}

func (c *MemoryQuoteCache) Put(ctx context.Context, symbol string, quote *models.Quote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.entries[symbol] = memoryEntry{
		quote:     *quote,
		expiresAt: c.now().Add(c.ttl),
	}
	c.mu.Unlock()
	return nil
}

func (c *MemoryQuoteCache) GetAll(ctx context.Context) ([]models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.all == nil || c.now().After(c.allExp) {
		return nil, nil
	}

	out := make([]models.Quote, len(c.all))
	copy(out, c.all)
	return out, nil
}

func (c *MemoryQuoteCache) PutAll(ctx context.Context, quotes []models.Quote) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiry := c.now().Add(c.ttl)
	c.all = make([]models.Quote, len(quotes))
	copy(c.all, quotes)
	c.allExp = expiry

	for _, q := range quotes {
		c.entries[q.Symbol] = memoryEntry{quote: q, expiresAt: expiry}
	}
	return nil
}
