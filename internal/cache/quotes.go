package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/Cryptoprojectsfun/stocktrade/internal/models"
)

// QuoteCache is a time-bounded symbol→price cache backstopping the vendor.
// A miss returns (nil, nil); failed vendor fetches are never cached.
type QuoteCache interface {
	Get(ctx context.Context, symbol string) (*models.Quote, error)
	Put(ctx context.Context, symbol string, quote *models.Quote) error
	GetAll(ctx context.Context) ([]models.Quote, error)
	PutAll(ctx context.Context, quotes []models.Quote) error
}

type RedisQuoteCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisQuoteCache(client *redis.Client, ttl time.Duration) *RedisQuoteCache {
	return &RedisQuoteCache{
		client: client,
		ttl:    ttl,
	}
}

func quoteKey(symbol string) string {
	return fmt.Sprintf("quote:price:%s", symbol)
}

const allQuotesKey = "quote:all"

func (c *RedisQuoteCache) Get(ctx context.Context, symbol string) (*models.Quote, error) {
	data, err := c.client.Get(ctx, quoteKey(symbol)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var quote models.Quote
	if err := json.Unmarshal(data, &quote); err != nil {
		return nil, err
	}

	return &quote, nil
}

func (c *RedisQuoteCache) Put(ctx context.Context, symbol string, quote *models.Quote) error {
	data, err := json.Marshal(quote)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, quoteKey(symbol), data, c.ttl).Err()
}

func (c *RedisQuoteCache) GetAll(ctx context.Context) ([]models.Quote, error) {
	data, err := c.client.Get(ctx, allQuotesKey).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var quotes []models.Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, err
	}

	return quotes, nil
}

// PutAll caches the full listing and refreshes each per-symbol entry so a
// listing fetch also warms single-symbol lookups.
func (c *RedisQuoteCache) PutAll(ctx context.Context, quotes []models.Quote) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, allQuotesKey, data, c.ttl)
	for i := range quotes {
		entry, err := json.Marshal(&quotes[i])
		if err != nil {
			return err
		}
		pipe.Set(ctx, quoteKey(quotes[i].Symbol), entry, c.ttl)
	}

	_, err = pipe.Exec(ctx)
	return err
}
