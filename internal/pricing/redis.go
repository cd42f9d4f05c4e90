// Package pricing supplies current market mark prices from a Redis cache.
// The trade feed keeps the cache warm; the feature engine reads it through
// the PriceSource interface with a bounded timeout and treats a miss as
// missing data, never as an error worth failing a computation for.
package pricing

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mirrorlab/internal/features"
)

// ClientConfig holds connection parameters for the Redis client.
type ClientConfig struct {
	Addr     string
	Password string
	DB       int
}

// Cache stores the latest mark price per market as a Redis hash at
// "price:{marketID}" with fields "price" and "ts".
type Cache struct {
	rdb     *redis.Client
	ttl     time.Duration
	timeout time.Duration
}

// Options for creating a price Cache.
type Options struct {
	Client ClientConfig

	// TTL bounds how long a cached price stays valid.
	TTL time.Duration

	// Timeout bounds every lookup so a slow Redis never stalls the
	// pipeline.
	Timeout time.Duration
}

// New connects to Redis, verifies connectivity, and returns the cache.
func New(ctx context.Context, opts Options) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Client.Addr,
		Password: opts.Client.Password,
		DB:       opts.Client.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return &Cache{rdb: rdb, ttl: opts.TTL, timeout: opts.Timeout}, nil
}

func priceKey(marketID string) string {
	return "price:" + marketID
}

// Set stores the latest observed price for a market.
func (c *Cache) Set(ctx context.Context, marketID string, price float64, ts time.Time) error {
	key := priceKey(marketID)
	fields := map[string]interface{}{
		"price": strconv.FormatFloat(price, 'f', -1, 64),
		"ts":    strconv.FormatInt(ts.UnixNano(), 10),
	}
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if c.ttl > 0 {
		pipe.Expire(ctx, key, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %s: %w", marketID, err)
	}
	return nil
}

// Price implements features.PriceSource. ok is false on a cache miss; the
// error return is reserved for transport failures.
func (c *Cache) Price(ctx context.Context, marketID string) (float64, bool, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	vals, err := c.rdb.HGetAll(ctx, priceKey(marketID)).Result()
	if err != nil {
		return 0, false, fmt.Errorf("redis: get price %s: %w", marketID, err)
	}
	priceStr, ok := vals["price"]
	if !ok {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil {
		return 0, false, fmt.Errorf("redis: parse price %s: %w", marketID, err)
	}
	return price, true, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// Compile-time interface check.
var _ features.PriceSource = (*Cache)(nil)
