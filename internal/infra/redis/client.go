package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// DefaultPriceTTL is used when the config leaves price_ttl empty.
const DefaultPriceTTL = time.Minute

// Client caches reference prices in Redis.
type Client struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	PriceTTL time.Duration `yaml:"price_ttl"`
}

// NewClient creates a new Redis client and pings it.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	ttl := cfg.PriceTTL
	if ttl <= 0 {
		ttl = DefaultPriceTTL
	}
	return &Client{rdb: rdb, ttl: ttl}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func priceKey(symbol string) string {
	return fmt.Sprintf("price:%s", symbol)
}

// GetPrice returns the cached price for symbol. found is false on a miss.
func (c *Client) GetPrice(ctx context.Context, symbol string) (price decimal.Decimal, found bool, err error) {
	val, err := c.rdb.Get(ctx, priceKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("get price failed: %w", err)
	}

	price, err = decimal.NewFromString(val)
	if err != nil {
		// Drop the bad entry so the next call refetches.
		_ = c.rdb.Del(ctx, priceKey(symbol)).Err()
		return decimal.Zero, false, nil
	}
	return price, true, nil
}

// SetPrice stores price for symbol with the configured TTL.
func (c *Client) SetPrice(ctx context.Context, symbol string, price decimal.Decimal) error {
	if err := c.rdb.Set(ctx, priceKey(symbol), price.String(), c.ttl).Err(); err != nil {
		return fmt.Errorf("set price failed: %w", err)
	}
	return nil
}
