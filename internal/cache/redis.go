package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// RedisCache writes prices to Redis with a per-key expiry. The client is
// created once at startup and shared by every task.
type RedisCache struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisCache parses a redis:// URL and verifies the connection.
func NewRedisCache(ctx context.Context, url string, log zerolog.Logger) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	log.Info().Str("addr", opts.Addr).Msg("redis price cache connected")
	return &RedisCache{client: client, log: log}, nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, log zerolog.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Set(ctx context.Context, symbol string, price decimal.Decimal, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if err := c.client.Set(ctx, Key(symbol), price.String(), ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", symbol, err)
	}
	return nil
}

func (c *RedisCache) Close() error {
	c.log.Info().Msg("closing redis price cache")
	return c.client.Close()
}
