// Package cache holds the shared price cache written by the fetch worker.
package cache

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

// DefaultTTL is how long a fetched price stays visible.
const DefaultTTL = 120 * time.Second

// PriceCache stores the latest observed price per symbol. Concurrent writers
// for the same symbol are last-write-wins.
type PriceCache interface {
	Set(ctx context.Context, symbol string, price decimal.Decimal, ttl time.Duration) error
	Close() error
}

// Key returns the cache key for symbol.
func Key(symbol string) string {
	return "price:" + model.NormalizeSymbol(symbol)
}

// NoopCache discards writes. Used when no Redis is configured.
type NoopCache struct{}

func NewNoopCache() *NoopCache { return &NoopCache{} }

func (NoopCache) Set(context.Context, string, decimal.Decimal, time.Duration) error { return nil }
func (NoopCache) Close() error                                                    { return nil }
