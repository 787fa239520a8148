package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
)

// Collector wraps a Fetcher with a shared request budget and per-result metrics.
type Collector struct {
	Fetcher Fetcher
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewCollector creates a Collector. ratePerSec <= 0 disables throttling.
func NewCollector(fetcher Fetcher, ratePerSec float64, log zerolog.Logger) *Collector {
	limit := rate.Inf
	burst := 1
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
		burst = int(ratePerSec)
		if burst < 1 {
			burst = 1
		}
	}
	return &Collector{
		Fetcher: fetcher,
		limiter: rate.NewLimiter(limit, burst),
		log:     log.With().Str("comp", "collector").Str("source", fetcher.Name()).Logger(),
	}
}

// FetchPrice returns the current price of symbol.
func (c *Collector) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	symbol = model.NormalizeSymbol(symbol)
	if err := c.limiter.Wait(ctx); err != nil {
		return decimal.Zero, fmt.Errorf("rate limit wait: %w", err)
	}

	price, err := c.Fetcher.FetchPrice(ctx, symbol)
	switch {
	case err == nil:
		metrics.QuoteFetchesTotal.WithLabelValues(symbol, "ok").Inc()
		c.log.Debug().Str("symbol", symbol).Str("price", price.String()).Msg("price fetched")
	case errors.Is(err, ErrUnknownSymbol):
		metrics.QuoteFetchesTotal.WithLabelValues(symbol, "unknown_symbol").Inc()
	default:
		metrics.QuoteFetchesTotal.WithLabelValues(symbol, "error").Inc()
	}
	return price, err
}
