package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrUnknownSymbol means the provider rejected the symbol. It is permanent.
var ErrUnknownSymbol = errors.New("unknown symbol")

// StatusError is a non-2xx provider response other than an unknown symbol.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("quote provider status %d: %s", e.Code, e.Body)
}

// Fetcher defines the interface for fetching the latest price of a symbol.
type Fetcher interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	Name() string
}
