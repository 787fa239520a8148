package collector

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

// MockFetcher returns controllable fixed prices for development and testing.
// Errs, when set for a symbol, are returned in order before Prices is used.
type MockFetcher struct {
	mu     sync.Mutex
	Prices map[string]decimal.Decimal
	Errs   map[string][]error
	Calls  map[string]int
}

func NewMockFetcher() *MockFetcher {
	return &MockFetcher{
		Prices: map[string]decimal.Decimal{},
		Errs:   map[string][]error{},
		Calls:  map[string]int{},
	}
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	symbol = model.NormalizeSymbol(symbol)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[symbol]++
	if errs := m.Errs[symbol]; len(errs) > 0 {
		m.Errs[symbol] = errs[1:]
		return decimal.Zero, errs[0]
	}
	price, ok := m.Prices[symbol]
	if !ok {
		return decimal.Zero, ErrUnknownSymbol
	}
	return price, nil
}

// CallCount returns how often symbol was fetched.
func (m *MockFetcher) CallCount(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[model.NormalizeSymbol(symbol)]
}
