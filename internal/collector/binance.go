package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

// BinanceFetcher implements Fetcher using the public ticker price endpoint.
type BinanceFetcher struct {
	BaseURL string
	Client  *http.Client
}

// NewBinanceFetcher creates a fetcher with optional proxy support.
func NewBinanceFetcher(baseURL string, timeout time.Duration, proxyURL string) *BinanceFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BinanceFetcher{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

func (f *BinanceFetcher) Name() string { return "binance" }

// tickerPrice is the JSON shape of /api/v3/ticker/price.
type tickerPrice struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

func (f *BinanceFetcher) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	q := url.Values{"symbol": {model.NormalizeSymbol(symbol)}}
	endpoint := f.BaseURL + "/api/v3/ticker/price?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch price: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusNotFound:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, fmt.Errorf("%w %s: %s", ErrUnknownSymbol, symbol, strings.TrimSpace(string(body)))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var result tickerPrice
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return decimal.Zero, fmt.Errorf("decode price: %w", err)
	}
	if result.Price == "" {
		return decimal.Zero, fmt.Errorf("decode price: empty price field")
	}
	price, err := decimal.NewFromString(result.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q: %w", result.Price, err)
	}
	return price, nil
}
