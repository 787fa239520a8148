package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestRedisCacheSetWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedisCache(ctx, "redis://"+mr.Addr(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "btcusdt", decimal.RequireFromString("50001.23"), 120*time.Second); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := mr.Get("price:BTCUSDT")
	if err != nil {
		t.Fatalf("key missing: %v", err)
	}
	if got != "50001.23" {
		t.Fatalf("value = %q", got)
	}
	if ttl := mr.TTL("price:BTCUSDT"); ttl != 120*time.Second {
		t.Fatalf("ttl = %v", ttl)
	}

	mr.FastForward(121 * time.Second)
	if mr.Exists("price:BTCUSDT") {
		t.Fatal("entry should expire after the ttl")
	}
}

func TestRedisCacheLastWriteWins(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	c, err := NewRedisCache(ctx, "redis://"+mr.Addr(), zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_ = c.Set(ctx, "ETHUSDT", decimal.RequireFromString("3000"), 0)
	_ = c.Set(ctx, "ETHUSDT", decimal.RequireFromString("3001.5"), 0)

	if got, _ := mr.Get("price:ETHUSDT"); got != "3001.5" {
		t.Fatalf("value = %q", got)
	}
	if ttl := mr.TTL("price:ETHUSDT"); ttl != DefaultTTL {
		t.Fatalf("ttl = %v, want default", ttl)
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "::not a url", zerolog.Nop()); err == nil {
		t.Fatal("expected parse error")
	}
}
