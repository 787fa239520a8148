package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction selects which side of the threshold fires an alert.
type Direction string

const (
	DirectionAbove Direction = "above"
	DirectionBelow Direction = "below"
)

// Channel is the delivery channel configured on an alert.
type Channel string

const (
	ChannelWebhook Channel = "webhook"
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
)

// Alert is a user-defined price alert. Records are owned by the CRUD service;
// this module only reads them.
type Alert struct {
	ID            int64
	UserID        int64
	Symbol        string
	Threshold     decimal.Decimal
	Direction     Direction
	Channel       Channel
	ChannelConfig ChannelConfig
	IsActive      bool
	CreatedAt     time.Time
}

// NormalizeSymbol returns the canonical upper-case form of a symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ParseDirection accepts "above"/"below" in any case.
func ParseDirection(s string) (Direction, error) {
	switch d := Direction(strings.ToLower(strings.TrimSpace(s))); d {
	case DirectionAbove, DirectionBelow:
		return d, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// ParseChannel accepts "webhook"/"email"/"sms" in any case.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(strings.ToLower(strings.TrimSpace(s))); c {
	case ChannelWebhook, ChannelEmail, ChannelSMS:
		return c, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// ChannelConfig is the channel-specific settings blob stored as JSON,
// e.g. {"url": "https://..."} for webhooks or {"email": "a@b.c"}.
type ChannelConfig map[string]any

// String returns the value of key if it is a non-empty string.
func (c ChannelConfig) String(key string) string {
	if c == nil {
		return ""
	}
	v, ok := c[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Int returns the value of key as an int. JSON numbers decode as float64.
// Values outside the int32 range saturate; NaN and non-numbers yield 0.
func (c ChannelConfig) Int(key string) int {
	if c == nil {
		return 0
	}
	var f float64
	switch n := c[key].(type) {
	case float64:
		f = n
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		v, err := n.Float64()
		if err != nil {
			return 0
		}
		f = v
	default:
		return 0
	}
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	}
	return int(f)
}

// ParseChannelConfig decodes a raw JSON column. Empty input yields an empty config.
func ParseChannelConfig(raw []byte) (ChannelConfig, error) {
	cfg := ChannelConfig{}
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode channel config: %w", err)
	}
	return cfg, nil
}
