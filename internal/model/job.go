package model

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// NotificationJob is the unit of work handed from the evaluator to the dispatcher.
// It is never persisted.
type NotificationJob struct {
	AlertID int64
	Price   decimal.Decimal
}

// Payload is the body delivered to notification channels. Threshold is kept as a
// decimal string; Price is emitted as a bare JSON number.
type Payload struct {
	AlertID   int64       `json:"alert_id"`
	Symbol    string      `json:"symbol"`
	Threshold string      `json:"threshold"`
	Direction Direction   `json:"direction"`
	Price     json.Number `json:"price"`
}

// NewPayload builds the notification body for alert at the observed price.
func NewPayload(alert *Alert, price decimal.Decimal) Payload {
	return Payload{
		AlertID:   alert.ID,
		Symbol:    alert.Symbol,
		Threshold: alert.Threshold.String(),
		Direction: alert.Direction,
		Price:     json.Number(price.String()),
	}
}
