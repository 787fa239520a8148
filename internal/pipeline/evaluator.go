package pipeline

import (
	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
)

// Crossed reports whether price satisfies the alert's direction/threshold pair.
// The threshold itself fires in both directions. Unknown directions never fire.
func Crossed(alert model.Alert, price decimal.Decimal) bool {
	cmp := price.Cmp(alert.Threshold)
	switch alert.Direction {
	case model.DirectionAbove:
		return cmp >= 0
	case model.DirectionBelow:
		return cmp <= 0
	default:
		return false
	}
}

// Evaluate returns the alerts crossed by price, in input order. It keeps no
// state between calls: an alert that stays past its threshold fires on every
// poll. An alert id listed twice is considered once.
func Evaluate(price decimal.Decimal, alerts []model.Alert) []model.Alert {
	var triggered []model.Alert
	seen := make(map[int64]struct{}, len(alerts))
	for _, a := range alerts {
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		if Crossed(a, price) {
			triggered = append(triggered, a)
		}
	}
	return triggered
}
