// Package notifier implements the delivery channels an alert can be routed to.
package notifier

import (
	"context"
	"errors"

	"PriceSentinel/internal/model"
)

// ErrMissingConfig means the alert's channel_config lacks the key its channel needs.
var ErrMissingConfig = errors.New("missing channel config")

// Notifier delivers one triggered alert.
type Notifier interface {
	Notify(ctx context.Context, alert *model.Alert, payload model.Payload) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, alert *model.Alert, payload model.Payload) error

func (f Func) Notify(ctx context.Context, alert *model.Alert, payload model.Payload) error {
	return f(ctx, alert, payload)
}
