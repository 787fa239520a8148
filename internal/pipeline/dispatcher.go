package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/queue"
	"PriceSentinel/internal/store"
)

// ErrUnsupportedChannel means no notifier is registered for the alert's channel.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// Dispatcher delivers notification jobs through the alert's channel.
type Dispatcher struct {
	store    store.Store
	channels map[model.Channel]notifier.Notifier
	log      zerolog.Logger
}

func NewDispatcher(st store.Store, channels map[model.Channel]notifier.Notifier, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    st,
		channels: channels,
		log:      log.With().Str("comp", "dispatcher").Logger(),
	}
}

// Task wraps Dispatch for the queue. Delivery is attempted once; channels own
// any retry of their own.
func (d *Dispatcher) Task(job model.NotificationJob) queue.Task {
	return queue.Task{
		Name:   TaskSendNotification,
		Policy: queue.NoRetry(),
		Run: func(ctx context.Context) error {
			return d.Dispatch(ctx, job)
		},
	}
}

// Dispatch re-reads the alert and delivers the payload. A job whose alert was
// deleted or deactivated since evaluation is dropped without error.
func (d *Dispatcher) Dispatch(ctx context.Context, job model.NotificationJob) error {
	log := d.log.With().Int64("alert_id", job.AlertID).Logger()

	alert, err := d.store.GetAlert(ctx, job.AlertID)
	if errors.Is(err, store.ErrNotFound) {
		metrics.NotificationsTotal.WithLabelValues("none", "discarded").Inc()
		log.Debug().Msg("alert gone, notification discarded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load alert %d: %w", job.AlertID, err)
	}
	if !alert.IsActive {
		metrics.NotificationsTotal.WithLabelValues(string(alert.Channel), "discarded").Inc()
		log.Debug().Msg("alert inactive, notification discarded")
		return nil
	}

	n, ok := d.channels[alert.Channel]
	if !ok || n == nil {
		metrics.NotificationsTotal.WithLabelValues(string(alert.Channel), "failed").Inc()
		return fmt.Errorf("alert %d: %w %q", alert.ID, ErrUnsupportedChannel, alert.Channel)
	}

	payload := model.NewPayload(alert, job.Price)
	if err := n.Notify(ctx, alert, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(alert.Channel), "failed").Inc()
		return fmt.Errorf("deliver alert %d via %s: %w", alert.ID, alert.Channel, err)
	}

	metrics.NotificationsTotal.WithLabelValues(string(alert.Channel), "delivered").Inc()
	log.Info().Str("channel", string(alert.Channel)).Str("symbol", alert.Symbol).Str("price", job.Price.String()).Msg("notification delivered")
	return nil
}
