package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/notifier"
)

type captured struct {
	mu       sync.Mutex
	payloads []model.Payload
	err      error
}

func (c *captured) Notify(_ context.Context, _ *model.Alert, p model.Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payloads = append(c.payloads, p)
	return c.err
}

func (c *captured) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.payloads)
}

func TestDispatch_RoutesByChannel(t *testing.T) {
	web, mail := &captured{}, &captured{}
	emailAlert := alertAt(2, "10", model.DirectionBelow)
	emailAlert.Channel = model.ChannelEmail
	st := newMemStore(alertAt(1, "50000", model.DirectionAbove), emailAlert)
	d := NewDispatcher(st, map[model.Channel]notifier.Notifier{
		model.ChannelWebhook: web,
		model.ChannelEmail:   mail,
	}, zerolog.Nop())

	price := decimal.RequireFromString("50001.23")
	if err := d.Dispatch(context.Background(), model.NotificationJob{AlertID: 1, Price: price}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if err := d.Dispatch(context.Background(), model.NotificationJob{AlertID: 2, Price: decimal.NewFromInt(9)}); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if web.Count() != 1 || mail.Count() != 1 {
		t.Fatalf("webhook=%d email=%d", web.Count(), mail.Count())
	}
	p := web.payloads[0]
	if p.AlertID != 1 || p.Symbol != "BTCUSDT" || p.Threshold != "50000" || p.Direction != model.DirectionAbove || p.Price.String() != "50001.23" {
		t.Fatalf("payload = %+v", p)
	}
}

func TestDispatch_DiscardsMissingOrInactive(t *testing.T) {
	web := &captured{}
	st := newMemStore(alertAt(1, "50000", model.DirectionAbove))
	d := NewDispatcher(st, map[model.Channel]notifier.Notifier{model.ChannelWebhook: web}, zerolog.Nop())
	ctx := context.Background()

	if err := d.Dispatch(ctx, model.NotificationJob{AlertID: 99, Price: decimal.NewFromInt(1)}); err != nil {
		t.Fatalf("missing alert should be discarded silently: %v", err)
	}

	st.SetActive(1, false)
	if err := d.Dispatch(ctx, model.NotificationJob{AlertID: 1, Price: decimal.NewFromInt(60000)}); err != nil {
		t.Fatalf("inactive alert should be discarded silently: %v", err)
	}
	if web.Count() != 0 {
		t.Fatal("nothing should be delivered")
	}
}

func TestDispatch_DeliveryErrorsSurface(t *testing.T) {
	web := &captured{err: errors.New("status 502")}
	sms := alertAt(2, "1", model.DirectionAbove)
	sms.Channel = model.ChannelSMS
	st := newMemStore(alertAt(1, "1", model.DirectionAbove), sms)
	d := NewDispatcher(st, map[model.Channel]notifier.Notifier{model.ChannelWebhook: web}, zerolog.Nop())

	if err := d.Dispatch(context.Background(), model.NotificationJob{AlertID: 1, Price: decimal.NewFromInt(2)}); err == nil {
		t.Fatal("expected delivery error")
	}
	err := d.Dispatch(context.Background(), model.NotificationJob{AlertID: 2, Price: decimal.NewFromInt(2)})
	if !errors.Is(err, ErrUnsupportedChannel) {
		t.Fatalf("err = %v, want ErrUnsupportedChannel", err)
	}
}

func TestDispatcherTaskDoesNotRetry(t *testing.T) {
	d := NewDispatcher(newMemStore(), nil, zerolog.Nop())
	task := d.Task(model.NotificationJob{AlertID: 1})
	if task.Name != TaskSendNotification {
		t.Fatalf("task name = %q", task.Name)
	}
	if task.Policy.ShouldRetry(errors.New("boom"), 1) {
		t.Fatal("dispatch tasks must not be retried by the queue")
	}
}
