package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/queue"
)

// WebhookNotifier POSTs the payload as JSON to channel_config.url.
//
// Delivery is attempted once unless the alert sets channel_config.retries,
// in which case failures are retried with capped exponential backoff. The
// per-alert value is clamped to MaxRetries so one record cannot pin a worker.
type WebhookNotifier struct {
	Client     *http.Client
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxRetries int
	log        zerolog.Logger
}

// DefaultWebhookMaxRetries bounds channel_config.retries when no limit is configured.
const DefaultWebhookMaxRetries = 3

// NewWebhookNotifier creates a notifier whose requests time out after timeout.
func NewWebhookNotifier(timeout time.Duration, log zerolog.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		Client:     &http.Client{Timeout: timeout},
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		MaxRetries: DefaultWebhookMaxRetries,
		log:        log.With().Str("comp", "webhook").Logger(),
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, alert *model.Alert, payload model.Payload) error {
	url := alert.ChannelConfig.String("url")
	if url == "" {
		return fmt.Errorf("webhook alert %d: %w: url", alert.ID, ErrMissingConfig)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return w.SendWithRetry(ctx, url, body, w.retriesFor(alert))
}

func (w *WebhookNotifier) retriesFor(alert *model.Alert) int {
	n := alert.ChannelConfig.Int("retries")
	if n <= 0 {
		return 0
	}
	if n > w.MaxRetries {
		w.log.Warn().Int64("alert_id", alert.ID).Int("requested", n).Int("max", w.MaxRetries).Msg("webhook retries clamped")
		return max(w.MaxRetries, 0)
	}
	return n
}

// Send performs a single POST.
func (w *WebhookNotifier) Send(ctx context.Context, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// SendWithRetry sends with exponential backoff between attempts, each wait
// capped at MaxDelay. maxRetries 0 sends exactly once.
func (w *WebhookNotifier) SendWithRetry(ctx context.Context, url string, body []byte, maxRetries int) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	backoffs := queue.Exponential(maxRetries+1, w.BaseDelay, w.MaxDelay)
	backoffs.Jitter = 0
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := w.Send(ctx, url, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		backoff := backoffs.Delay(i+1, nil)
		w.log.Warn().Err(err).Int("attempt", i+1).Int("max", maxRetries+1).Dur("backoff", backoff).Msg("webhook send failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	if maxRetries == 0 {
		return lastErr
	}
	return fmt.Errorf("all %d attempts exhausted: %w", maxRetries+1, lastErr)
}
