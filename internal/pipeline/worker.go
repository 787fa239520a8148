// Package pipeline holds the per-symbol fetch worker, the threshold evaluator
// and the notification dispatcher.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"PriceSentinel/internal/cache"
	"PriceSentinel/internal/collector"
	"PriceSentinel/internal/metrics"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/queue"
	"PriceSentinel/internal/store"
)

// Task names as they appear in logs, metrics and queue history.
const (
	TaskPollPrice        = "poll_price"
	TaskSendNotification = "send_notification"
)

// PriceSource returns the current price of a symbol.
type PriceSource interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// WorkerConfig tunes the fetch worker.
type WorkerConfig struct {
	FetchTimeout time.Duration
	CacheTTL     time.Duration
	Retry        queue.RetryPolicy
}

// DefaultWorkerConfig fetches with a 10s timeout, caches for 120s and retries
// transient failures for 3 attempts in total.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		FetchTimeout: 10 * time.Second,
		CacheTTL:     cache.DefaultTTL,
		Retry:        FetchRetryPolicy(3, time.Second, 30*time.Second),
	}
}

// FetchRetryPolicy retries everything except unknown symbols with exponential backoff.
func FetchRetryPolicy(attempts int, base, max time.Duration) queue.RetryPolicy {
	p := queue.Exponential(attempts, base, max)
	p.Retryable = func(err error) bool {
		return !errors.Is(err, collector.ErrUnknownSymbol)
	}
	return p
}

// PollResult is the outcome of one successful poll.
type PollResult struct {
	Symbol string
	Price  decimal.Decimal
	// Found is false when the provider does not know the symbol.
	Found bool
	Jobs  []model.NotificationJob
}

// PriceWorker fetches one symbol, caches the price and evaluates the symbol's
// active alerts in the same unit of work.
type PriceWorker struct {
	prices     PriceSource
	cache      cache.PriceCache
	store      store.Store
	queue      queue.Submitter
	dispatcher *Dispatcher
	cfg        WorkerConfig
	log        zerolog.Logger
}

func NewPriceWorker(prices PriceSource, pc cache.PriceCache, st store.Store, q queue.Submitter, d *Dispatcher, cfg WorkerConfig, log zerolog.Logger) *PriceWorker {
	def := DefaultWorkerConfig()
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = def.Retry
	}
	return &PriceWorker{
		prices:     prices,
		cache:      pc,
		store:      st,
		queue:      q,
		dispatcher: d,
		cfg:        cfg,
		log:        log.With().Str("comp", "worker").Logger(),
	}
}

// Task wraps Poll for the queue with the fetch retry policy attached.
func (w *PriceWorker) Task(symbol string) queue.Task {
	symbol = model.NormalizeSymbol(symbol)
	return queue.Task{
		Name:   TaskPollPrice,
		Policy: w.cfg.Retry,
		Run: func(ctx context.Context) error {
			_, err := w.Poll(ctx, symbol)
			return err
		},
	}
}

// Poll runs fetch, cache write, alert lookup and evaluation for one symbol and
// submits a notification task per triggered alert without waiting for it.
//
// An unknown symbol is not an error: the result has Found=false and nothing is
// cached. Any other failure is returned for the caller's retry policy.
func (w *PriceWorker) Poll(ctx context.Context, symbol string) (PollResult, error) {
	symbol = model.NormalizeSymbol(symbol)
	res := PollResult{Symbol: symbol}
	log := w.log.With().Str("symbol", symbol).Logger()

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	price, err := w.prices.FetchPrice(fetchCtx, symbol)
	cancel()
	if errors.Is(err, collector.ErrUnknownSymbol) {
		log.Warn().Err(err).Msg("invalid symbol, skipping")
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	res.Price = price
	res.Found = true

	// The cache is advisory; a failed write does not block evaluation.
	if err := w.cache.Set(ctx, symbol, price, w.cfg.CacheTTL); err != nil {
		log.Warn().Err(err).Msg("price cache write failed")
	}

	alerts, err := w.store.ListActiveAlerts(ctx, symbol)
	if err != nil {
		return res, fmt.Errorf("list alerts for %s: %w", symbol, err)
	}

	for _, a := range Evaluate(price, alerts) {
		job := model.NotificationJob{AlertID: a.ID, Price: price}
		metrics.AlertsTriggeredTotal.WithLabelValues(symbol).Inc()
		h, err := w.queue.Submit(w.dispatcher.Task(job))
		if err != nil {
			log.Error().Err(err).Int64("alert_id", a.ID).Msg("enqueue notification failed")
			continue
		}
		log.Info().Int64("alert_id", a.ID).Str("price", price.String()).Str("job", h.ID).Msg("alert triggered")
		res.Jobs = append(res.Jobs, job)
	}

	log.Debug().Str("price", price.String()).Int("alerts", len(alerts)).Int("triggered", len(res.Jobs)).Msg("poll done")
	return res, nil
}
