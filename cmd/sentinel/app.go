package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"PriceSentinel/internal/cache"
	"PriceSentinel/internal/collector"
	"PriceSentinel/internal/config"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/opsserver"
	"PriceSentinel/internal/pipeline"
	"PriceSentinel/internal/queue"
	"PriceSentinel/internal/scheduler"
	"PriceSentinel/internal/store"
)

// app owns every long-lived component of the process.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	store store.Store
	cache cache.PriceCache
	queue *queue.Queue
	sched *scheduler.Scheduler
	ops   *opsserver.Server

	// taskCtx is the parent of all task work; cancelling it ends fetches,
	// deliveries and channel retry waits.
	taskCtx     context.Context
	cancelTasks context.CancelFunc
}

func newApp(cfg *config.Config, log zerolog.Logger) (*app, error) {
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open %s alert store: %w", cfg.Store.Driver, err)
	}

	taskCtx, cancelTasks := context.WithCancel(context.Background())
	a := &app{cfg: cfg, log: log, store: st, taskCtx: taskCtx, cancelTasks: cancelTasks}
	a.cache = openCache(taskCtx, cfg, log)

	fetcher := collector.NewBinanceFetcher(cfg.Quote.BaseURL, cfg.Quote.Timeout, cfg.Quote.Proxy)
	col := collector.NewCollector(fetcher, cfg.Quote.RatePerSec, log)
	log.Info().Str("source", fetcher.Name()).Msg("quote provider ready")

	webhook := notifier.NewWebhookNotifier(cfg.Notify.WebhookTimeout, log)
	webhook.MaxRetries = cfg.Notify.WebhookMaxRetries
	dispatcher := pipeline.NewDispatcher(st, map[model.Channel]notifier.Notifier{
		model.ChannelWebhook: webhook,
		model.ChannelEmail:   notifier.NewEmailNotifier(log),
		model.ChannelSMS:     notifier.NewSMSNotifier(log),
	}, log)

	a.queue = queue.New(queue.Config{Workers: cfg.Queue.Workers, Size: cfg.Queue.Size}, log)

	worker := pipeline.NewPriceWorker(col, a.cache, st, a.queue, dispatcher, pipeline.WorkerConfig{
		FetchTimeout: cfg.Quote.Timeout,
		CacheTTL:     cfg.Cache.TTL,
		Retry:        pipeline.FetchRetryPolicy(cfg.Queue.FetchAttempts, cfg.Queue.FetchBackoff, cfg.Queue.FetchMaxBackoff),
	}, log)

	a.sched = scheduler.NewScheduler(taskCtx, st, worker, a.queue, log)
	if err := a.sched.Register(cfg.Schedule.PollCron); err != nil {
		a.close()
		return nil, err
	}
	a.ops = opsserver.New(cfg.Ops.Addr, a.queue, log)
	return a, nil
}

func (a *app) start() {
	a.queue.Start(a.taskCtx)
	a.sched.Start()
	a.ops.Start()
	if a.cfg.Schedule.RunOnStart {
		a.log.Info().Msg("RUN_ON_START enabled, polling now")
		go a.sched.RunNow()
	}
}

// shutdown stops new work first, then cancels in-flight tasks so channel
// retry waits end instead of holding the queue until the timeout.
func (a *app) shutdown(timeout time.Duration) {
	a.sched.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.ops.Shutdown(ctx); err != nil {
		a.log.Warn().Err(err).Msg("ops server shutdown")
	}
	a.cancelTasks()
	if err := a.queue.Stop(ctx); err != nil {
		a.log.Warn().Err(err).Msg("queue shutdown")
	}
}

func (a *app) close() {
	a.cancelTasks()
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close price cache")
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close alert store")
	}
}

func openStore(cfg *config.Config, log zerolog.Logger) (store.Store, error) {
	if cfg.Store.Driver == "postgres" {
		ps, err := store.NewPostgresStore(cfg.Store.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		return ps, nil
	}
	ss, err := store.NewSQLiteStore(cfg.Store.SQLitePath, log)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

// openCache falls back to a no-op cache when Redis is unset or unreachable;
// the cache is advisory and must not block polling.
func openCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) cache.PriceCache {
	if cfg.Cache.RedisURL == "" {
		log.Info().Msg("no redis configured, price cache disabled")
		return cache.NewNoopCache()
	}
	rc, err := cache.NewRedisCache(ctx, cfg.Cache.RedisURL, log)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, price cache disabled")
		return cache.NewNoopCache()
	}
	return rc
}
