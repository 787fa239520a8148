package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/queue"
)

// DefaultPollSpec fires at second zero of every minute.
const DefaultPollSpec = "0 * * * * *"

// SymbolSource lists the symbols that currently have active alerts.
type SymbolSource interface {
	ListDistinctActiveSymbols(ctx context.Context) ([]string, error)
}

// TaskSource builds the poll task for a symbol.
type TaskSource interface {
	Task(symbol string) queue.Task
}

// Scheduler fans out one price poll per watched symbol on every cron tick.
type Scheduler struct {
	Cron    *cron.Cron
	Symbols SymbolSource
	Tasks   TaskSource
	Queue   queue.Submitter
	Ctx     context.Context

	log zerolog.Logger
}

// NewScheduler creates a new Scheduler. Overlapping ticks are skipped rather
// than queued behind a slow one.
func NewScheduler(ctx context.Context, symbols SymbolSource, tasks TaskSource, q queue.Submitter, log zerolog.Logger) *Scheduler {
	log = log.With().Str("comp", "scheduler").Logger()
	cl := cronLogger{log: log}
	return &Scheduler{
		Cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		Symbols: symbols,
		Tasks:   tasks,
		Queue:   q,
		Ctx:     ctx,
		log:     log,
	}
}

// Register adds the polling job under spec, falling back to DefaultPollSpec.
func (s *Scheduler) Register(spec string) error {
	if spec == "" {
		spec = DefaultPollSpec
	}
	if _, err := s.Cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register poll task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.log.Info().Msg("scheduler started")
}

// Stop stops the cron scheduler and waits for a running tick to return.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
}

// RunNow executes one tick immediately (RUN_ON_START).
func (s *Scheduler) RunNow() {
	s.tick()
}

func (s *Scheduler) tick() {
	n, err := s.PollAll(s.Ctx)
	if err != nil {
		s.log.Error().Err(err).Int("submitted", n).Msg("poll tick")
		return
	}
	s.log.Debug().Int("symbols", n).Msg("poll tick")
}

// PollAll submits one poll task per distinct watched symbol and returns how
// many were accepted. It does not wait for the tasks to run.
func (s *Scheduler) PollAll(ctx context.Context) (int, error) {
	symbols, err := s.Symbols.ListDistinctActiveSymbols(ctx)
	if err != nil {
		return 0, fmt.Errorf("list symbols: %w", err)
	}
	symbols = dedupe(symbols)
	if len(symbols) == 0 {
		return 0, nil
	}

	tasks := make([]queue.Task, 0, len(symbols))
	for _, sym := range symbols {
		tasks = append(tasks, s.Tasks.Task(sym))
	}
	handles, err := s.Queue.SubmitGroup(tasks)
	if err != nil {
		return len(handles), fmt.Errorf("submit poll group: %w", err)
	}
	return len(handles), nil
}

func dedupe(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, raw := range symbols {
		sym := model.NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	return out
}

// cronLogger routes robfig/cron's internal logging into zerolog.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
