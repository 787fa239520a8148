package queue

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime/debug"
	"time"

	"PriceSentinel/internal/metrics"
)

func (q *Queue) worker(ctx context.Context, idx int) {
	// Per-worker RNG keeps jitter lock-free.
	rng := rand.New(rand.NewSource(time.Now().UnixNano() ^ (int64(idx) << 32)))

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		default:
		}

		select {
		case <-ctx.Done():
			return
		case <-q.stopCh:
			return
		case qt := <-q.q:
			q.finish(q.execOne(ctx, qt, rng))
		}
	}
}

func (q *Queue) execOne(ctx context.Context, qt queuedTask, rng *rand.Rand) Result {
	start := time.Now()
	log := q.log.With().Str("task", qt.task.Name).Str("task_id", qt.id).Logger()
	log.Debug().Dur("queue_delay", start.Sub(qt.enqueuedAt)).Msg("task started")

	policy := qt.task.Policy
	var err error
	attempts := 0
attemptLoop:
	for attempt := 1; ; attempt++ {
		attempts = attempt
		err = q.runOnce(ctx, qt.task)
		if !policy.ShouldRetry(err, attempt) {
			break
		}

		delay := policy.Delay(attempt, rng)
		metrics.TaskRetriesTotal.WithLabelValues(qt.task.Name).Inc()
		log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Err(err).Msg("task retry scheduled")
		if delay <= 0 {
			continue
		}
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			tmr.Stop()
			err = ctx.Err()
			break attemptLoop
		case <-q.stopCh:
			tmr.Stop()
			err = fmt.Errorf("%w during retry wait: %v", ErrStopped, err)
			break attemptLoop
		case <-tmr.C:
		}
	}

	res := Result{ID: qt.id, Name: qt.task.Name, Started: start, Duration: time.Since(start), Attempts: attempts}
	if err != nil {
		res.Error = err.Error()
		metrics.TasksTotal.WithLabelValues(qt.task.Name, "failed").Inc()
		log.Warn().Err(err).Int("attempts", attempts).Dur("dur", res.Duration).Msg("task failed")
		return res
	}
	metrics.TasksTotal.WithLabelValues(qt.task.Name, "succeeded").Inc()
	log.Debug().Int("attempts", attempts).Dur("dur", res.Duration).Msg("task completed")
	return res
}

// runOnce executes a single attempt, converting panics into errors so one bad
// task cannot kill a worker.
func (q *Queue) runOnce(ctx context.Context, t Task) (err error) {
	if t.Run == nil {
		return Permanent(errors.New("task has no run function"))
	}
	runCtx := ctx
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			q.log.Error().Str("task", t.Name).Interface("panic", r).Str("stack", string(debug.Stack())).Msg("task panic")
		}
	}()
	return t.Run(runCtx)
}
