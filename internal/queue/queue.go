// Package queue is an in-process task queue: a bounded channel drained by a
// fixed worker pool, with a retry policy attached to every task.
//
// Submission is fire-and-forget. Callers get a Handle for correlation in logs;
// outcomes surface through logs, metrics and Snapshot.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	ErrQueueFull = errors.New("queue full")
	ErrStopped   = errors.New("queue stopped")
)

// Submitter is the submission side of the queue.
type Submitter interface {
	Submit(t Task) (Handle, error)
	SubmitGroup(ts []Task) ([]Handle, error)
}

// Task is a named unit of work.
type Task struct {
	Name    string
	Timeout time.Duration
	Policy  RetryPolicy
	Run     func(ctx context.Context) error
}

// Handle identifies a submitted task.
type Handle struct {
	ID   string
	Name string
}

// Config controls the worker pool.
type Config struct {
	Workers     int
	Size        int
	HistorySize int
}

// Result records the final outcome of one task.
type Result struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Attempts int           `json:"attempts"`
	Error    string        `json:"error,omitempty"`
}

// Snapshot is a diagnostics view of the queue.
type Snapshot struct {
	Workers   int      `json:"workers"`
	QueueLen  int      `json:"queue_len"`
	QueueCap  int      `json:"queue_cap"`
	Pending   int      `json:"pending"`
	Succeeded uint64   `json:"succeeded"`
	Failed    uint64   `json:"failed"`
	Dropped   uint64   `json:"dropped"`
	History   []Result `json:"history"`
}

type queuedTask struct {
	id         string
	task       Task
	enqueuedAt time.Time
}

// Queue runs submitted tasks on a worker pool.
type Queue struct {
	cfg Config
	log zerolog.Logger
	q   chan queuedTask

	mu      sync.Mutex
	cond    *sync.Cond
	pending int
	started bool
	stopped bool
	stopCh  chan struct{}
	wg      sync.WaitGroup

	succeeded uint64
	failed    uint64
	dropped   uint64
	history   []Result
}

// New creates a queue. Tasks may be submitted before Start; they wait in the buffer.
func New(cfg Config, log zerolog.Logger) *Queue {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 200
	}
	q := &Queue{
		cfg:    cfg,
		log:    log.With().Str("comp", "queue").Logger(),
		q:      make(chan queuedTask, cfg.Size),
		stopCh: make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Start launches the workers. It is a no-op if already started.
func (q *Queue) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go func(idx int) {
			defer q.wg.Done()
			q.worker(ctx, idx)
		}(i)
	}
	q.log.Info().Int("workers", q.cfg.Workers).Int("size", q.cfg.Size).Msg("queue started")
}

// Stop rejects new submissions, waits for in-flight tasks and drops what is
// still buffered. Tasks in a retry wait give up.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.stopCh)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	dropped := 0
drain:
	for {
		select {
		case <-q.q:
			dropped++
		default:
			break drain
		}
	}
	q.mu.Lock()
	q.dropped += uint64(dropped)
	q.pending -= dropped
	q.cond.Broadcast()
	q.mu.Unlock()
	if dropped > 0 {
		q.log.Warn().Int("dropped", dropped).Msg("queue stopped with buffered tasks")
	}
	q.log.Info().Msg("queue stopped")
	return nil
}

// Submit enqueues t without blocking.
func (q *Queue) Submit(t Task) (Handle, error) {
	h := Handle{ID: uuid.NewString(), Name: t.Name}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.stopped {
		return Handle{}, ErrStopped
	}
	select {
	case q.q <- queuedTask{id: h.ID, task: t, enqueuedAt: time.Now()}:
		q.pending++
		return h, nil
	default:
		q.dropped++
		q.log.Warn().Str("task", t.Name).Msg("queue full, task dropped")
		return Handle{}, ErrQueueFull
	}
}

// SubmitGroup enqueues every task independently. A rejected task does not
// prevent the others from being queued; rejections are joined into the error.
func (q *Queue) SubmitGroup(ts []Task) ([]Handle, error) {
	handles := make([]Handle, 0, len(ts))
	var errs []error
	for _, t := range ts {
		h, err := q.Submit(t)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		handles = append(handles, h)
	}
	return handles, errors.Join(errs...)
}

// Wait blocks until every submitted task has finished or been dropped.
func (q *Queue) Wait() {
	q.mu.Lock()
	for q.pending > 0 {
		q.cond.Wait()
	}
	q.mu.Unlock()
}

// Snapshot returns counters and recent results.
func (q *Queue) Snapshot() Snapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	hist := make([]Result, len(q.history))
	copy(hist, q.history)
	return Snapshot{
		Workers:   q.cfg.Workers,
		QueueLen:  len(q.q),
		QueueCap:  cap(q.q),
		Pending:   q.pending,
		Succeeded: q.succeeded,
		Failed:    q.failed,
		Dropped:   q.dropped,
		History:   hist,
	}
}

func (q *Queue) finish(r Result) {
	q.mu.Lock()
	if r.Error == "" {
		q.succeeded++
	} else {
		q.failed++
	}
	q.history = append(q.history, r)
	if len(q.history) > q.cfg.HistorySize {
		q.history = q.history[len(q.history)-q.cfg.HistorySize:]
	}
	q.pending--
	q.cond.Broadcast()
	q.mu.Unlock()
}
