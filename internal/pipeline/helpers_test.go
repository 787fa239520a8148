package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"PriceSentinel/internal/model"
	"PriceSentinel/internal/queue"
	"PriceSentinel/internal/store"
)

type cacheWrite struct {
	Symbol string
	Price  decimal.Decimal
	TTL    time.Duration
}

type recordingCache struct {
	mu     sync.Mutex
	writes []cacheWrite
	err    error
}

func (c *recordingCache) Set(_ context.Context, symbol string, price decimal.Decimal, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.writes = append(c.writes, cacheWrite{Symbol: symbol, Price: price, TTL: ttl})
	return nil
}

func (c *recordingCache) Close() error { return nil }

func (c *recordingCache) Writes() []cacheWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]cacheWrite(nil), c.writes...)
}

// recordingQueue captures submitted tasks without running them.
type recordingQueue struct {
	mu    sync.Mutex
	tasks []queue.Task
}

func (q *recordingQueue) Submit(t queue.Task) (queue.Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, t)
	return queue.Handle{ID: "h", Name: t.Name}, nil
}

func (q *recordingQueue) SubmitGroup(ts []queue.Task) ([]queue.Handle, error) {
	hs := make([]queue.Handle, 0, len(ts))
	for _, t := range ts {
		h, _ := q.Submit(t)
		hs = append(hs, h)
	}
	return hs, nil
}

func (q *recordingQueue) Tasks() []queue.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Task(nil), q.tasks...)
}

// memStore is an in-memory store.Store.
type memStore struct {
	mu      sync.Mutex
	alerts  map[int64]model.Alert
	listErr error
}

func newMemStore(alerts ...model.Alert) *memStore {
	s := &memStore{alerts: map[int64]model.Alert{}}
	for _, a := range alerts {
		s.alerts[a.ID] = a
	}
	return s
}

func (s *memStore) ListActiveAlerts(_ context.Context, symbol string) ([]model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Alert
	for _, a := range s.alerts {
		if a.IsActive && a.Symbol == model.NormalizeSymbol(symbol) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) ListDistinctActiveSymbols(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, a := range s.alerts {
		if a.IsActive && !seen[a.Symbol] {
			seen[a.Symbol] = true
			out = append(out, a.Symbol)
		}
	}
	return out, nil
}

func (s *memStore) GetAlert(_ context.Context, id int64) (*model.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &a, nil
}

func (s *memStore) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.alerts[id]
	a.IsActive = active
	s.alerts[id] = a
}

func (s *memStore) Close() error { return nil }
