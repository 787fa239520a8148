package pipeline

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"PriceSentinel/internal/cache"
	"PriceSentinel/internal/collector"
	"PriceSentinel/internal/model"
	"PriceSentinel/internal/notifier"
	"PriceSentinel/internal/queue"
	"PriceSentinel/internal/store"
)

type hookRecorder struct {
	mu     sync.Mutex
	bodies []map[string]any
}

func (h *hookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var m map[string]any
	_ = json.Unmarshal(body, &m)
	h.mu.Lock()
	h.bodies = append(h.bodies, m)
	h.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (h *hookRecorder) Bodies() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.bodies...)
}

type e2e struct {
	store      *store.SQLiteStore
	redis      *miniredis.Miniredis
	hook       *hookRecorder
	hookURL    string
	queue      *queue.Queue
	worker     *PriceWorker
	dispatcher *Dispatcher
}

func newE2E(t *testing.T, price string) *e2e {
	t.Helper()
	log := zerolog.Nop()

	quotes := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sym := r.URL.Query().Get("symbol")
		if sym != "BTCUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","price":"` + price + `"}`))
	}))
	t.Cleanup(quotes.Close)

	hook := &hookRecorder{}
	hookSrv := httptest.NewServer(hook)
	t.Cleanup(hookSrv.Close)

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "alerts.db"), log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	mr := miniredis.RunT(t)
	pc, err := cache.NewRedisCache(context.Background(), "redis://"+mr.Addr(), log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { pc.Close() })

	q := queue.New(queue.Config{Workers: 4, Size: 32}, log)
	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)
	t.Cleanup(func() {
		_ = q.Stop(context.Background())
		cancel()
	})

	d := NewDispatcher(st, map[model.Channel]notifier.Notifier{
		model.ChannelWebhook: notifier.NewWebhookNotifier(time.Second, log),
	}, log)
	col := collector.NewCollector(collector.NewBinanceFetcher(quotes.URL, time.Second, ""), 0, log)
	w := NewPriceWorker(col, pc, st, q, d, fastWorkerConfig(), log)

	return &e2e{store: st, redis: mr, hook: hook, hookURL: hookSrv.URL, queue: q, worker: w, dispatcher: d}
}

func (e *e2e) seedAlert(t *testing.T) *model.Alert {
	t.Helper()
	a := &model.Alert{
		UserID:        1,
		Symbol:        "BTCUSDT",
		Threshold:     decimal.RequireFromString("50000"),
		Direction:     model.DirectionAbove,
		Channel:       model.ChannelWebhook,
		ChannelConfig: model.ChannelConfig{"url": e.hookURL + "/hook"},
		IsActive:      true,
	}
	if err := e.store.CreateAlert(context.Background(), a); err != nil {
		t.Fatal(err)
	}
	return a
}

func TestEndToEnd_CrossingDeliversWebhook(t *testing.T) {
	e := newE2E(t, "50001.23")
	a := e.seedAlert(t)

	res, err := e.worker.Poll(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	e.queue.Wait()

	if len(res.Jobs) != 1 || res.Jobs[0].AlertID != a.ID || res.Jobs[0].Price.String() != "50001.23" {
		t.Fatalf("jobs = %+v", res.Jobs)
	}
	if got, _ := e.redis.Get("price:BTCUSDT"); got != "50001.23" {
		t.Fatalf("cached price = %q", got)
	}

	bodies := e.hook.Bodies()
	if len(bodies) != 1 {
		t.Fatalf("webhook calls = %d, want 1", len(bodies))
	}
	b := bodies[0]
	if b["alert_id"] != float64(a.ID) || b["symbol"] != "BTCUSDT" || b["threshold"] != "50000" ||
		b["direction"] != "above" || b["price"] != 50001.23 {
		t.Fatalf("webhook body = %v", b)
	}
}

func TestEndToEnd_BelowThresholdSendsNothing(t *testing.T) {
	e := newE2E(t, "49999")
	e.seedAlert(t)

	res, err := e.worker.Poll(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	e.queue.Wait()

	if len(res.Jobs) != 0 {
		t.Fatalf("jobs = %+v", res.Jobs)
	}
	if n := len(e.hook.Bodies()); n != 0 {
		t.Fatalf("webhook calls = %d, want 0", n)
	}
}

func TestEndToEnd_DeactivatedBeforeDispatchIsDiscarded(t *testing.T) {
	e := newE2E(t, "50001.23")
	a := e.seedAlert(t)

	alerts, err := e.store.ListActiveAlerts(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatal(err)
	}
	triggered := Evaluate(decimal.RequireFromString("50001.23"), alerts)
	if len(triggered) != 1 {
		t.Fatalf("triggered = %v", triggered)
	}

	if err := e.store.SetActive(context.Background(), a.ID, false); err != nil {
		t.Fatal(err)
	}
	job := model.NotificationJob{AlertID: a.ID, Price: decimal.RequireFromString("50001.23")}
	if err := e.dispatcher.Dispatch(context.Background(), job); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if n := len(e.hook.Bodies()); n != 0 {
		t.Fatalf("webhook calls = %d, want 0", n)
	}
}

func TestEndToEnd_UnknownSymbolTask(t *testing.T) {
	e := newE2E(t, "1")

	if _, err := e.queue.Submit(e.worker.Task("NOPEUSDT")); err != nil {
		t.Fatal(err)
	}
	e.queue.Wait()

	hist := e.queue.Snapshot().History
	if len(hist) != 1 || hist[0].Error != "" || hist[0].Attempts != 1 {
		t.Fatalf("history = %+v", hist)
	}
	if e.redis.Exists("price:NOPEUSDT") {
		t.Fatal("unknown symbol must not be cached")
	}
}
