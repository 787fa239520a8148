// Package metrics holds the prometheus collectors for the polling pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_tasks_total", Help: "Queue tasks by final outcome"},
		[]string{"task", "outcome"},
	)
	TaskRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_task_retries_total", Help: "Retry attempts scheduled by the queue"},
		[]string{"task"},
	)
	QuoteFetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_quote_fetches_total", Help: "Quote provider calls by result"},
		[]string{"symbol", "result"},
	)
	AlertsTriggeredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_alerts_triggered_total", Help: "Alerts whose threshold was crossed"},
		[]string{"symbol"},
	)
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sentinel_notifications_total", Help: "Notification deliveries by channel and outcome"},
		[]string{"channel", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(TasksTotal, TaskRetriesTotal, QuoteFetchesTotal, AlertsTriggeredTotal, NotificationsTotal)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
