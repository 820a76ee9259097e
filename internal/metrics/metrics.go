// Package metrics exposes Prometheus instrumentation for the dispatcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for mailfan
type Metrics struct {
	// Dispatch
	TasksCreatedTotal   prometheus.Counter
	TasksSentTotal      prometheus.Counter
	TasksFailedTotal    prometheus.Counter
	SendDurationSeconds prometheus.Histogram

	// Ingestion
	FeedPollsTotal      prometheus.Counter
	FeedPollErrorsTotal prometheus.Counter
	ItemsIngestedTotal  prometheus.Counter
	ItemsSkippedTotal   prometheus.Counter

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TasksCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_tasks_created_total",
			Help: "Total number of delivery tasks created by fan-out",
		}),
		TasksSentTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_tasks_sent_total",
			Help: "Total number of tasks delivered successfully",
		}),
		TasksFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_tasks_failed_total",
			Help: "Total number of tasks that failed delivery",
		}),
		SendDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mailfan_send_duration_seconds",
			Help:    "Time spent submitting one message to the mail transport",
			Buckets: prometheus.DefBuckets,
		}),
		FeedPollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_feed_polls_total",
			Help: "Total number of per-list feed polls",
		}),
		FeedPollErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_feed_poll_errors_total",
			Help: "Total number of per-list feed polls that failed",
		}),
		ItemsIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_items_ingested_total",
			Help: "Total number of new feed entries ingested",
		}),
		ItemsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mailfan_items_skipped_total",
			Help: "Total number of feed entries skipped as already seen",
		}),
		registry: reg,
	}

	reg.MustRegister(
		m.TasksCreatedTotal,
		m.TasksSentTotal,
		m.TasksFailedTotal,
		m.SendDurationSeconds,
		m.FeedPollsTotal,
		m.FeedPollErrorsTotal,
		m.ItemsIngestedTotal,
		m.ItemsSkippedTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
