package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	BroadcastsTotal     *prometheus.CounterVec
	BroadcastDuration   prometheus.Histogram
	BroadcastRecipients prometheus.Gauge
	QueueItemsEnqueued  prometheus.Counter
	QueueBatchItems     *prometheus.CounterVec
	FeedChecksTotal     *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BroadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "broadcasts_total",
			Help: "Broadcast runs by result (enqueued, empty, locked, error).",
		}, []string{"result"}),

		BroadcastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Wall time of a broadcast run from lock acquisition to release.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),

		BroadcastRecipients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "broadcast_last_recipients",
			Help: "Eligible subscribers found by the most recent broadcast run.",
		}),

		QueueItemsEnqueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "queue_items_enqueued_total",
			Help: "Total number of queue items written by broadcasts.",
		}),

		QueueBatchItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "queue_batch_items_total",
			Help: "Queue items per batch write outcome.",
		}, []string{"outcome"}),

		FeedChecksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_checks_total",
			Help: "Feed checks by result (sent, unchanged, error).",
		}, []string{"result"}),
	}

	reg.MustRegister(
		m.BroadcastsTotal,
		m.BroadcastDuration,
		m.BroadcastRecipients,
		m.QueueItemsEnqueued,
		m.QueueBatchItems,
		m.FeedChecksTotal,
	)

	return m
}

// RunHook returns the callback expected by service.RunHooks.OnRun.
func (m *Metrics) RunHook() func(result string, latency time.Duration, subscribers, enqueued int) {
	return func(result string, latency time.Duration, subscribers, enqueued int) {
		m.BroadcastsTotal.WithLabelValues(result).Inc()
		m.BroadcastDuration.Observe(latency.Seconds())
		m.BroadcastRecipients.Set(float64(subscribers))
		m.QueueItemsEnqueued.Add(float64(enqueued))
	}
}

// BatchHook returns the callback expected by broadcast.WithBatchHook.
func (m *Metrics) BatchHook() func(outcome string, items int) {
	return func(outcome string, items int) {
		m.QueueBatchItems.WithLabelValues(outcome).Add(float64(items))
	}
}

// FeedHook returns the callback expected by worker.NewFeedWorker.
func (m *Metrics) FeedHook() func(result string) {
	return func(result string) {
		m.FeedChecksTotal.WithLabelValues(result).Inc()
	}
}
