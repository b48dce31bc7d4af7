package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	entriesTotal    *prometheus.CounterVec
	entryDuration   *prometheus.HistogramVec
	entriesInFlight prometheus.Gauge
	queueLag        *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	entriesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "journal_entries_total",
			Help:      "Journal entries persisted from the queue by status.",
		},
		[]string{"service", "status"},
	)
	entryDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "journal_entry_duration_seconds",
			Help:      "Time to persist one journal entry by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "status"},
	)
	entriesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "journal_entries_in_flight",
			Help:      "Number of journal entries being persisted.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between the audited action and its persistence.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"service"},
	)

	registry.MustRegister(entriesTotal, entryDuration, entriesInFlight, queueLag)

	return &WorkerMetrics{
		registry:        registry,
		entriesTotal:    entriesTotal,
		entryDuration:   entryDuration,
		entriesInFlight: entriesInFlight,
		queueLag:        queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartEntry() {
	m.entriesInFlight.Inc()
}

func (m *WorkerMetrics) FinishEntry(service string, duration time.Duration, err error) {
	m.entriesInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.entriesTotal.WithLabelValues(service, status).Inc()
	m.entryDuration.WithLabelValues(service, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
