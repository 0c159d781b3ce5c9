package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry encapsulates all metrics and provides a clean interface
// for recording metrics without global state
type Registry struct {
	registry *prometheus.Registry

	// Producer metrics
	publishTotal    *prometheus.CounterVec
	publishDuration *prometheus.HistogramVec
	payloadBytes    *prometheus.HistogramVec
	asyncInFlight   *prometheus.GaugeVec

	// Journal metrics
	journalTotal *prometheus.CounterVec

	// System health metrics
	systemInfo *prometheus.GaugeVec
	startTime  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	registry := prometheus.NewRegistry()

	r := &Registry{
		registry: registry,

		publishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubpub_producer_publish_total",
				Help: "Total number of publish operations",
			},
			[]string{"hub", "route", "status"}, // status: success, invalid, closed, error
		),

		publishDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubpub_producer_publish_duration_seconds",
				Help:    "Time spent sending single-event batches",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"hub", "route"},
		),

		payloadBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubpub_producer_payload_bytes",
				Help:    "Size of accepted event payloads",
				Buckets: prometheus.ExponentialBuckets(64, 4, 8), // 64B .. 1MiB
			},
			[]string{"hub"},
		),

		asyncInFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubpub_async_in_flight",
				Help: "Number of non-blocking publishes currently in flight",
			},
			[]string{"hub"},
		),

		journalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubpub_journal_record_total",
				Help: "Total number of receipt journal writes",
			},
			[]string{"hub", "status"},
		),

		systemInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubpub_system_info",
				Help: "System information (value is always 1, labels contain info)",
			},
			[]string{"version", "transport"},
		),

		startTime: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "hubpub_start_time_seconds",
				Help: "Unix timestamp when the application started",
			},
		),
	}

	// add default Go metrics (memory, GC, goroutines, etc.)
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	registry.MustRegister(
		r.publishTotal,
		r.publishDuration,
		r.payloadBytes,
		r.asyncInFlight,
		r.journalTotal,
		r.systemInfo,
		r.startTime,
	)

	r.startTime.SetToCurrentTime()

	return r
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		Registry:          r.registry,
	})
}

// Gatherer exposes the underlying registry for scraping and tests
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordPublish records a single publish operation. status is one of
// success, invalid, closed or error.
func (r *Registry) RecordPublish(hub, route, status string, payloadBytes int, duration time.Duration) {
	r.publishTotal.WithLabelValues(hub, route, status).Inc()
	r.publishDuration.WithLabelValues(hub, route).Observe(duration.Seconds())
	if status == "success" {
		r.payloadBytes.WithLabelValues(hub).Observe(float64(payloadBytes))
	}
}

// AddInFlight adjusts the async in-flight gauge by delta
func (r *Registry) AddInFlight(hub string, delta float64) {
	r.asyncInFlight.WithLabelValues(hub).Add(delta)
}

// RecordJournal records a receipt journal write
func (r *Registry) RecordJournal(hub string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	r.journalTotal.WithLabelValues(hub, status).Inc()
}

// SetSystemInfo sets system information metrics
func (r *Registry) SetSystemInfo(version, transport string) {
	r.systemInfo.WithLabelValues(version, transport).Set(1)
}
