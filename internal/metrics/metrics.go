// Package metrics exposes Prometheus metrics for the HTTP API and the
// notification engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "zaloga"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	raised          *prometheus.CounterVec
	suppressed      *prometheus.CounterVec
	pastDue         prometheus.Counter
	sweeps          *prometheus.CounterVec
	sweepDuration   prometheus.Histogram
	lastSweep       prometheus.Gauge
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "pattern", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "pattern"}),
		raised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_raised_total",
			Help:      "Notifications written to the ledger",
		}, []string{"type"}),
		suppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_suppressed_total",
			Help:      "Notifications suppressed as duplicates",
		}, []string{"type"}),
		pastDue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "borrows_marked_past_due_total",
			Help:      "Borrows transitioned to past due",
		}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweeps_total",
			Help:      "Completed condition sweeps by result",
		}, []string{"result"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sweep_duration_seconds",
			Help:      "Duration of condition sweeps",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSweep: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_sweep_timestamp_seconds",
			Help:      "Unix time of the last successful sweep",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.raised,
		m.suppressed,
		m.pastDue,
		m.sweeps,
		m.sweepDuration,
		m.lastSweep,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one completed HTTP request. Pattern is the matched
// route pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveRequest(method, pattern string, status int, d time.Duration) {
	if pattern == "" {
		pattern = "unmatched"
	}
	m.requests.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, pattern).Observe(d.Seconds())
}

func (m *Metrics) NotificationRaised(typ string) {
	m.raised.WithLabelValues(typ).Inc()
}

func (m *Metrics) NotificationSuppressed(typ string) {
	m.suppressed.WithLabelValues(typ).Inc()
}

func (m *Metrics) PastDueMarked(n int) {
	m.pastDue.Add(float64(n))
}

func (m *Metrics) SweepCompleted(d time.Duration, err error) {
	m.sweepDuration.Observe(d.Seconds())
	if err != nil {
		m.sweeps.WithLabelValues("error").Inc()
		return
	}
	m.sweeps.WithLabelValues("ok").Inc()
	m.lastSweep.SetToCurrentTime()
}
