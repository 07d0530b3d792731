// Package metrics exposes Prometheus collectors for scans and deletions.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sizestream"

// Scan outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeCanceled  = "canceled"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	scans        *prometheus.CounterVec
	activeScans  prometheus.Gauge
	scanDuration prometheus.Histogram
	visited      prometheus.Counter
	scannedBytes prometheus.Counter
	deletions    *prometheus.CounterVec
	deletedBytes prometheus.Counter
	dropped      prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scans_total",
			Help:      "Scans finished, by outcome.",
		}, []string{"outcome"}),
		activeScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_scans",
			Help:      "Scans currently running.",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scan_duration_seconds",
			Help:      "Wall time of finished scans.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		visited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entries_visited_total",
			Help:      "Filesystem entries visited by finished scans.",
		}),
		scannedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanned_bytes_total",
			Help:      "On-disk bytes accounted by finished scans.",
		}),
		deletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deletions_total",
			Help:      "Deleted paths, by result.",
		}, []string{"result"}),
		deletedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deleted_bytes_total",
			Help:      "On-disk bytes freed by deletions.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events dropped because a consumer was not keeping up.",
		}),
	}
	m.registry.MustRegister(
		m.scans, m.activeScans, m.scanDuration, m.visited, m.scannedBytes,
		m.deletions, m.deletedBytes, m.dropped,
		collectors.NewGoCollector(),
	)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ScanStarted() {
	if m == nil {
		return
	}
	m.activeScans.Inc()
}

func (m *Metrics) ScanFinished(outcome string, visited, bytes uint64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.activeScans.Dec()
	m.scans.WithLabelValues(outcome).Inc()
	m.scanDuration.Observe(elapsed.Seconds())
	m.visited.Add(float64(visited))
	m.scannedBytes.Add(float64(bytes))
}

func (m *Metrics) Deleted(ok, failed int, bytes uint64) {
	if m == nil {
		return
	}
	m.deletions.WithLabelValues("ok").Add(float64(ok))
	m.deletions.WithLabelValues("failed").Add(float64(failed))
	m.deletedBytes.Add(float64(bytes))
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
