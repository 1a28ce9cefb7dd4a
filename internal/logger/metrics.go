package logger

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "city_events"

// Metrics tracks operational metrics including counters, gauges, and timings.
// Names use dots as separators ("runs.success") and are exported with underscores.
// All operations are thread-safe.
type Metrics struct {
	mu       sync.Mutex
	registry *prometheus.Registry
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	timings  map[string]prometheus.Histogram
}

var defaultMetrics = NewMetrics()

// NewMetrics creates a metrics tracker with its own registry
func NewMetrics() *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),
		counters: make(map[string]prometheus.Counter),
		gauges:   make(map[string]prometheus.Gauge),
		timings:  make(map[string]prometheus.Histogram),
	}
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(strings.ToLower(name))
}

func (m *Metrics) counter(name string) prometheus.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.counters[name]
	if !ok {
		c = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      metricName(name) + "_total",
			Help:      "Count of " + name,
		})
		m.registry.MustRegister(c)
		m.counters[name] = c
	}
	return c
}

func (m *Metrics) gauge(name string) prometheus.Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.gauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      metricName(name),
			Help:      "Current value of " + name,
		})
		m.registry.MustRegister(g)
		m.gauges[name] = g
	}
	return g
}

func (m *Metrics) timing(name string) prometheus.Histogram {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.timings[name]
	if !ok {
		h = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Duration of " + name,
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 60, 90, 120},
		})
		m.registry.MustRegister(h)
		m.timings[name] = h
	}
	return h
}

// IncrCounter increments a counter by 1, creating it on first use
func (m *Metrics) IncrCounter(name string) {
	m.counter(name).Inc()
}

// SetGauge sets a gauge to the specified value, overwriting any previous value
func (m *Metrics) SetGauge(name string, value float64) {
	m.gauge(name).Set(value)
}

// RecordTiming records a duration observation
func (m *Metrics) RecordTiming(name string, duration time.Duration) {
	m.timing(name).Observe(duration.Seconds())
}

// Handler serves the registry in Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package-level metrics functions using the default metrics tracker

// IncrCounter increments a counter on the default metrics tracker
func IncrCounter(name string) {
	defaultMetrics.IncrCounter(name)
}

// SetGauge sets a gauge on the default metrics tracker
func SetGauge(name string, value float64) {
	defaultMetrics.SetGauge(name, value)
}

// RecordTiming records a timing on the default metrics tracker
func RecordTiming(name string, duration time.Duration) {
	defaultMetrics.RecordTiming(name, duration)
}

// MetricsHandler serves the default metrics tracker
func MetricsHandler() http.Handler {
	return defaultMetrics.Handler()
}
