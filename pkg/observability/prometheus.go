package observability

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsClient implements MetricsClient using Prometheus collectors.
// Collectors are created lazily on first use and cached by name and label set.
// Metric names are sanitized to the Prometheus charset and registration
// failures degrade to a no-op: an observability problem must never surface to
// the code being observed.
type PrometheusMetricsClient struct {
	namespace string

	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec

	registry *prometheus.Registry
	mu       sync.RWMutex
}

// NewPrometheusMetricsClient creates a new Prometheus metrics client with its
// own registry, exposable via promhttp.HandlerFor.
func NewPrometheusMetricsClient(namespace string) *PrometheusMetricsClient {
	return &PrometheusMetricsClient{
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		registry:   prometheus.NewRegistry(),
	}
}

// Registry returns the underlying Prometheus registry
func (c *PrometheusMetricsClient) Registry() *prometheus.Registry {
	return c.registry
}

// RecordCounter records a counter metric
func (c *PrometheusMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {
	counter := c.getOrCreateCounter(sanitizeMetricName(name), labelNames(labels))
	if counter == nil {
		return
	}
	if m, err := counter.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Add(value)
	}
}

// RecordGauge records a gauge metric
func (c *PrometheusMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {
	gauge := c.getOrCreateGauge(sanitizeMetricName(name), labelNames(labels))
	if gauge == nil {
		return
	}
	if m, err := gauge.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Set(value)
	}
}

// RecordHistogram records a histogram observation
func (c *PrometheusMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {
	histogram := c.getOrCreateHistogram(sanitizeMetricName(name), labelNames(labels))
	if histogram == nil {
		return
	}
	if m, err := histogram.GetMetricWith(prometheus.Labels(labels)); err == nil {
		m.Observe(value)
	}
}

// RecordDuration records a duration in seconds
func (c *PrometheusMetricsClient) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	c.RecordHistogram(name, duration.Seconds(), labels)
}

// IncrementCounter increments a counter without labels
func (c *PrometheusMetricsClient) IncrementCounter(name string, value float64) {
	c.RecordCounter(name, value, nil)
}

// StartTimer starts a timer and returns a function to stop it
func (c *PrometheusMetricsClient) StartTimer(name string, labels map[string]string) func() {
	start := time.Now()
	return func() {
		c.RecordDuration(name, time.Since(start), labels)
	}
}

// RecordCacheOperation records a cache operation outcome
func (c *PrometheusMetricsClient) RecordCacheOperation(operation string, hit bool, duration time.Duration) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.RecordCounter("cache_operations_total", 1, map[string]string{
		"operation": operation,
		"result":    result,
	})
	c.RecordDuration("cache_operation_duration_seconds", duration, map[string]string{
		"operation": operation,
	})
}

// Close implements MetricsClient.Close
func (c *PrometheusMetricsClient) Close() error {
	return nil
}

func (c *PrometheusMetricsClient) getOrCreateCounter(name string, names []string) *prometheus.CounterVec {
	key := collectorKey(name, names)

	c.mu.RLock()
	counter, ok := c.counters[key]
	c.mu.RUnlock()
	if ok {
		return counter
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if counter, ok := c.counters[key]; ok {
		return counter
	}

	counter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Counter for %s", name),
	}, names)
	counter = registerOrDrop(c.registry, counter)
	c.counters[key] = counter
	return counter
}

func (c *PrometheusMetricsClient) getOrCreateGauge(name string, names []string) *prometheus.GaugeVec {
	key := collectorKey(name, names)

	c.mu.RLock()
	gauge, ok := c.gauges[key]
	c.mu.RUnlock()
	if ok {
		return gauge
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if gauge, ok := c.gauges[key]; ok {
		return gauge
	}

	gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Gauge for %s", name),
	}, names)
	gauge = registerOrDrop(c.registry, gauge)
	c.gauges[key] = gauge
	return gauge
}

func (c *PrometheusMetricsClient) getOrCreateHistogram(name string, names []string) *prometheus.HistogramVec {
	key := collectorKey(name, names)

	c.mu.RLock()
	histogram, ok := c.histograms[key]
	c.mu.RUnlock()
	if ok {
		return histogram
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if histogram, ok := c.histograms[key]; ok {
		return histogram
	}

	histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: c.namespace,
		Name:      name,
		Help:      fmt.Sprintf("Histogram for %s", name),
		Buckets:   prometheus.DefBuckets,
	}, names)
	histogram = registerOrDrop(c.registry, histogram)
	c.histograms[key] = histogram
	return histogram
}

// registerOrDrop registers the collector, returning nil when the registry
// refuses it (same name already registered with different label dimensions).
// The nil is cached so the conflicting series degrades to a silent no-op
// instead of panicking on every record.
func registerOrDrop[T prometheus.Collector](registry *prometheus.Registry, collector T) T {
	if err := registry.Register(collector); err != nil {
		var zero T
		return zero
	}
	return collector
}

// sanitizeMetricName maps a metric name onto the Prometheus charset
// [a-zA-Z_:][a-zA-Z0-9_:]*. The tracking layer accepts dotted names like
// "flight.create.count"; dots and dashes become underscores here.
func sanitizeMetricName(name string) string {
	out := []rune(name)
	for i, r := range out {
		valid := r == '_' || r == ':' ||
			(r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9' && i > 0)
		if !valid {
			out[i] = '_'
		}
	}
	return string(out)
}

func collectorKey(name string, names []string) string {
	return name + "|" + strings.Join(names, ",")
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
