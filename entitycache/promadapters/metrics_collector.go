// Package promadapters provides a Prometheus adapter for the entitycache metrics interface,
// for users who expose metrics through a Prometheus registry instead of OpenTelemetry.
package promadapters

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// MetricsCollector implements entitycache.MetricsCollector on top of a Prometheus registry.
// Instruments are created lazily on first use, with the label names fixed by the labels of
// that first observation:
//   - RecordDuration -> HistogramVec (query durations, in seconds)
//   - IncrementCounter -> CounterVec (dropped records, rollbacks, errors)
//   - RecordValue -> GaugeVec (current values)
type MetricsCollector struct {
	mu         sync.Mutex
	registerer prometheus.Registerer
	counters   map[string]*instrumentedCounter
	histograms map[string]*instrumentedHistogram
	gauges     map[string]*instrumentedGauge
}

type instrumentedCounter struct {
	vec        *prometheus.CounterVec
	labelNames []string
}

type instrumentedHistogram struct {
	vec        *prometheus.HistogramVec
	labelNames []string
}

type instrumentedGauge struct {
	vec        *prometheus.GaugeVec
	labelNames []string
}

// NewMetricsCollector creates a collector registering its instruments with the given registerer.
// Pass prometheus.DefaultRegisterer to use the process-global registry.
func NewMetricsCollector(registerer prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		registerer: registerer,
		counters:   make(map[string]*instrumentedCounter),
		histograms: make(map[string]*instrumentedHistogram),
		gauges:     make(map[string]*instrumentedGauge),
	}
}

// RecordDuration records a duration observation in seconds on the named histogram.
func (m *MetricsCollector) RecordDuration(metric string, duration time.Duration, labels map[string]string) {
	m.mu.Lock()
	histogram, ok := m.histograms[metric]
	if !ok {
		histogram = m.buildHistogram(metric, labels)
	}
	m.mu.Unlock()

	if histogram == nil {
		return
	}

	histogram.vec.With(labelValuesFor(histogram.labelNames, labels)).Observe(duration.Seconds())
}

// IncrementCounter increments the named counter by one.
func (m *MetricsCollector) IncrementCounter(metric string, labels map[string]string) {
	m.mu.Lock()
	counter, ok := m.counters[metric]
	if !ok {
		counter = m.buildCounter(metric, labels)
	}
	m.mu.Unlock()

	if counter == nil {
		return
	}

	counter.vec.With(labelValuesFor(counter.labelNames, labels)).Inc()
}

// RecordValue sets the named gauge to the given value.
func (m *MetricsCollector) RecordValue(metric string, value float64, labels map[string]string) {
	m.mu.Lock()
	gauge, ok := m.gauges[metric]
	if !ok {
		gauge = m.buildGauge(metric, labels)
	}
	m.mu.Unlock()

	if gauge == nil {
		return
	}

	gauge.vec.With(labelValuesFor(gauge.labelNames, labels)).Set(value)
}

func (m *MetricsCollector) buildCounter(metric string, labels map[string]string) *instrumentedCounter {
	labelNames := sortedLabelNames(labels)

	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: metric,
		Help: "Entity cache operation counter",
	}, labelNames)

	if !m.register(vec) {
		return nil
	}

	counter := &instrumentedCounter{vec: vec, labelNames: labelNames}
	m.counters[metric] = counter

	return counter
}

func (m *MetricsCollector) buildHistogram(metric string, labels map[string]string) *instrumentedHistogram {
	labelNames := sortedLabelNames(labels)

	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    metric,
		Help:    "Entity cache operation duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, labelNames)

	if !m.register(vec) {
		return nil
	}

	histogram := &instrumentedHistogram{vec: vec, labelNames: labelNames}
	m.histograms[metric] = histogram

	return histogram
}

func (m *MetricsCollector) buildGauge(metric string, labels map[string]string) *instrumentedGauge {
	labelNames := sortedLabelNames(labels)

	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: metric,
		Help: "Entity cache current value",
	}, labelNames)

	if !m.register(vec) {
		return nil
	}

	gauge := &instrumentedGauge{vec: vec, labelNames: labelNames}
	m.gauges[metric] = gauge

	return gauge
}

// register tolerates duplicate registration so two collectors sharing a registry
// do not panic; the metric silently becomes a no-op for the losing collector.
func (m *MetricsCollector) register(collector prometheus.Collector) bool {
	return m.registerer.Register(collector) == nil
}

// labelValuesFor projects the observation's labels onto the instrument's fixed
// label names, filling absent labels with an empty value.
func labelValuesFor(labelNames []string, labels map[string]string) prometheus.Labels {
	values := make(prometheus.Labels, len(labelNames))
	for _, name := range labelNames {
		values[name] = labels[name]
	}

	return values
}

func sortedLabelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Ensure MetricsCollector implements entitycache.MetricsCollector.
var _ entitycache.MetricsCollector = (*MetricsCollector)(nil)
