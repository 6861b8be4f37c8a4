package testdoubles

import (
	"sync"
	"time"

	"github.com/schooldash/entity-cache-go/entitycache"
)

// MetricsCollectorSpy implements entitycache.MetricsCollector and captures every
// observation for assertions.
type MetricsCollectorSpy struct {
	mu        sync.Mutex
	counters  map[string]int
	durations map[string][]time.Duration
	values    map[string][]float64
}

// NewMetricsCollectorSpy creates an empty MetricsCollectorSpy.
func NewMetricsCollectorSpy() *MetricsCollectorSpy {
	return &MetricsCollectorSpy{
		counters:  make(map[string]int),
		durations: make(map[string][]time.Duration),
		values:    make(map[string][]float64),
	}
}

// RecordDuration captures a duration observation.
func (m *MetricsCollectorSpy) RecordDuration(metric string, duration time.Duration, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.durations[metric] = append(m.durations[metric], duration)
}

// IncrementCounter captures a counter increment.
func (m *MetricsCollectorSpy) IncrementCounter(metric string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.counters[metric]++
}

// RecordValue captures a gauge observation.
func (m *MetricsCollectorSpy) RecordValue(metric string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[metric] = append(m.values[metric], value)
}

// CounterValue returns the number of increments captured for the metric.
func (m *MetricsCollectorSpy) CounterValue(metric string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.counters[metric]
}

// DurationCount returns the number of duration observations captured for the metric.
func (m *MetricsCollectorSpy) DurationCount(metric string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.durations[metric])
}

var _ entitycache.MetricsCollector = (*MetricsCollectorSpy)(nil)
