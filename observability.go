// observability.go: lifecycle metrics collected from plugin events
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package termite

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Metric names recorded by LifecycleMetrics.
const (
	MetricTransitionsTotal = "termite_lifecycle_transitions_total"
	MetricFailuresTotal    = "termite_lifecycle_failures_total"
	MetricPluginsByState   = "termite_plugins"
	MetricStateSeconds     = "termite_state_duration_seconds"
)

// maxHistogramSamples bounds the samples kept per histogram key.
const maxHistogramSamples = 1000

// MetricsCollector receives the metrics of a platform. Implementations
// adapt it to Prometheus, StatsD or any other backend.
//
// Example usage:
//
//	collector.IncrementCounter("termite_lifecycle_transitions_total",
//	    map[string]string{"to": "active"}, 1)
//	collector.SetGauge("termite_plugins", map[string]string{"state": "active"}, 3)
type MetricsCollector interface {
	IncrementCounter(name string, labels map[string]string, value int64)
	SetGauge(name string, labels map[string]string, value float64)
	RecordHistogram(name string, labels map[string]string, value float64)

	// GetMetrics returns a snapshot keyed by name and sorted labels.
	GetMetrics() map[string]interface{}
}

// DefaultMetricsCollector keeps metrics in memory.
type DefaultMetricsCollector struct {
	mu         sync.RWMutex
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
}

// NewDefaultMetricsCollector creates an empty in-memory collector.
func NewDefaultMetricsCollector() *DefaultMetricsCollector {
	return &DefaultMetricsCollector{
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
	}
}

// IncrementCounter implements MetricsCollector
func (dmc *DefaultMetricsCollector) IncrementCounter(name string, labels map[string]string, value int64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.counters[MetricKey(name, labels)] += value
}

// SetGauge implements MetricsCollector
func (dmc *DefaultMetricsCollector) SetGauge(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()
	dmc.gauges[MetricKey(name, labels)] = value
}

// RecordHistogram implements MetricsCollector
func (dmc *DefaultMetricsCollector) RecordHistogram(name string, labels map[string]string, value float64) {
	dmc.mu.Lock()
	defer dmc.mu.Unlock()

	key := MetricKey(name, labels)
	samples := append(dmc.histograms[key], value)
	if len(samples) > maxHistogramSamples {
		samples = samples[len(samples)-maxHistogramSamples:]
	}
	dmc.histograms[key] = samples
}

// GetMetrics implements MetricsCollector. Histograms are summarized as
// _count, _sum, _min and _max entries.
func (dmc *DefaultMetricsCollector) GetMetrics() map[string]interface{} {
	dmc.mu.RLock()
	defer dmc.mu.RUnlock()

	metrics := make(map[string]interface{}, len(dmc.counters)+len(dmc.gauges))
	for k, v := range dmc.counters {
		metrics[k] = v
	}
	for k, v := range dmc.gauges {
		metrics[k] = v
	}
	for k, samples := range dmc.histograms {
		if len(samples) == 0 {
			continue
		}
		sum, minVal, maxVal := 0.0, samples[0], samples[0]
		for _, v := range samples {
			sum += v
			minVal = min(minVal, v)
			maxVal = max(maxVal, v)
		}
		metrics[k+"_count"] = len(samples)
		metrics[k+"_sum"] = sum
		metrics[k+"_min"] = minVal
		metrics[k+"_max"] = maxVal
	}
	return metrics
}

// MetricKey builds the snapshot key of a metric: the name followed by the
// labels sorted by name, as in "termite_plugins{state=active}".
func MetricKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	key := name + "{"
	for i, k := range keys {
		if i > 0 {
			key += ","
		}
		key += fmt.Sprintf("%s=%s", k, labels[k])
	}
	return key + "}"
}

// LifecycleMetrics turns lifecycle events into metrics:
//   - termite_lifecycle_transitions_total{from,to}: every transition
//   - termite_lifecycle_failures_total{plugin,to}: transitions caused by a failure
//   - termite_plugins{state}: plugins in each state, counted from their first transition
//   - termite_state_duration_seconds{state}: time spent in a state before leaving it
type LifecycleMetrics struct {
	mu        sync.Mutex
	collector MetricsCollector
	states    map[string]LifecycleState
	entered   map[string]time.Time
}

// NewLifecycleMetrics records into collector, or into a new
// DefaultMetricsCollector when collector is nil.
func NewLifecycleMetrics(collector MetricsCollector) *LifecycleMetrics {
	if collector == nil {
		collector = NewDefaultMetricsCollector()
	}
	return &LifecycleMetrics{
		collector: collector,
		states:    make(map[string]LifecycleState),
		entered:   make(map[string]time.Time),
	}
}

// Collector returns the collector metrics are recorded into.
func (m *LifecycleMetrics) Collector() MetricsCollector {
	return m.collector
}

// Handle records event. It has the LifecycleEventHandler signature.
func (m *LifecycleMetrics) Handle(event LifecycleEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := event.Reference
	m.collector.IncrementCounter(MetricTransitionsTotal,
		map[string]string{"from": event.From.String(), "to": event.To.String()}, 1)
	if event.Err != nil {
		m.collector.IncrementCounter(MetricFailuresTotal,
			map[string]string{"plugin": event.PluginID, "to": event.To.String()}, 1)
	}

	if since, ok := m.entered[key]; ok && !event.Timestamp.Before(since) {
		m.collector.RecordHistogram(MetricStateSeconds,
			map[string]string{"state": event.From.String()}, event.Timestamp.Sub(since).Seconds())
	}

	if event.To == StateDisposed {
		delete(m.states, key)
		delete(m.entered, key)
	} else {
		m.states[key] = event.To
		m.entered[key] = event.Timestamp
	}
	m.publishGauges()
}

func (m *LifecycleMetrics) publishGauges() {
	counts := map[LifecycleState]int{
		StateUninstalled: 0,
		StateInstalled:   0,
		StateActive:      0,
		StateDeactivated: 0,
	}
	for _, state := range m.states {
		counts[state]++
	}
	for state, n := range counts {
		m.collector.SetGauge(MetricPluginsByState, map[string]string{"state": state.String()}, float64(n))
	}
}
