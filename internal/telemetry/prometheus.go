package telemetry

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsMu        sync.Mutex
	counterMetricMap = map[string]prometheus.Counter{}
)

func getKey(metric string, labels map[string]string) string {
	eventMetricKey := metric
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		eventMetricKey += "/" + key + ":" + labels[key]
	}
	return eventMetricKey
}

// NewCounter returns the counter registered for metric and labels, creating
// it on first use. Jobs run concurrently so the registry is guarded.
func NewCounter(metric string, labels map[string]string) prometheus.Counter {
	metricsMu.Lock()
	defer metricsMu.Unlock()

	metricKey := getKey(metric, labels)
	if _, ok := counterMetricMap[metricKey]; !ok {
		counterMetricMap[metricKey] = promauto.NewCounter(prometheus.CounterOpts{Name: metric, ConstLabels: labels})
	}
	return counterMetricMap[metricKey]
}
