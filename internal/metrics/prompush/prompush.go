// Package prompush implements metrics.Backend on a private Prometheus registry
// that is pushed to a Pushgateway on Flush. Batch exports are short-lived, so a
// scrape target would usually be gone before Prometheus ever saw it.
package prompush

import (
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"hfexport/internal/metrics"
)

// The Pushgateway groups by job, so "job" is never a metric label here.
var counterLabels = map[string][]string{
	metrics.StepTotal:         {"step", "status"},
	metrics.RecordsTotal:      {"kind"},
	metrics.HTTPRequestsTotal: {"status"},
	metrics.HTTPErrorsTotal:   {"status"},
}

var histogramLabels = map[string][]string{
	metrics.StepDurationSeconds:  {"step", "status"},
	metrics.HTTPRequestDuration:  {"status"},
	metrics.HTTPResponseDuration: {"status"},
	metrics.HTTPDownloadBytes:    {"status"},
}

// Backend buffers observations in Prometheus collectors.
type Backend struct {
	pusher *push.Pusher

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

// NewBackend registers all known collectors and prepares a pusher for
// gatewayURL under jobName.
func NewBackend(jobName, gatewayURL string) (*Backend, error) {
	if strings.TrimSpace(gatewayURL) == "" {
		return nil, fmt.Errorf("prompush: empty pushgateway url")
	}
	if strings.TrimSpace(jobName) == "" {
		jobName = "hfexport"
	}

	reg := prometheus.NewRegistry()
	b := &Backend{
		counters:   make(map[string]*prometheus.CounterVec, len(counterLabels)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histogramLabels)),
	}

	for name, labels := range counterLabels {
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: helpFor(name)}, labels)
		if err := reg.Register(cv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.counters[name] = cv
	}
	for name, labels := range histogramLabels {
		buckets := prometheus.DefBuckets
		if name == metrics.HTTPDownloadBytes {
			buckets = prometheus.ExponentialBuckets(1024, 4, 10)
		}
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: helpFor(name), Buckets: buckets}, labels)
		if err := reg.Register(hv); err != nil {
			return nil, fmt.Errorf("prompush: register %s: %w", name, err)
		}
		b.histograms[name] = hv
	}

	b.pusher = push.New(gatewayURL, jobName).Gatherer(reg)
	return b, nil
}

func helpFor(name string) string {
	return strings.ReplaceAll(strings.TrimPrefix(name, "hfexport_"), "_", " ")
}

// labelValues picks values in declared order; missing keys become "unknown".
func labelValues(names []string, labels metrics.Labels) []string {
	out := make([]string, len(names))
	for i, n := range names {
		v := labels[n]
		if v == "" {
			v = "unknown"
		}
		out[i] = v
	}
	return out
}

// IncCounter implements metrics.Backend. Unknown names are ignored.
func (b *Backend) IncCounter(name string, delta float64, labels metrics.Labels) {
	if delta <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	cv, ok := b.counters[name]
	if !ok {
		return
	}
	cv.WithLabelValues(labelValues(counterLabels[name], labels)...).Add(delta)
}

// ObserveHistogram implements metrics.Backend. Unknown names are ignored.
func (b *Backend) ObserveHistogram(name string, value float64, labels metrics.Labels) {
	if value < 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	hv, ok := b.histograms[name]
	if !ok {
		return
	}
	hv.WithLabelValues(labelValues(histogramLabels[name], labels)...).Observe(value)
}

// Flush replaces the job's metric group on the Pushgateway (HTTP PUT).
func (b *Backend) Flush() error {
	if err := b.pusher.Push(); err != nil {
		return fmt.Errorf("prompush: push: %w", err)
	}
	return nil
}

// Close performs a final push.
func (b *Backend) Close() error { return b.Flush() }

var _ metrics.Backend = (*Backend)(nil)
