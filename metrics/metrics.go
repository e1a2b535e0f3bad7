// Package metrics exposes the client's counters, gauges and histograms through a
// Prometheus registry. Metrics are created lazily on first use and named
// "<group>_<name>"; the keys of a Dimension become the metric's labels.
package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcx/oldentide-client/log"
)

type metric struct {
	policy    Policy
	labels    []string
	counter   *prometheus.CounterVec
	gauge     *prometheus.GaugeVec
	histogram *prometheus.HistogramVec
}

type registry struct {
	mu      sync.Mutex
	reg     *prometheus.Registry
	metrics map[string]*metric
	// names already reported as misused
	misused map[string]struct{}
}

func newRegistry() *registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &registry{
		reg:     reg,
		metrics: make(map[string]*metric),
		misused: make(map[string]struct{}),
	}
}

var (
	_defaultMu sync.RWMutex
	_default   = newRegistry()
)

func current() *registry {
	_defaultMu.RLock()
	defer _defaultMu.RUnlock()
	return _default
}

// Registry returns the Prometheus registry every helper records into.
func Registry() *prometheus.Registry {
	return current().reg
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	r := current().reg
	return promhttp.HandlerFor(r, promhttp.HandlerOpts{Registry: r})
}

// Reset replaces the registry with an empty one. Intended for tests.
func Reset() {
	_defaultMu.Lock()
	_default = newRegistry()
	_defaultMu.Unlock()
}

// FullName returns the exported name of a metric in group.
func FullName(group, name string) string {
	return sanitize(group) + "_" + sanitize(name)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		default:
			return '_'
		}
	}, s)
}

func labelNames(dim Dimension) []string {
	names := make([]string, 0, len(dim))
	for k := range dim {
		names = append(names, sanitize(k))
	}
	sort.Strings(names)
	return names
}

func labelValues(dim Dimension) prometheus.Labels {
	labels := make(prometheus.Labels, len(dim))
	for k, v := range dim {
		labels[sanitize(k)] = v
	}
	return labels
}

func sameLabels(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// get returns the metric registered under fullName, creating it on first use.
// A metric keeps the policy and label set it was created with.
func (r *registry) get(fullName string, policy Policy, dim Dimension) (*metric, error) {
	labels := labelNames(dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	if m, ok := r.metrics[fullName]; ok {
		if m.policy != policy {
			return nil, fmt.Errorf("metrics: %s registered as %s, used as %s", fullName, m.policy, policy)
		}
		if !sameLabels(m.labels, labels) {
			return nil, fmt.Errorf("metrics: %s registered with labels %v, used with %v", fullName, m.labels, labels)
		}
		return m, nil
	}

	m := &metric{policy: policy, labels: labels}
	var c prometheus.Collector
	switch policy {
	case PolicySum:
		m.counter = prometheus.NewCounterVec(prometheus.CounterOpts{Name: fullName, Help: fullName}, labels)
		c = m.counter
	case PolicySet:
		m.gauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: fullName, Help: fullName}, labels)
		c = m.gauge
	case PolicyHistogram, PolicyStopwatch:
		m.histogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fullName,
			Help:    fullName,
			Buckets: prometheus.DefBuckets,
		}, labels)
		c = m.histogram
	default:
		return nil, fmt.Errorf("metrics: unsupported policy %s", policy)
	}

	if err := r.reg.Register(c); err != nil {
		return nil, fmt.Errorf("metrics: register %s: %w", fullName, err)
	}
	r.metrics[fullName] = m
	return m, nil
}

// firstMisuse reports whether fullName is being reported as misused for the first time.
func (r *registry) firstMisuse(fullName string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, seen := r.misused[fullName]; seen {
		return false
	}
	r.misused[fullName] = struct{}{}
	return true
}

func record(group, name string, policy Policy, value Value, dim Dimension) {
	r := current()
	fullName := FullName(group, name)
	m, err := r.get(fullName, policy, dim)
	if err != nil {
		// a misused metric must never break the caller
		if r.firstMisuse(fullName) {
			log.Debug().Str("metric", fullName).Err(err).Msg("metric update dropped")
		}
		return
	}
	labels := labelValues(dim)
	switch policy {
	case PolicySum:
		m.counter.With(labels).Add(float64(value))
	case PolicySet:
		m.gauge.With(labels).Set(float64(value))
	case PolicyHistogram, PolicyStopwatch:
		m.histogram.With(labels).Observe(float64(value))
	}
}

// IncrCounterWithGroup adds value to a counter. Negative values are ignored.
func IncrCounterWithGroup(group, name string, value Value) {
	IncrCounterWithDimGroup(group, name, value, nil)
}

// IncrCounterWithDimGroup adds value to the counter series selected by dim.
func IncrCounterWithDimGroup(group, name string, value Value, dim Dimension) {
	if value < 0 {
		return
	}
	record(group, name, PolicySum, value, dim)
}

// UpdateGaugeWithGroup sets a gauge.
func UpdateGaugeWithGroup(group, name string, value Value) {
	record(group, name, PolicySet, value, nil)
}

func UpdateGaugeWithDimGroup(group, name string, value Value, dim Dimension) {
	record(group, name, PolicySet, value, dim)
}

// ObserveWithGroup records value in a histogram.
func ObserveWithGroup(group, name string, value Value) {
	record(group, name, PolicyHistogram, value, nil)
}

// RecordStopwatchWithGroup records d, in seconds, in a histogram.
func RecordStopwatchWithGroup(group, name string, d time.Duration) {
	record(group, name, PolicyStopwatch, Value(d.Seconds()), nil)
}

func RecordStopwatchWithDimGroup(group, name string, d time.Duration, dim Dimension) {
	record(group, name, PolicyStopwatch, Value(d.Seconds()), dim)
}
