// Package metrics backs the core's abstract observability sink with real
// Prometheus client instrumentation, lazily creating one handle per
// (name, label-set) pair the way arachne's original PrometheusMetrics cache
// did, without wiring any exporter (scraping/pushing is a collaborator
// concern layered on top of a Sink).
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencyBuckets mirrors arachne's DEFAULT_LATENCY_BUCKETS.
var DefaultLatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

// Counter, Gauge, and Histogram are the minimal instrumentation surfaces the
// core depends on.
type Counter interface{ Inc(n float64) }
type Gauge interface{ Set(v float64) }
type Histogram interface{ Observe(v float64) }

// Sink is the abstract observability metrics surface the core emits
// through; exporters (HTTP scrape endpoints, push gateways) are
// collaborators layered on top of a concrete Sink.
type Sink interface {
	Counter(name string, labels map[string]string) Counter
	Gauge(name string, labels map[string]string) Gauge
	Histogram(name string, labels map[string]string) Histogram
}

// PromSink is the default Sink, backed by a dedicated Prometheus registry
// using the runtime's stable metric names.
type PromSink struct {
	namespace string
	registry  *prometheus.Registry
	buckets   []float64

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

// NewPromSink builds a PromSink. namespace prefixes every metric name
// (default "arachne" when empty).
func NewPromSink(namespace string) *PromSink {
	if namespace == "" {
		namespace = "arachne"
	}
	return &PromSink{
		namespace:  namespace,
		registry:   prometheus.NewRegistry(),
		buckets:    DefaultLatencyBuckets,
		counters:   map[string]*prometheus.CounterVec{},
		gauges:     map[string]*prometheus.GaugeVec{},
		histograms: map[string]*prometheus.HistogramVec{},
	}
}

// Registry exposes the underlying Prometheus registry for collaborators
// that want to wire a scrape exporter; the core never calls this itself.
func (s *PromSink) Registry() *prometheus.Registry { return s.registry }

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (s *PromSink) Counter(name string, labels map[string]string) Counter {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := labelNames(labels)
	key := vecKey(name, names)
	vec, ok := s.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      name,
		}, names)
		s.registry.MustRegister(vec)
		s.counters[key] = vec
	}
	return vec.With(labels)
}

func (s *PromSink) Gauge(name string, labels map[string]string) Gauge {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := labelNames(labels)
	key := vecKey(name, names)
	vec, ok := s.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      name,
		}, names)
		s.registry.MustRegister(vec)
		s.gauges[key] = vec
	}
	return vec.With(labels)
}

func (s *PromSink) Histogram(name string, labels map[string]string) Histogram {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := labelNames(labels)
	key := vecKey(name, names)
	vec, ok := s.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      name,
			Buckets:   s.buckets,
		}, names)
		s.registry.MustRegister(vec)
		s.histograms[key] = vec
	}
	return vec.With(labels)
}

func vecKey(name string, labelNames []string) string {
	return name + "{" + strings.Join(labelNames, ",") + "}"
}

// Noop is a Sink that discards every observation; useful for tests that
// don't care about metrics.
type Noop struct{}

type noopCounter struct{}
type noopGauge struct{}
type noopHistogram struct{}

func (noopCounter) Inc(float64)       {}
func (noopGauge) Set(float64)         {}
func (noopHistogram) Observe(float64) {}

func (Noop) Counter(string, map[string]string) Counter     { return noopCounter{} }
func (Noop) Gauge(string, map[string]string) Gauge         { return noopGauge{} }
func (Noop) Histogram(string, map[string]string) Histogram { return noopHistogram{} }
