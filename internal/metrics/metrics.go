// Package metrics exports Prometheus collectors for the retrieval stack.
//
// All recording methods are safe on a nil *Metrics, so components can be
// constructed without instrumentation in tests and tools.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fitness_coach"

// Embedding call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Index build outcomes.
const (
	BuildBuilt   = "built"
	BuildSkipped = "skipped"
	BuildFailed  = "failed"
)

type Metrics struct {
	registry *prometheus.Registry

	retrievalRequests *prometheus.CounterVec
	retrievalLatency  *prometheus.HistogramVec

	embeddingRequests *prometheus.CounterVec
	embeddingLatency  *prometheus.HistogramVec

	indexBuilds *prometheus.CounterVec
	indexSize   prometheus.Gauge

	degradedPlans prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	latencyBuckets := []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		retrievalRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "requests_total",
				Help:      "Retrieval operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		retrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "retrieval",
				Name:      "latency_seconds",
				Help:      "Retrieval operation latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"operation"},
		),
		embeddingRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "requests_total",
				Help:      "Embedding provider calls by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		embeddingLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "embedding",
				Name:      "latency_seconds",
				Help:      "Embedding provider latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"model"},
		),
		indexBuilds: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "builds_total",
				Help:      "Vector index initializations by outcome",
			},
			[]string{"outcome"},
		),
		indexSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "index",
				Name:      "entries",
				Help:      "Number of entries in the vector index",
			},
		),
		degradedPlans: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "planner",
				Name:      "degraded_plans_total",
				Help:      "Workout plans generated without retrieved exercises",
			},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method, route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds",
				Buckets:   latencyBuckets,
			},
			[]string{"method", "route"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.retrievalRequests,
		m.retrievalLatency,
		m.embeddingRequests,
		m.embeddingLatency,
		m.indexBuilds,
		m.indexSize,
		m.degradedPlans,
		m.httpRequests,
		m.httpLatency,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRetrieval records one retrieval operation started at start.
func (m *Metrics) ObserveRetrieval(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := OutcomeSuccess
	if err != nil {
		status = OutcomeError
	}
	m.retrievalRequests.WithLabelValues(operation, status).Inc()
	m.retrievalLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveEmbedding(model, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.embeddingRequests.WithLabelValues(model, outcome).Inc()
	m.embeddingLatency.WithLabelValues(model).Observe(elapsed.Seconds())
}

func (m *Metrics) IndexBuild(outcome string) {
	if m == nil {
		return
	}
	m.indexBuilds.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetIndexSize(n int) {
	if m == nil {
		return
	}
	m.indexSize.Set(float64(n))
}

func (m *Metrics) DegradedPlan() {
	if m == nil {
		return
	}
	m.degradedPlans.Inc()
}

func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
