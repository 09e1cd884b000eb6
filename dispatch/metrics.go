package dispatch

import (
	"net/http"
	"time"

	"github.com/c360studio/contentmesh/envelope"
	"github.com/c360studio/contentmesh/llm"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records dispatch outcomes on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	dispatches      *prometheus.CounterVec
	primaryFailures *prometheus.CounterVec
	duration        *prometheus.HistogramVec
}

// NewMetrics creates and registers the dispatch collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentmesh",
			Name:      "dispatch_total",
			Help:      "Dispatched requests by task kind, provenance and status.",
		}, []string{"kind", "provenance", "status"}),
		primaryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contentmesh",
			Name:      "primary_failures_total",
			Help:      "Primary provider failures by reason.",
		}, []string{"reason"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contentmesh",
			Name:      "dispatch_duration_seconds",
			Help:      "Time from request receipt to envelope.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 2.5, 5, 10, 20, 30, 45},
		}, []string{"kind"}),
	}
	m.registry.MustRegister(m.dispatches, m.primaryFailures, m.duration)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) observe(env *envelope.Envelope, elapsed time.Duration) {
	if m == nil {
		return
	}
	kind := string(env.Kind)
	if kind == "" {
		kind = "unknown"
	}
	provenance := string(env.Provenance)
	if provenance == "" {
		provenance = "none"
	}
	m.dispatches.WithLabelValues(kind, provenance, string(env.Status)).Inc()
	m.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

func (m *Metrics) primaryFailure(reason llm.FailureReason) {
	if m == nil {
		return
	}
	m.primaryFailures.WithLabelValues(string(reason)).Inc()
}
