package status

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hi-liyan/rjob/internal/executor"
)

// Metrics exposes firing counters on a private prometheus registry.
// It implements executor.Metrics so the executor stays decoupled from
// the metrics backend.
type Metrics struct {
	registry *prometheus.Registry
	firings  *prometheus.CounterVec
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// Compile-time interface check.
var _ executor.Metrics = (*Metrics)(nil)

// NewMetrics creates the collectors and registers them.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		firings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rjob_firings_total",
			Help: "Completed firings by job and outcome.",
		}, []string{"job", "outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rjob_attempts_total",
			Help: "Send attempts by job and result (response or transport error).",
		}, []string{"job", "result"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rjob_firing_duration_seconds",
			Help:    "Firing duration from start marker to end marker.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
	m.registry.MustRegister(m.firings, m.attempts, m.duration)
	return m
}

// ObserveFiring implements executor.Metrics.
func (m *Metrics) ObserveFiring(jobName string, outcome executor.Outcome, elapsed time.Duration) {
	m.firings.WithLabelValues(jobName, string(outcome)).Inc()
	m.duration.WithLabelValues(jobName).Observe(elapsed.Seconds())
}

// ObserveAttempt implements executor.Metrics.
func (m *Metrics) ObserveAttempt(jobName string, ok bool) {
	result := "transport_error"
	if ok {
		result = "response"
	}
	m.attempts.WithLabelValues(jobName, result).Inc()
}

// Handler serves the private registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
