// Package metrics exposes Prometheus collectors for XOP executions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sirosfoundation/go-xop/pkg/xop"
)

const namespace = "xop"

// Outcome label values
const (
	OutcomeSuccess       = "success"
	OutcomeInputError    = "input_error"
	OutcomeInternalError = "internal_error"
)

// Metrics holds the collectors on a dedicated registry. It implements
// xop.Observer.
type Metrics struct {
	registry   *prometheus.Registry
	executions *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	requests   *prometheus.CounterVec
}

// New creates the collectors and registers them together with the Go and
// process collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Number of handler executions by action and outcome.",
		}, []string{"action", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Handler execution time by action.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"action"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Number of HTTP requests by status code.",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		m.executions,
		m.duration,
		m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveExecution records one handler execution
func (m *Metrics) ObserveExecution(action xop.Action, err error, elapsed time.Duration) {
	name := action.OutputName()
	m.executions.WithLabelValues(name, Outcome(err)).Inc()
	m.duration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Outcome classifies an execution error
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case xop.IsInputError(err):
		return OutcomeInputError
	default:
		return OutcomeInternalError
	}
}

// InstrumentHandler counts responses of next by status code
func (m *Metrics) InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerCounter(m.requests, next)
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
