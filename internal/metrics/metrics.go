// Package metrics exposes the Prometheus collectors tracking executor
// throughput, latency, and sandbox construction outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the collectors a single process registers once and
// threads through every execution.
type Registry struct {
	ExecutionTotal       *prometheus.CounterVec
	ExecutionDuration    *prometheus.HistogramVec
	SandboxBuildTotal    *prometheus.CounterVec
}

// New registers the collectors against reg and returns the bundle. Pass
// prometheus.NewRegistry() in tests to avoid collisions with the global
// default registry; pass prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		ExecutionTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scriptbox_execution_total",
			Help: "Total script executions, partitioned by terminal outcome.",
		}, []string{"outcome"}),
		ExecutionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scriptbox_execution_duration_seconds",
			Help:    "Wall-clock duration of execute() calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		SandboxBuildTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scriptbox_sandbox_build_total",
			Help: "Total sandbox construction attempts, partitioned by result.",
		}, []string{"result"}),
	}
}

// ObserveExecution records one execute() call's outcome and duration.
func (r *Registry) ObserveExecution(outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.ExecutionTotal.WithLabelValues(outcome).Inc()
	r.ExecutionDuration.WithLabelValues(outcome).Observe(seconds)
}

// ObserveSandboxBuild records one sandbox build attempt's result.
func (r *Registry) ObserveSandboxBuild(result string) {
	if r == nil {
		return
	}
	r.SandboxBuildTotal.WithLabelValues(result).Inc()
}
