// Package metrics defines the Prometheus instrumentation for the service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the service collectors.
type Metrics struct {
	registry *prometheus.Registry

	ActiveCalls   prometheus.Gauge
	Transitions   *prometheus.CounterVec
	FlowErrors    *prometheus.CounterVec
	DriverLatency prometheus.Histogram
	CallDuration  prometheus.Histogram
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveCalls: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "loanvoice",
			Name:      "active_calls",
			Help:      "Number of calls currently connected.",
		}),
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanvoice",
			Name:      "flow_transitions_total",
			Help:      "Flow transitions invoked, by source node and transition name.",
		}, []string{"node", "transition"}),
		FlowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loanvoice",
			Name:      "flow_errors_total",
			Help:      "Flow engine errors, by kind.",
		}, []string{"kind"}),
		DriverLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loanvoice",
			Name:      "driver_decision_seconds",
			Help:      "Latency of LLM driver decisions.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}),
		CallDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "loanvoice",
			Name:      "call_duration_seconds",
			Help:      "Duration of completed calls.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
