// Package kmetrics is the concrete Prometheus-backed implementation of
// state.Collector, grounded on haasonsaas-nexus's observability.Metrics
// (internal/observability/metrics.go): a struct of promauto-registered
// vectors built once and exposed to the scrape endpoint via its own
// registerer, kept outside the state package the way that package keeps
// Metrics outside its agent/channel logic.
package kmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ctxmetab/kernel/state"
)

// PrometheusCollector implements state.Collector.
type PrometheusCollector struct {
	ephemeralPruned     prometheus.Counter
	stageEntered        *prometheus.CounterVec
	stageCircuitBroken  prometheus.Counter
	promotions          prometheus.Counter
	erased              prometheus.Counter
	workingContextSize  prometheus.Histogram
}

// NewPrometheusCollector registers the kernel's counters/histograms against
// reg (pass prometheus.DefaultRegisterer for the global registry).
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		ephemeralPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_ephemeral_pruned_total",
			Help: "Total ephemeral messages removed by TTL expiry.",
		}),
		stageEntered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kernel_stage_entered_total",
			Help: "Total transitions into each pipeline stage.",
		}, []string{"stage"}),
		stageCircuitBroken: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_stage_circuit_broken_total",
			Help: "Total times the stage TTL circuit breaker fired.",
		}),
		promotions: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_promotions_total",
			Help: "Total summaries promoted into permanent context.",
		}),
		erased: factory.NewCounter(prometheus.CounterOpts{
			Name: "kernel_erased_messages_total",
			Help: "Total messages removed by the erase tool.",
		}),
		workingContextSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kernel_working_context_size",
			Help:    "Working context length observed at each BeginLLMCall.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
	}
}

func (c *PrometheusCollector) IncEphemeralPruned(n int) {
	c.ephemeralPruned.Add(float64(n))
}

func (c *PrometheusCollector) IncStageEntered(stage state.Stage) {
	c.stageEntered.WithLabelValues(string(stage)).Inc()
}

func (c *PrometheusCollector) IncStageCircuitBroken() {
	c.stageCircuitBroken.Inc()
}

func (c *PrometheusCollector) IncPromotion() {
	c.promotions.Inc()
}

func (c *PrometheusCollector) IncErase(count int) {
	c.erased.Add(float64(count))
}

func (c *PrometheusCollector) ObserveWorkingContextSize(messages int) {
	c.workingContextSize.Observe(float64(messages))
}
