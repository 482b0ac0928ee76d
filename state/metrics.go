package state

// Collector receives kernel-lifecycle counters. The kernel depends only on
// this narrow interface so that the concrete Prometheus wiring
// (kmetrics.PrometheusCollector) stays outside the state package, the same
// separation the teacher draws between context/engine and its callers.
type Collector interface {
	IncEphemeralPruned(n int)
	IncStageEntered(stage Stage)
	IncStageCircuitBroken()
	IncPromotion()
	IncErase(count int)
	ObserveWorkingContextSize(messages int)
}

// noopCollector is the default Collector when none is supplied via
// WithMetrics.
type noopCollector struct{}

func (noopCollector) IncEphemeralPruned(int)             {}
func (noopCollector) IncStageEntered(Stage)              {}
func (noopCollector) IncStageCircuitBroken()             {}
func (noopCollector) IncPromotion()                      {}
func (noopCollector) IncErase(int)                       {}
func (noopCollector) ObserveWorkingContextSize(int)      {}
