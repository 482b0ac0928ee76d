package state

// Config holds the kernel's recognized tunables (spec.md §3, "Kernel
// configuration").
type Config struct {
	// ImportStageTTLCalls is the max number of turns a non-idle stage may
	// persist before the TTL circuit breaker fires.
	ImportStageTTLCalls int
	// ImportCapChars is the truncation cap applied to tool outputs and
	// summary text before they re-enter the working context.
	ImportCapChars int
	// MaxLLMCallsPerRun bounds how many LLM calls one kernel invocation may
	// make; when it is used up the loop appends a budget_exhausted
	// policy_notice and exits (spec.md §4.F/§9).
	MaxLLMCallsPerRun int
}

// DefaultConfig mirrors the teacher's defaultConfig() pattern
// (context/engine/engine.go) with the defaults spec.md names explicitly.
func DefaultConfig() Config {
	return Config{
		ImportStageTTLCalls: 2,
		ImportCapChars:      1200,
		MaxLLMCallsPerRun:   16,
	}
}

// Option configures a Kernel at construction time.
type Option func(*Kernel)

// WithConfig overrides the default Config.
func WithConfig(cfg Config) Option {
	return func(k *Kernel) { k.cfg = cfg }
}

// WithJournalSink installs a JournalSink other than the in-memory default.
func WithJournalSink(sink JournalSink) Option {
	return func(k *Kernel) { k.journalSink = sink }
}

// WithMetrics installs a Collector other than the no-op default.
func WithMetrics(m Collector) Option {
	return func(k *Kernel) {
		if m != nil {
			k.metrics = m
		}
	}
}
