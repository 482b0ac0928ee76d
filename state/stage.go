package state

// Stage is the kernel's position in the mandatory reintegration pipeline
// (spec.md §3): idle → outline → select → summarize → idle (on promotion).
type Stage string

const (
	StageIdle      Stage = "idle"
	StageOutline   Stage = "outline"
	StageSelect    Stage = "select"
	StageSummarize Stage = "summarize"
)

// EphemeralKind classifies why a message is tracked for decay.
type EphemeralKind string

const (
	KindAuto    EphemeralKind = "auto"
	KindTool    EphemeralKind = "tool"
	KindSummary EphemeralKind = "summary"
	KindPolicy  EphemeralKind = "policy"
)
