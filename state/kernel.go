// Package state implements the kernel's stateful core: the working
// context, the ephemeral/promoted bookkeeping, the mandatory
// outline→select→summarize→load stage machine, and the TTL circuit
// breaker that reclaims a stalled import (spec.md §3, §4.B, §8).
//
// It is grounded on the teacher's context/engine package (engine.go,
// state.go, checkpoint.go), generalized from a token-budget memory
// manager into the character-length, stage-gated kernel spec.md describes.
package state

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ctxmetab/kernel/schema"
)

// EphemeralEntry tracks why and until when a message survives.
type EphemeralEntry struct {
	Kind          EphemeralKind
	ExpiresAtCall int
}

// Kernel is the stateful core of one conversation. It is not safe to share
// across concurrent conversations; one Kernel per in-flight run, matching
// the teacher's per-thread checkpoint keying (context/engine/checkpoint.go).
type Kernel struct {
	mu sync.Mutex

	cfg         Config
	journalSink JournalSink
	metrics     Collector

	workingContext []schema.Message
	ephemeral      map[schema.MessageID]EphemeralEntry
	promoted       map[schema.MessageID]struct{}
	lastSummary    schema.MessageID
	hasLastSummary bool

	stage          Stage
	stageStartedAt int

	callIndex int
}

// New constructs a Kernel seeded with the user's opening message and an
// optional system message, the way the teacher's NewEngine seeds its
// working set from the initial prompt.
func New(system, user schema.Message, opts ...Option) *Kernel {
	k := &Kernel{
		cfg:         DefaultConfig(),
		journalSink: NewInMemoryJournal(0),
		metrics:     noopCollector{},
		ephemeral:   make(map[schema.MessageID]EphemeralEntry),
		promoted:    make(map[schema.MessageID]struct{}),
		stage:       StageIdle,
	}
	for _, opt := range opts {
		opt(k)
	}
	if system.ID != "" {
		k.workingContext = append(k.workingContext, system)
	}
	k.workingContext = append(k.workingContext, user)
	return k
}

// WorkingContext returns a defensive copy of the live context handed to the
// transport on the next LLM call.
func (k *Kernel) WorkingContext() []schema.Message {
	k.mu.Lock()
	defer k.mu.Unlock()
	return cloneMessages(k.workingContext)
}

// Stage reports the kernel's current pipeline position.
func (k *Kernel) Stage() Stage {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stage
}

// CallIndex reports how many BeginLLMCall invocations have occurred.
func (k *Kernel) CallIndex() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.callIndex
}

// Journal exposes the configured audit sink for export tools.
func (k *Kernel) Journal() JournalSink {
	return k.journalSink
}

// Config exposes the kernel's tunables, read-only, for tools that need to
// check caps (e.g. the promote tool's cap check on the pending summary).
func (k *Kernel) Config() Config {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cfg
}

// PeekSummaryCandidate returns the message marked by MarkSummaryCandidate,
// if one is pending and still present in the working context.
func (k *Kernel) PeekSummaryCandidate() (schema.Message, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.hasLastSummary {
		return schema.Message{}, false
	}
	for _, m := range k.workingContext {
		if m.ID == k.lastSummary {
			return m.Clone(), true
		}
	}
	return schema.Message{}, false
}

// Append adds a message to the working context outside the ephemeral
// machinery (used for assistant replies and function results within a
// turn, before the next BeginLLMCall sweep runs).
func (k *Kernel) Append(msg schema.Message) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.workingContext = append(k.workingContext, msg)
}

// ReplaceWorkingContext overwrites the working context wholesale, the hook
// the erase tool uses after it resolves targets and repairs turn order
// (spec.md §4.C: "mutate the working context in place; notify the kernel").
func (k *Kernel) ReplaceWorkingContext(msgs []schema.Message) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.workingContext = msgs
}

// MarkErased drops bookkeeping (ephemeral entries, promotion) for messages
// the erase tool removed, so a stale entry can't resurrect a pruned ID.
func (k *Kernel) MarkErased(ids []schema.MessageID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, id := range ids {
		delete(k.ephemeral, id)
		delete(k.promoted, id)
		if k.hasLastSummary && k.lastSummary == id {
			k.hasLastSummary = false
		}
	}
	k.metrics.IncErase(len(ids))
}

// BeginLLMCall advances the call index, applies the TTL circuit breaker if
// the current stage has overstayed, marks newly-introduced non-pinned
// messages ephemeral, and prunes anything whose TTL has lapsed. It returns
// the context to send on this call.
func (k *Kernel) BeginLLMCall() []schema.Message {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.callIndex++

	if k.stage != StageIdle && k.callIndex-k.stageStartedAt >= k.cfg.ImportStageTTLCalls {
		k.circuitBreakLocked()
	}

	for _, msg := range k.workingContext {
		if msg.Role == schema.RoleUser || msg.Role == schema.RoleSystem {
			continue
		}
		if _, pinned := k.promoted[msg.ID]; pinned {
			continue
		}
		if _, tracked := k.ephemeral[msg.ID]; tracked {
			continue
		}
		k.ephemeral[msg.ID] = EphemeralEntry{Kind: KindAuto, ExpiresAtCall: k.callIndex + 1}
	}

	expired := k.prunedLocked()
	if expired > 0 {
		k.metrics.IncEphemeralPruned(expired)
		notice := schema.NewFunctionMessage("policy_notice", "", "")
		notice.SetExtra("expired_entries", expired)
		notice.SetExtra("message", noticeText(expired))
		k.markEphemeralLocked(notice.ID, KindPolicy, k.callIndex+1)
		k.workingContext = append(k.workingContext, notice)
	}

	k.metrics.ObserveWorkingContextSize(len(k.workingContext))
	return cloneMessages(k.workingContext)
}

// circuitBreakLocked wipes everything but the pinned user/system messages
// and resets the stage to idle (spec.md §4.B, §8: "a stalled import must
// not starve the kernel forever"). Caller holds k.mu.
func (k *Kernel) circuitBreakLocked() {
	kept := make([]schema.Message, 0, len(k.workingContext))
	for _, msg := range k.workingContext {
		if msg.Role == schema.RoleUser || msg.Role == schema.RoleSystem {
			kept = append(kept, msg)
		}
	}
	k.workingContext = kept
	k.ephemeral = make(map[schema.MessageID]EphemeralEntry)
	k.promoted = make(map[schema.MessageID]struct{})
	k.hasLastSummary = false
	k.stage = StageIdle
	k.stageStartedAt = k.callIndex
	k.metrics.IncStageCircuitBroken()
}

// prunedLocked removes every ephemeral entry whose TTL has lapsed and
// reports how many were removed. Caller holds k.mu.
func (k *Kernel) prunedLocked() int {
	if len(k.ephemeral) == 0 {
		return 0
	}
	expiredIDs := make(map[schema.MessageID]struct{})
	for id, entry := range k.ephemeral {
		if entry.ExpiresAtCall < k.callIndex {
			expiredIDs[id] = struct{}{}
		}
	}
	if len(expiredIDs) == 0 {
		return 0
	}

	kept := make([]schema.Message, 0, len(k.workingContext))
	for _, msg := range k.workingContext {
		if _, gone := expiredIDs[msg.ID]; gone {
			if k.hasLastSummary && msg.ID == k.lastSummary {
				k.hasLastSummary = false
				if k.stage == StageSummarize {
					k.stage = StageIdle
					k.stageStartedAt = k.callIndex
				}
			}
			continue
		}
		kept = append(kept, msg)
	}
	k.workingContext = kept
	for id := range expiredIDs {
		delete(k.ephemeral, id)
	}
	return len(expiredIDs)
}

func noticeText(n int) string {
	if n == 1 {
		return "1 entry expired"
	}
	return strconv.Itoa(n) + " entries expired"
}

// MarkEphemeral tags a message's TTL explicitly (used by tool results: a
// fresh load is ephemeral for exactly one call unless promoted).
func (k *Kernel) MarkEphemeral(id schema.MessageID, kind EphemeralKind, ttlCalls int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.markEphemeralLocked(id, kind, k.callIndex+ttlCalls)
}

func (k *Kernel) markEphemeralLocked(id schema.MessageID, kind EphemeralKind, expiresAtCall int) {
	if _, pinned := k.promoted[id]; pinned {
		return
	}
	k.ephemeral[id] = EphemeralEntry{Kind: kind, ExpiresAtCall: expiresAtCall}
}

// MarkSummaryCandidate records id as the most recent summary produced by
// the summarize stage and marks it ephemeral with ttl=1, kind=summary
// (spec.md §4.B), so it decays on the next call unless promoted first.
func (k *Kernel) MarkSummaryCandidate(id schema.MessageID) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.lastSummary = id
	k.hasLastSummary = true
	k.markEphemeralLocked(id, KindSummary, k.callIndex+1)
}

// PromoteLastSummary pins the most recently produced summary permanently
// into the working context, exempting it from TTL pruning, and returns
// the working context's stage to idle (spec.md §4.B's pipeline exit).
func (k *Kernel) PromoteLastSummary() (schema.MessageID, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if !k.hasLastSummary {
		return "", false
	}
	id := k.lastSummary
	k.promoted[id] = struct{}{}
	delete(k.ephemeral, id)
	k.hasLastSummary = false
	k.stage = StageIdle
	k.stageStartedAt = k.callIndex
	k.metrics.IncPromotion()
	return id, true
}

// ReplaceWithSummary rewrites the working context to keep only {user,
// system} messages plus summary and any promoted messages, wiping
// ephemeral entries outside that kept set (spec.md §4.B). Everything
// else accumulated during the reintegration pipeline — the tool calls
// and results that produced the summary — is dropped. Called alongside
// MarkSummaryCandidate (spec.md §4.F), which then records summary as the
// pending candidate.
func (k *Kernel) ReplaceWithSummary(summary schema.Message) {
	k.mu.Lock()
	defer k.mu.Unlock()

	kept := make([]schema.Message, 0, len(k.workingContext)+1)
	keptIDs := make(map[schema.MessageID]struct{}, len(k.workingContext)+1)
	for _, msg := range k.workingContext {
		_, pinned := k.promoted[msg.ID]
		if msg.Role != schema.RoleUser && msg.Role != schema.RoleSystem && !pinned {
			continue
		}
		kept = append(kept, msg)
		keptIDs[msg.ID] = struct{}{}
	}
	kept = append(kept, summary)
	keptIDs[summary.ID] = struct{}{}
	k.workingContext = kept

	for id := range k.ephemeral {
		if _, ok := keptIDs[id]; !ok {
			delete(k.ephemeral, id)
		}
	}
}

// RequestSummary transitions the stage machine into summarize, recording
// when it started for the TTL breaker.
func (k *Kernel) RequestSummary() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stage = StageSummarize
	k.stageStartedAt = k.callIndex
	k.metrics.IncStageEntered(StageSummarize)
}

// SetImportStage transitions the stage machine (outline or select), the
// stage that loop.stageViolation checks before dispatching the select-class,
// summarize and promote tools.
func (k *Kernel) SetImportStage(stage Stage) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.stage = stage
	k.stageStartedAt = k.callIndex
	k.metrics.IncStageEntered(stage)
}

// RecordTurn pairs the caller's pre-run snapshot of the working context
// (taken before the first BeginLLMCall, per spec.md §4.F step 2) with the
// responses the run produced, and flushes both to the journal sink.
func (k *Kernel) RecordTurn(ctx context.Context, initial, responses []schema.Message) error {
	return k.journalSink.Append(ctx, TurnRecord{
		Initial:    cloneMessages(initial),
		Responses:  cloneMessages(responses),
		RecordedAt: time.Now(),
	})
}

// Reset clears all per-conversation state back to a fresh idle kernel
// seeded with the given messages, used between independent runs that
// reuse the same Kernel value (spec.md §4.F: the loop itself is not
// reentrant, but a caller may reset and reuse one kernel serially).
func (k *Kernel) Reset(system, user schema.Message) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.workingContext = k.workingContext[:0]
	if system.ID != "" {
		k.workingContext = append(k.workingContext, system)
	}
	k.workingContext = append(k.workingContext, user)
	k.ephemeral = make(map[schema.MessageID]EphemeralEntry)
	k.promoted = make(map[schema.MessageID]struct{})
	k.hasLastSummary = false
	k.stage = StageIdle
	k.stageStartedAt = 0
	k.callIndex = 0
	_ = k.journalSink.Reset(context.Background())
}

func cloneMessages(msgs []schema.Message) []schema.Message {
	out := make([]schema.Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
