package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/schema"
)

func newTestKernel(opts ...Option) *Kernel {
	system := schema.NewTextMessage(schema.RoleSystem, "you are a careful assistant")
	user := schema.NewTextMessage(schema.RoleUser, "help me read config.yaml")
	return New(system, user, opts...)
}

func TestBeginLLMCall_PinsUserAndSystem(t *testing.T) {
	k := newTestKernel()

	ctx := k.BeginLLMCall()
	require.Len(t, ctx, 2)
	assert.Equal(t, schema.RoleSystem, ctx[0].Role)
	assert.Equal(t, schema.RoleUser, ctx[1].Role)

	// A second call must not have pruned the pinned roles.
	ctx = k.BeginLLMCall()
	assert.Len(t, ctx, 2)
}

func TestBeginLLMCall_PrunesEphemeralAfterOneCall(t *testing.T) {
	k := newTestKernel()
	k.BeginLLMCall() // callIndex = 1

	assistant := schema.NewTextMessage(schema.RoleAssistant, "reading the file now")
	k.Append(assistant)

	// On the next sweep the assistant message is freshly marked ephemeral
	// with ExpiresAtCall = callIndex+1 = 3, so it survives this call and the
	// next one (an entry is pruned only once ExpiresAtCall < callIndex)...
	ctx := k.BeginLLMCall() // callIndex = 2
	found := false
	for _, m := range ctx {
		if m.ID == assistant.ID {
			found = true
		}
	}
	assert.True(t, found, "assistant message should still be present immediately after being marked ephemeral")

	// ...but is pruned on the call after that, replaced with a policy_notice.
	k.BeginLLMCall()       // callIndex = 3; 3 < 3 is false, still present
	ctx = k.BeginLLMCall() // callIndex = 4; 3 < 4, pruned
	found = false
	sawNotice := false
	for _, m := range ctx {
		if m.ID == assistant.ID {
			found = true
		}
		if m.Role == schema.RoleFunction && m.Name == "policy_notice" {
			sawNotice = true
		}
	}
	assert.False(t, found, "assistant message should have expired")
	assert.True(t, sawNotice, "expiry should emit a policy_notice function message")
}

func TestPromoteLastSummary_SurvivesPruning(t *testing.T) {
	k := newTestKernel()
	k.BeginLLMCall()

	k.RequestSummary()
	assert.Equal(t, StageSummarize, k.Stage())

	summary := schema.NewTextMessage(schema.RoleFunction, "config.yaml has 3 top-level keys: db, cache, log")
	k.Append(summary)
	k.MarkSummaryCandidate(summary.ID)

	id, ok := k.PromoteLastSummary()
	require.True(t, ok)
	assert.Equal(t, summary.ID, id)
	assert.Equal(t, StageIdle, k.Stage())

	// Advance many calls; the promoted summary must never expire.
	for i := 0; i < 10; i++ {
		k.BeginLLMCall()
	}
	found := false
	for _, m := range k.WorkingContext() {
		if m.ID == summary.ID {
			found = true
		}
	}
	assert.True(t, found, "promoted summary must survive indefinitely")
}

func TestStageTTLCircuitBreaker(t *testing.T) {
	k := newTestKernel(WithConfig(Config{ImportStageTTLCalls: 2, ImportCapChars: 1200, MaxLLMCallsPerRun: 16}))

	k.BeginLLMCall() // callIndex = 1, still idle
	k.SetImportStage(StageOutline)

	outline := schema.NewFunctionMessage("outline", "", "config.yaml: db, cache, log")
	k.Append(outline)

	k.BeginLLMCall() // callIndex = 2; 2-1 >= 2 is false, stage survives
	assert.Equal(t, StageOutline, k.Stage())

	ctx := k.BeginLLMCall() // callIndex = 3; 3-1 >= 2, breaker fires
	assert.Equal(t, StageIdle, k.Stage())
	for _, m := range ctx {
		assert.NotEqual(t, outline.ID, m.ID, "circuit breaker must wipe the stalled outline")
	}
	require.Len(t, ctx, 2, "only the pinned user/system messages should remain")
}

func TestReplaceWithSummary_KeepsOnlyUserSystemPromotedAndSummary(t *testing.T) {
	k := newTestKernel()
	k.BeginLLMCall()

	a := schema.NewFunctionMessage("load", "", "first chunk")
	b := schema.NewFunctionMessage("load", "", "second chunk")
	k.Append(a)
	k.Append(b)
	k.MarkEphemeral(a.ID, KindTool, 1)
	k.MarkEphemeral(b.ID, KindTool, 1)

	kept := schema.NewTextMessage(schema.RoleAssistant, "earlier promoted note")
	k.Append(kept)
	k.MarkSummaryCandidate(kept.ID)
	_, ok := k.PromoteLastSummary()
	require.True(t, ok)

	summary := schema.NewTextMessage(schema.RoleFunction, "merged summary of both chunks")
	k.ReplaceWithSummary(summary)

	ctx := k.WorkingContext()
	ids := make(map[schema.MessageID]bool, len(ctx))
	for _, m := range ctx {
		ids[m.ID] = true
	}
	assert.NotContains(t, ids, a.ID)
	assert.NotContains(t, ids, b.ID)
	assert.Contains(t, ids, kept.ID, "promoted messages survive replace_with_summary")
	assert.Contains(t, ids, summary.ID)

	assert.NotContains(t, k.ephemeral, a.ID)
	assert.NotContains(t, k.ephemeral, b.ID)
}

func TestRecordTurn_WritesJournal(t *testing.T) {
	k := newTestKernel()
	ctx := context.Background()

	reply := schema.NewTextMessage(schema.RoleAssistant, "done")
	err := k.RecordTurn(ctx, k.WorkingContext(), []schema.Message{reply})
	require.NoError(t, err)

	records, err := k.Journal().Records(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0].Responses, 1)
	assert.Equal(t, reply.Text(), records[0].Responses[0].Text())
}

func TestReset_ClearsEverything(t *testing.T) {
	k := newTestKernel()
	k.BeginLLMCall()
	k.SetImportStage(StageSelect)
	k.Append(schema.NewFunctionMessage("select", "", "picked node /db/host"))

	newSystem := schema.NewTextMessage(schema.RoleSystem, "fresh run")
	newUser := schema.NewTextMessage(schema.RoleUser, "start over")
	k.Reset(newSystem, newUser)

	assert.Equal(t, StageIdle, k.Stage())
	assert.Equal(t, 0, k.CallIndex())
	assert.Len(t, k.WorkingContext(), 2)
}
