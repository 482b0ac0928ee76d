package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
)

func newTestKernel() *state.Kernel {
	system := schema.NewTextMessage(schema.RoleSystem, "you are a careful assistant")
	user := schema.NewTextMessage(schema.RoleUser, "help me read config.yaml")
	return state.New(system, user)
}

func TestEraseTool_EmptyTargets_ReturnsHelp(t *testing.T) {
	k := newTestKernel()
	k.Append(schema.NewTextMessage(schema.RoleAssistant, "reading now"))
	tool := NewEraseTool(k)

	result := tool.Execute(nil, json.RawMessage(`{}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, true, payload["help"])
	recent := payload["recent"].([]any)
	require.LessOrEqual(t, len(recent), 6)
}

func TestEraseTool_ByIndex(t *testing.T) {
	k := newTestKernel()
	assistant := schema.NewTextMessage(schema.RoleAssistant, "stale reply")
	k.Append(assistant)
	tool := NewEraseTool(k)

	input, _ := json.Marshal(map[string]any{
		"targets": []map[string]any{{"index": 2}},
		"reason":  "stale",
	})
	result := tool.Execute(nil, input)
	require.False(t, result.IsError())

	for _, m := range k.WorkingContext() {
		assert.NotEqual(t, assistant.ID, m.ID)
	}
}

func TestEraseTool_RoleNotErasable_SkipsSystem(t *testing.T) {
	k := newTestKernel()
	tool := NewEraseTool(k)

	input, _ := json.Marshal(map[string]any{
		"targets": []map[string]any{{"index": 0}},
		"reason":  "try to drop system",
	})
	result := tool.Execute(nil, input)
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	skipped := payload["skipped"].([]any)
	require.Len(t, skipped, 1)
	assert.Equal(t, float64(0), skipped[0])

	ctx := k.WorkingContext()
	require.Len(t, ctx, 2, "system message must remain")
	assert.Equal(t, schema.RoleSystem, ctx[0].Role)
}

func TestEraseTool_TurnOrderRepair_InsertsSyntheticUser(t *testing.T) {
	k := newTestKernel()
	assistant := schema.NewTextMessage(schema.RoleAssistant, "reply")
	k.Append(assistant)
	tool := NewEraseTool(k)

	// erase the user message at index 1 (system=0, user=1, assistant=2):
	// the turn now starts with the assistant reply, which repair must fix.
	input, _ := json.Marshal(map[string]any{
		"targets": []map[string]any{{"index": 1}},
		"reason":  "drop original user turn",
	})
	result := tool.Execute(nil, input)
	require.False(t, result.IsError())

	ctx := k.WorkingContext()
	require.Len(t, ctx, 3)
	assert.Equal(t, schema.RoleSystem, ctx[0].Role)
	assert.Equal(t, schema.RoleUser, ctx[1].Role)
	assert.Equal(t, "[deleted]", ctx[1].Text())
	assert.Equal(t, schema.RoleAssistant, ctx[2].Role)
}

func TestEraseTool_ByRoleLast(t *testing.T) {
	k := newTestKernel()
	k.Append(schema.NewTextMessage(schema.RoleAssistant, "first"))
	k.Append(schema.NewTextMessage(schema.RoleAssistant, "second"))
	third := schema.NewTextMessage(schema.RoleAssistant, "third")
	k.Append(third)
	tool := NewEraseTool(k)

	input, _ := json.Marshal(map[string]any{
		"targets": []map[string]any{{"role": "assistant", "last": 1}},
		"reason":  "drop most recent assistant turn",
	})
	result := tool.Execute(nil, input)
	require.False(t, result.IsError())

	for _, m := range k.WorkingContext() {
		assert.NotEqual(t, third.ID, m.ID)
	}
}
