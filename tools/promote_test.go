package tools

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
)

func TestPromoteTool_WrongStage_ReturnsNotPromoted(t *testing.T) {
	k := newTestKernel()
	tool := NewPromoteTool(k)

	result := tool.Execute(nil, json.RawMessage(`{"reason":"keep it"}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, false, payload["promoted"])
	assert.Contains(t, payload["error"], "outline")
}

func TestPromoteTool_NoPendingSummary(t *testing.T) {
	k := newTestKernel()
	k.RequestSummary()
	tool := NewPromoteTool(k)

	result := tool.Execute(nil, json.RawMessage(`{"reason":"keep it"}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, false, payload["promoted"])
}

func TestPromoteTool_Success(t *testing.T) {
	k := newTestKernel()
	k.RequestSummary()
	summary := schema.NewTextMessage(schema.RoleFunction, "config.yaml has 3 top-level keys")
	k.Append(summary)
	k.MarkSummaryCandidate(summary.ID)

	tool := NewPromoteTool(k)
	result := tool.Execute(nil, json.RawMessage(`{"reason":"keep it"}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, true, payload["promoted"])
	assert.Equal(t, summary.Text(), payload["summary_preview"])
}

func TestPromoteTool_ExceedsCap(t *testing.T) {
	k := state.New(
		schema.NewTextMessage(schema.RoleSystem, "sys"),
		schema.NewTextMessage(schema.RoleUser, "hi"),
		state.WithConfig(state.Config{ImportStageTTLCalls: 2, ImportCapChars: 5, MaxLLMCallsPerRun: 16}),
	)
	k.RequestSummary()
	summary := schema.NewTextMessage(schema.RoleFunction, "this summary is far longer than the cap")
	k.Append(summary)
	k.MarkSummaryCandidate(summary.ID)

	tool := NewPromoteTool(k)
	result := tool.Execute(nil, json.RawMessage(`{"reason":"keep it"}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, false, payload["promoted"])
}

func TestSummarizeTool_AlwaysRequests(t *testing.T) {
	tool := NewSummarizeTool()
	result := tool.Execute(nil, json.RawMessage(`{"reason":"too much detail"}`))
	require.False(t, result.IsError())

	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, true, payload["requested"])
}
