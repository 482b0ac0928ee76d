package loop

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
	"github.com/ctxmetab/kernel/tools"
	"github.com/ctxmetab/kernel/toolkit"
	"github.com/ctxmetab/kernel/transport"
)

func newLoopKernel(opts ...state.Option) *state.Kernel {
	system := schema.NewTextMessage(schema.RoleSystem, "you are a careful assistant")
	user := schema.NewTextMessage(schema.RoleUser, "what's in config.json?")
	return state.New(system, user, opts...)
}

func newFileToolset(t *testing.T, k *state.Kernel) (*tools.Registry, *tools.Executor, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"db":{"host":"localhost"}}`), 0644))

	shapes := toolkit.NewDefaultRegistry(dir)
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tools.NewDescribeFileTool(shapes)))
	require.NoError(t, reg.Register(tools.NewExtractSectionTool(shapes)))
	require.NoError(t, reg.Register(tools.NewSummarizeTool()))
	require.NoError(t, reg.Register(tools.NewPromoteTool(k)))

	exec := tools.NewExecutor(reg, tools.DefaultExecutorConfig)
	return reg, exec, path
}

func drainToDone(t *testing.T, snapshots <-chan Snapshot, errc <-chan error) Snapshot {
	t.Helper()
	var last Snapshot
	for snapshots != nil || errc != nil {
		select {
		case snap, ok := <-snapshots:
			if !ok {
				snapshots = nil
				continue
			}
			last = snap
		case err, ok := <-errc:
			if !ok {
				errc = nil
				continue
			}
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("loop run timed out")
		}
	}
	return last
}

func TestLoop_StageGating_ExtractSectionBeforeOutline(t *testing.T) {
	k := newLoopKernel()
	reg, exec, path := newFileToolset(t, k)
	defer exec.Stop()

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		{ToolName: "extract_section", ToolArgs: `{"path":"` + path + `","selector":"db.host"}`},
		{Text: "never mind"},
	}}

	l := New(k, tr, reg, exec, DefaultConfig())
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	require.Len(t, snap.Response, 3)
	violation := snap.Response[1]
	assert.Equal(t, schema.RoleFunction, violation.Role)
	errVal, _ := violation.Extra["error"].(string)
	assert.Equal(t, "Reintegration requires outline → select → summarize → load.", errVal)
}

func TestLoop_PipelineHappyPath_ToSummaryCandidate(t *testing.T) {
	k := newLoopKernel()
	reg, exec, path := newFileToolset(t, k)
	defer exec.Stop()

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		{ToolName: "describe_file", ToolArgs: `{"path":"` + path + `"}`},
		{ToolName: "extract_section", ToolArgs: `{"path":"` + path + `","selector":"db.host"}`},
		{ToolName: "summarize", ToolArgs: `{"reason":"enough detail gathered"}`},
		{Text: "config.json has one db.host key: localhost"},
	}}

	l := New(k, tr, reg, exec, DefaultConfig())
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	assert.Equal(t, state.StageSummarize, k.Stage())

	candidate, ok := k.PeekSummaryCandidate()
	require.True(t, ok)
	assert.Contains(t, candidate.Text(), "db.host")
}

func TestLoop_Promote_AfterPendingSummary(t *testing.T) {
	k := newLoopKernel()
	reg, exec, _ := newFileToolset(t, k)
	defer exec.Stop()

	k.RequestSummary()
	summary := schema.NewTextMessage(schema.RoleFunction, "config.json has one db.host key: localhost")
	k.Append(summary)
	k.MarkSummaryCandidate(summary.ID)

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		{ToolName: "promote", ToolArgs: `{"reason":"keep the summary"}`},
		{Text: "done"},
	}}

	l := New(k, tr, reg, exec, DefaultConfig())
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	assert.Equal(t, state.StageIdle, k.Stage())

	require.GreaterOrEqual(t, len(snap.Response), 2)
	promoteReply := snap.Response[1] // [0] is the assistant's tool-call message, [1] is its function reply
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(promoteReply.Text()), &payload))
	assert.Equal(t, true, payload["promoted"])
}

func TestLoop_ToolCircuitBreaker_DisablesAfterConsecutiveErrors(t *testing.T) {
	k := newLoopKernel()
	reg, exec, _ := newFileToolset(t, k)
	defer exec.Stop()

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		// describe_file on a nonexistent path always errors.
		{ToolName: "describe_file", ToolArgs: `{"path":"/nonexistent/config.json"}`},
		{ToolName: "describe_file", ToolArgs: `{"path":"/nonexistent/config.json"}`},
		{Text: "giving up"},
	}}

	cfg := Config{MaxRetries: 3, MaxToolErrors: 1}
	l := New(k, tr, reg, exec, cfg)
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	require.Len(t, snap.Response, 5)
	// [0]=1st tool-call msg [1]=its error reply [2]=2nd tool-call msg [3]=breaker reply [4]=final text
	breakerReply := snap.Response[3]
	detail, _ := breakerReply.Extra["detail"].(string)
	assert.Contains(t, detail, "disabled after")
}

func TestLoop_BudgetExhaustion_EmitsPolicyNotice(t *testing.T) {
	k := newLoopKernel(state.WithConfig(state.Config{ImportStageTTLCalls: 2, ImportCapChars: 1200, MaxLLMCallsPerRun: 2}))
	reg, exec, path := newFileToolset(t, k)
	defer exec.Stop()

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		{ToolName: "describe_file", ToolArgs: `{"path":"` + path + `"}`},
		{ToolName: "describe_file", ToolArgs: `{"path":"` + path + `"}`},
	}}

	l := New(k, tr, reg, exec, DefaultConfig())
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	last := snap.Response[len(snap.Response)-1]
	assert.Equal(t, schema.RoleFunction, last.Role)
	assert.Equal(t, "policy_notice", last.Name)
	budgetExhausted, _ := last.Extra["budget_exhausted"].(bool)
	assert.True(t, budgetExhausted)
}

func TestLoop_RetriesTransportErrorThenSucceeds(t *testing.T) {
	k := newLoopKernel()
	reg, exec, _ := newFileToolset(t, k)
	defer exec.Stop()

	tr := &transport.MockTransport{Responses: []transport.MockResponse{
		{Err: assertError("temporary upstream failure")},
		{Text: "recovered"},
	}}

	l := New(k, tr, reg, exec, Config{MaxRetries: 1, MaxToolErrors: 0})
	snap := drainToDone(t, l.Run(context.Background()))

	require.True(t, snap.Done)
	require.Len(t, snap.Response, 1)
	assert.Equal(t, "recovered", snap.Response[0].Text())
}

type assertError string

func (e assertError) Error() string { return string(e) }
