package tools

import (
	"context"
	"encoding/json"

	kschema "github.com/ctxmetab/kernel/schema"
)

// SummarizeTool is a pure signaling tool: it never generates summary text
// itself (spec.md's Non-goals explicitly exclude semantic summary
// generation — the LLM writes the summary, this tool only requests the
// transition). The loop applies its effect when the kernel is in the
// select stage.
type SummarizeTool struct{}

func NewSummarizeTool() *SummarizeTool { return &SummarizeTool{} }

func (t *SummarizeTool) Name() string        { return "summarize" }
func (t *SummarizeTool) Description() string { return "Requests a transition into the summarize stage, so the next plain-text reply becomes the pending summary." }

func (t *SummarizeTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("reason", kschema.String("Why a summary is needed now")).Required(),
	)
}

func (t *SummarizeTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	data, _ := json.Marshal(map[string]any{"requested": true})
	return kschema.OK(data)
}
