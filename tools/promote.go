package tools

import (
	"context"
	"encoding/json"

	kschema "github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
)

// PromoteTool checks promotion preconditions and reports a preview; the
// actual state mutation (state.Kernel.PromoteLastSummary, which also
// returns the stage to idle) is applied by the loop after a successful
// call, per spec.md §4.D/§4.F.
type PromoteTool struct {
	kernel *state.Kernel
}

func NewPromoteTool(k *state.Kernel) *PromoteTool {
	return &PromoteTool{kernel: k}
}

func (t *PromoteTool) Name() string        { return "promote" }
func (t *PromoteTool) Description() string { return "Pins the pending summary permanently into the working context, exempting it from ephemeral pruning." }

func (t *PromoteTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("reason", kschema.String("Why this summary should be kept")).Required(),
		kschema.Property("target", kschema.String("Optional: which summary to promote, if more than one is pending")),
	)
}

type promoteInput struct {
	Reason string `json:"reason"`
	Target string `json:"target"`
}

func (t *PromoteTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in promoteInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
		}
	}

	if t.kernel.Stage() != state.StageSummarize {
		data, _ := json.Marshal(map[string]any{
			"promoted": false,
			"error":    "Reintegration requires outline → select → summarize → load.",
		})
		return kschema.OK(data)
	}

	candidate, ok := t.kernel.PeekSummaryCandidate()
	if !ok {
		data, _ := json.Marshal(map[string]any{
			"promoted": false,
			"error":    "no pending summary to promote",
		})
		return kschema.OK(data)
	}

	text := candidate.Text()
	if len(text) > t.kernel.Config().ImportCapChars {
		data, _ := json.Marshal(map[string]any{
			"promoted": false,
			"error":    "pending summary exceeds the import cap",
		})
		return kschema.OK(data)
	}

	preview := snippet(text, 200)
	data, _ := json.Marshal(map[string]any{
		"promoted":        true,
		"summary_preview": preview,
	})
	return kschema.OK(data)
}
