package tools

import (
	"context"
	"encoding/json"
	"fmt"

	kschema "github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/state"
)

// EraseTarget is one of {index:N}, {range:{start,end}}, {role:S, last:K}
// (spec.md §4.C).
type EraseTarget struct {
	Index *int            `json:"index,omitempty"`
	Range *eraseRangeSpec `json:"range,omitempty"`
	Role  string          `json:"role,omitempty"`
	Last  int             `json:"last,omitempty"`
}

type eraseRangeSpec struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

type eraseInput struct {
	Targets  []EraseTarget `json:"targets"`
	Reason   string        `json:"reason"`
	Strategy string        `json:"strategy"`
}

var erasableRoles = map[kschema.Role]bool{
	kschema.RoleAssistant: true,
	kschema.RoleFunction:  true,
	kschema.RoleUser:      true,
}

// EraseTool implements spec.md §4.C: index/range/role-scoped deletion with
// turn-order repair. It holds the kernel it operates on directly, since
// spec.md specifies that "messages (current context) and a kernel handle
// are supplied out-of-band" rather than through the input payload.
type EraseTool struct {
	kernel *state.Kernel
}

func NewEraseTool(k *state.Kernel) *EraseTool {
	return &EraseTool{kernel: k}
}

func (t *EraseTool) Name() string        { return "erase" }
func (t *EraseTool) Description() string { return "Deletes messages from the working context by index, range, or role, repairing turn order afterward." }

func (t *EraseTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("targets", kschema.Array("Selectors to erase", kschema.Any("{index}|{range}|{role,last}"))).Required(),
		kschema.Property("reason", kschema.String("Why these messages are being erased")).Required(),
		kschema.Property("strategy", kschema.Enum("Informational only; both values hard-drop", "summarize", "drop")),
	)
}

func (t *EraseTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in eraseInput
	if len(input) > 0 {
		if err := json.Unmarshal(input, &in); err != nil {
			return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
		}
	}

	messages := t.kernel.WorkingContext()

	if len(in.Targets) == 0 {
		return marshalOK(helpResponse(messages))
	}

	indices := map[int]bool{}
	for _, target := range in.Targets {
		resolveTarget(messages, target, indices)
	}

	var erased, skipped []int
	var skippedReasons []string

	kept := make([]kschema.Message, 0, len(messages))
	erasedIDs := make([]kschema.MessageID, 0, len(indices))
	for i, msg := range messages {
		if !indices[i] {
			kept = append(kept, msg)
			continue
		}
		if msg.Role == kschema.RoleSystem || !erasableRoles[msg.Role] {
			skipped = append(skipped, i)
			skippedReasons = append(skippedReasons, string(kschema.ErrRoleNotErasable))
			kept = append(kept, msg)
			continue
		}
		erased = append(erased, i)
		erasedIDs = append(erasedIDs, msg.ID)
	}

	kept = repairTurnOrder(kept)

	t.kernel.ReplaceWorkingContext(kept)
	t.kernel.MarkErased(erasedIDs)

	strategy := in.Strategy
	if strategy == "" {
		strategy = "drop"
	}

	return marshalOK(map[string]any{
		"erased":          erased,
		"skipped":         skipped,
		"skipped_reasons": skippedReasons,
		"summary":         fmt.Sprintf("Erased %d messages via %s. Reason: %s", len(erased), strategy, in.Reason),
	})
}

// repairTurnOrder inserts a synthetic "[deleted]" user message if the first
// non-system message is not a user message, preserving spec.md §3's
// working-context invariant.
func repairTurnOrder(msgs []kschema.Message) []kschema.Message {
	firstNonSystem := -1
	for i, m := range msgs {
		if m.Role != kschema.RoleSystem {
			firstNonSystem = i
			break
		}
	}
	if firstNonSystem == -1 || msgs[firstNonSystem].Role == kschema.RoleUser {
		return msgs
	}

	synthetic := kschema.NewTextMessage(kschema.RoleUser, "[deleted]")
	out := make([]kschema.Message, 0, len(msgs)+1)
	out = append(out, msgs[:firstNonSystem]...)
	out = append(out, synthetic)
	out = append(out, msgs[firstNonSystem:]...)
	return out
}

func resolveTarget(messages []kschema.Message, target EraseTarget, into map[int]bool) {
	switch {
	case target.Index != nil:
		if *target.Index >= 0 && *target.Index < len(messages) {
			into[*target.Index] = true
		}
	case target.Range != nil:
		for i := target.Range.Start; i <= target.Range.End && i < len(messages); i++ {
			if i >= 0 {
				into[i] = true
			}
		}
	case target.Role != "":
		matched := 0
		for i := len(messages) - 1; i >= 0 && (target.Last <= 0 || matched < target.Last); i-- {
			if string(messages[i].Role) == target.Role {
				into[i] = true
				matched++
			}
		}
	}
}

func helpResponse(messages []kschema.Message) map[string]any {
	lastAssistant := -1
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == kschema.RoleAssistant {
			lastAssistant = i
			break
		}
	}

	previewFrom := 0
	if len(messages) > 6 {
		previewFrom = len(messages) - 6
	}
	recent := make([]map[string]any, 0, len(messages)-previewFrom)
	for i := previewFrom; i < len(messages); i++ {
		recent = append(recent, map[string]any{
			"index":   i,
			"role":    messages[i].Role,
			"snippet": snippet(messages[i].Text(), 80),
		})
	}

	example := map[string]any{"targets": []map[string]any{}, "reason": "example"}
	if lastAssistant >= 0 {
		example["targets"] = []map[string]any{{"index": lastAssistant}}
		example["reason"] = "remove the stale assistant reply"
	}

	return map[string]any{
		"help":    true,
		"example": example,
		"recent":  recent,
	}
}

func snippet(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
