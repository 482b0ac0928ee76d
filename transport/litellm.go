package transport

import (
	"context"
	"io"

	"github.com/voocel/litellm"

	"github.com/ctxmetab/kernel/schema"
)

// LiteLLMTransport wraps github.com/voocel/litellm (the teacher's own LLM
// client), following llm.LiteLLMAdapter's conversion/streaming shape
// (llm/litellm.go) but targeting this kernel's schema.Message instead of
// the teacher's mas.Message/ContentBlock model.
type LiteLLMTransport struct {
	client *litellm.Client
	model  string
}

// NewLiteLLMTransport wraps an already-configured litellm client (built by
// kconfig from provider credentials) for the given model.
func NewLiteLLMTransport(client *litellm.Client, model string) *LiteLLMTransport {
	return &LiteLLMTransport{client: client, model: model}
}

func (t *LiteLLMTransport) CallLLM(ctx context.Context, messages []schema.Message, functions map[string]map[string]any) (<-chan schema.Message, <-chan error) {
	out := make(chan schema.Message, 32)
	errc := make(chan error, 1)

	req := &litellm.Request{
		Model:    t.model,
		Messages: toLiteLLMMessages(messages),
		Tools:    toLiteLLMTools(functions),
	}
	if len(functions) > 0 {
		req.ToolChoice = "auto"
	}

	stream, err := t.client.Stream(ctx, req)
	if err != nil {
		errc <- schema.NewTransportError("stream", err)
		close(out)
		close(errc)
		return out, errc
	}

	go func() {
		defer close(out)
		defer close(errc)
		defer stream.Close()

		partial := schema.NewTextMessage(schema.RoleAssistant, "")
		text := ""
		builders := map[int]*toolCallBuilder{}

		for {
			chunk, err := stream.Next()
			if err != nil {
				if err == io.EOF {
					break
				}
				errc <- schema.NewTransportError("stream chunk", err)
				return
			}
			if chunk == nil {
				continue
			}

			if chunk.Content != "" {
				text += chunk.Content
				partial.Content = []schema.ContentItem{schema.Text(text)}
			}

			if chunk.ToolCallDelta != nil {
				applyDelta(builders, chunk.ToolCallDelta)
			}

			if len(builders) > 0 {
				attachToolCall(&partial, builders)
			}

			out <- partial.Clone()
		}

		if len(builders) > 0 {
			attachToolCall(&partial, builders)
		}
		out <- partial.Clone()
	}()

	return out, errc
}

// DetectTool reads back the tool-call fields CallLLM attached to Extra
// during streaming, rather than parsing embedded text markup: litellm
// already gives a structured tool call, so there is no markup to parse.
func (t *LiteLLMTransport) DetectTool(msg schema.Message) (bool, string, string, string) {
	name, ok := msg.Extra["tool_call_name"].(string)
	if !ok || name == "" {
		return false, "", "", msg.Text()
	}
	args, _ := msg.Extra["tool_call_args"].(string)
	return true, name, args, msg.Text()
}

func toLiteLLMMessages(messages []schema.Message) []litellm.Message {
	out := make([]litellm.Message, 0, len(messages))
	for _, m := range messages {
		lm := litellm.Message{Role: string(m.Role), Content: m.Text()}
		if id, ok := m.FunctionID(); ok {
			lm.ToolCallID = id
		}
		if name, nameOK := m.Extra["tool_call_name"].(string); nameOK {
			args, _ := m.Extra["tool_call_args"].(string)
			id, _ := m.Extra["tool_call_id"].(string)
			lm.ToolCalls = []litellm.ToolCall{{
				ID:   id,
				Type: "function",
				Function: litellm.FunctionCall{
					Name:      name,
					Arguments: args,
				},
			}}
		}
		out = append(out, lm)
	}
	return out
}

func toLiteLLMTools(functions map[string]map[string]any) []litellm.Tool {
	if len(functions) == 0 {
		return nil
	}
	tools := make([]litellm.Tool, 0, len(functions))
	for name, entry := range functions {
		desc, _ := entry["description"].(string)
		parameters, _ := entry["parameters"].(map[string]any)
		tools = append(tools, litellm.Tool{
			Type: "function",
			Function: litellm.FunctionDef{
				Name:        name,
				Description: desc,
				Parameters:  parameters,
			},
		})
	}
	return tools
}

type toolCallBuilder struct {
	id, name, args string
}

func applyDelta(builders map[int]*toolCallBuilder, delta *litellm.ToolCallDelta) {
	b, ok := builders[delta.Index]
	if !ok {
		b = &toolCallBuilder{}
		builders[delta.Index] = b
	}
	if delta.ID != "" {
		b.id = delta.ID
	}
	if delta.FunctionName != "" {
		b.name = delta.FunctionName
	}
	if delta.ArgumentsDelta != "" {
		b.args += delta.ArgumentsDelta
	}
}

// attachToolCall stashes the first (lowest-index) accumulated tool call
// onto partial.Extra; spec.md's tool dispatch processes tool calls in
// emission order one at a time, so only the first is needed by DetectTool.
func attachToolCall(partial *schema.Message, builders map[int]*toolCallBuilder) {
	var first *toolCallBuilder
	for i := 0; i < len(builders); i++ {
		if b, ok := builders[i]; ok {
			first = b
			break
		}
	}
	if first == nil {
		return
	}
	partial.SetExtra("tool_call_name", first.name)
	partial.SetExtra("tool_call_args", first.args)
	partial.SetExtra("tool_call_id", first.id)
	partial.SetExtra("function_id", first.id)
}
