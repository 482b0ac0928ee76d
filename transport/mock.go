package transport

import (
	"context"

	"github.com/ctxmetab/kernel/schema"
)

// MockTransport is a scripted Transport for deterministic loop tests,
// following the teacher's config.StreamFn non-streaming test shortcut
// (loop.go): each call pops the next canned response off Responses rather
// than talking to a real model.
type MockTransport struct {
	// Responses is consumed one-per-CallLLM call, in order.
	Responses []MockResponse
	calls     int

	// Requests records every messages/functions pair CallLLM was given, so
	// tests can assert on what the loop sent upstream.
	Requests []MockRequest
}

// MockResponse is one canned assistant turn.
type MockResponse struct {
	Text     string
	ToolName string
	ToolArgs string
	Err      error
}

// MockRequest captures a single CallLLM invocation's inputs.
type MockRequest struct {
	Messages  []schema.Message
	Functions map[string]map[string]any
}

func (m *MockTransport) CallLLM(ctx context.Context, messages []schema.Message, functions map[string]map[string]any) (<-chan schema.Message, <-chan error) {
	out := make(chan schema.Message, 1)
	errc := make(chan error, 1)

	m.Requests = append(m.Requests, MockRequest{Messages: messages, Functions: functions})

	if m.calls >= len(m.Responses) {
		errc <- schema.NewTransportError("call_llm", errNoMoreResponses)
		close(out)
		close(errc)
		return out, errc
	}
	resp := m.Responses[m.calls]
	m.calls++

	if resp.Err != nil {
		errc <- schema.NewTransportError("call_llm", resp.Err)
		close(out)
		close(errc)
		return out, errc
	}

	msg := schema.NewTextMessage(schema.RoleAssistant, resp.Text)
	if resp.ToolName != "" {
		id := string(schema.NewMessageID())
		msg.SetExtra("tool_call_name", resp.ToolName)
		msg.SetExtra("tool_call_args", resp.ToolArgs)
		msg.SetExtra("tool_call_id", id)
		msg.SetExtra("function_id", id)
	}
	out <- msg
	close(out)
	close(errc)
	return out, errc
}

func (m *MockTransport) DetectTool(msg schema.Message) (bool, string, string, string) {
	name, ok := msg.Extra["tool_call_name"].(string)
	if !ok || name == "" {
		return false, "", "", msg.Text()
	}
	args, _ := msg.Extra["tool_call_args"].(string)
	return true, name, args, msg.Text()
}

type mockError string

func (e mockError) Error() string { return string(e) }

const errNoMoreResponses = mockError("mock transport: no more scripted responses")
