// Package transport defines the kernel loop's external LLM collaborator
// boundary (spec.md §6: call_llm/detect_tool), grounded on the teacher's
// llm.ChatModel/llm.Provider (llm/llm.go) and its streaming event loop
// (loop.go's callLLMStream).
package transport

import (
	"context"

	"github.com/ctxmetab/kernel/schema"
)

// Transport is the external LLM collaborator the kernel loop drives.
type Transport interface {
	// CallLLM streams the assistant's response to messages given the
	// available function schemas. Each value sent on the returned channel
	// is the cumulative assistant message so far within this single call
	// (spec.md §6), so callers may simply keep the last value received.
	// The channel is closed when the call completes; a send on the
	// returned error-channel-of-one reports a terminal failure.
	CallLLM(ctx context.Context, messages []schema.Message, functions map[string]map[string]any) (<-chan schema.Message, <-chan error)

	// DetectTool inspects an assistant message for an embedded tool
	// invocation, returning whether one is present, its name and raw
	// argument string, and any leftover plain-text commentary alongside it.
	DetectTool(msg schema.Message) (useTool bool, name string, args string, leftoverText string)
}
