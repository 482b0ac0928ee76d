package schema

import "encoding/json"

// ToolResult is what a tool's Execute returns before the loop truncates and
// wraps it into a function-role Message.
type ToolResult struct {
	Data  json.RawMessage // success payload
	Error *KernelError    // set instead of Data on failure
}

// OK wraps a successful JSON payload.
func OK(data json.RawMessage) ToolResult {
	return ToolResult{Data: data}
}

// Fail wraps a KernelError as a tool result (spec.md §7: tool errors are
// caught at dispatch and returned to the LLM, never aborting the turn).
func Fail(err *KernelError) ToolResult {
	return ToolResult{Error: err}
}

// MarshalPayload renders the result as the {error, detail} or raw-data JSON
// the function message should carry.
func (r ToolResult) MarshalPayload() ([]byte, error) {
	if r.Error != nil {
		return json.Marshal(map[string]string{
			"error":  string(r.Error.Kind),
			"detail": r.Error.Detail,
		})
	}
	if r.Data == nil {
		return []byte("null"), nil
	}
	return r.Data, nil
}

// IsError reports whether this result represents a failure.
func (r ToolResult) IsError() bool {
	return r.Error != nil
}
