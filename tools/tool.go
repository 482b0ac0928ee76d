// Package tools implements the kernel's dispatchable tool set: the
// shape-aware file tools, the erase/summarize/promote stage-pipeline
// tools, and the desktop automation tool, plus a registry and a
// worker-pool executor for running a turn's tool calls concurrently.
//
// Grounded on the teacher's tools package (tool.go, registry.go,
// executor.go), generalized from the teacher's free-form BaseTool/
// FunctionTool pair into a single schema-validated Tool interface.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ctxmetab/kernel/schema"
)

// Tool is the dispatchable unit the loop invokes. Unlike the teacher's
// BaseTool.ValidateInput hand-rolled required-field scan, input validation
// here is delegated entirely to a compiled JSON Schema document (spec.md
// §6 EXPANDED).
type Tool interface {
	Name() string
	Description() string
	RawSchema() map[string]any
	Execute(ctx context.Context, input json.RawMessage) schema.ToolResult
}

// CompileSchema turns a tool's map[string]any JSON Schema document (built
// with the schema.Object/Property/String/... fluent builder,
// schema/schema.go) into a validator via jsonschema/v5.
func CompileSchema(name string, doc map[string]any) (*jsonschema.Schema, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("tool %s: schema is not serializable: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	resourceURL := "mem://" + name + ".json"
	if err := compiler.AddResource(resourceURL, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("tool %s: invalid schema document: %w", name, err)
	}
	compiled, err := compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("tool %s: schema failed to compile: %w", name, err)
	}
	return compiled, nil
}

// ValidateInput decodes input as JSON and checks it against the compiled
// schema, returning a *schema.ValidationError on mismatch.
func ValidateInput(compiled *jsonschema.Schema, input json.RawMessage) error {
	if compiled == nil {
		return nil
	}
	var doc interface{}
	if len(input) == 0 {
		doc = map[string]interface{}{}
	} else if err := json.Unmarshal(input, &doc); err != nil {
		return schema.NewValidationError("input", string(input), "invalid JSON")
	}
	if err := compiled.Validate(doc); err != nil {
		return schema.NewValidationError("input", string(input), err.Error())
	}
	return nil
}
