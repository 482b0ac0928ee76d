package tools

import (
	"context"
	"encoding/json"

	kschema "github.com/ctxmetab/kernel/schema"
	"github.com/ctxmetab/kernel/toolkit"
)

// DescribeFileTool implements spec.md §4.A's outline operation.
type DescribeFileTool struct {
	registry *toolkit.Registry
}

func NewDescribeFileTool(registry *toolkit.Registry) *DescribeFileTool {
	return &DescribeFileTool{registry: registry}
}

func (t *DescribeFileTool) Name() string        { return "describe_file" }
func (t *DescribeFileTool) Description() string { return "Outlines the structure of a file: functions/classes for source, keys for maps, columns for tables, headings for markdown." }

func (t *DescribeFileTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("path", kschema.String("Absolute path to the file")).Required(),
		kschema.Property("page", kschema.Int("1-based page number (default 1)")),
		kschema.Property("page_size", kschema.Int("Entries per page (default 50)")),
	)
}

type describeFileInput struct {
	Path     string `json:"path"`
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
}

func (t *DescribeFileTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in describeFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
	}

	out, err := t.registry.Outline(in.Path, in.Page, in.PageSize)
	if err != nil {
		return toolError(err)
	}
	return marshalOK(out)
}

// ExtractSectionTool implements spec.md §4.A's select operation.
type ExtractSectionTool struct {
	registry *toolkit.Registry
}

func NewExtractSectionTool(registry *toolkit.Registry) *ExtractSectionTool {
	return &ExtractSectionTool{registry: registry}
}

func (t *ExtractSectionTool) Name() string        { return "extract_section" }
func (t *ExtractSectionTool) Description() string { return "Selects a specific section of a file by selector: a tree function/class, a map path, or a table cell." }

func (t *ExtractSectionTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("path", kschema.String("Absolute path to the file")).Required(),
		kschema.Property("selector", kschema.Any("Dotted/bracketed path string, structured path list, \"function:<name>\"/\"class:<name>\", or [row,col]")).Required(),
		kschema.Property("page", kschema.Int("1-based page number (default 1)")),
		kschema.Property("page_size", kschema.Int("Entries per page (default 50)")),
	)
}

type extractSectionInput struct {
	Path     string      `json:"path"`
	Selector interface{} `json:"selector"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func (t *ExtractSectionTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in extractSectionInput
	if err := json.Unmarshal(input, &in); err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
	}

	out, err := t.registry.Select(in.Path, in.Selector, in.Page, in.PageSize)
	if err != nil {
		return toolError(err)
	}
	return marshalOK(out)
}

// ReplaceSectionTool implements spec.md §4.A's replace operation.
type ReplaceSectionTool struct {
	registry *toolkit.Registry
}

func NewReplaceSectionTool(registry *toolkit.Registry) *ReplaceSectionTool {
	return &ReplaceSectionTool{registry: registry}
}

func (t *ReplaceSectionTool) Name() string        { return "replace_section" }
func (t *ReplaceSectionTool) Description() string { return "Writes a new value in place at a selector's location." }

func (t *ReplaceSectionTool) RawSchema() map[string]any {
	return kschema.Object(
		kschema.Property("path", kschema.String("Absolute path to the file")).Required(),
		kschema.Property("selector", kschema.Any("Same selector grammar as extract_section")).Required(),
		kschema.Property("value", kschema.Any("Replacement value: source text for tree, any JSON value for map/table")).Required(),
	)
}

type replaceSectionInput struct {
	Path     string      `json:"path"`
	Selector interface{} `json:"selector"`
	Value    interface{} `json:"value"`
}

func (t *ReplaceSectionTool) Execute(ctx context.Context, input json.RawMessage) kschema.ToolResult {
	var in replaceSectionInput
	if err := json.Unmarshal(input, &in); err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrMissingArgument, "invalid input", err))
	}

	out, err := t.registry.Replace(in.Path, in.Selector, in.Value)
	if err != nil {
		return toolError(err)
	}
	return marshalOK(out)
}

func toolError(err error) kschema.ToolResult {
	if ke, ok := kschema.AsKernelError(err); ok {
		return kschema.Fail(ke)
	}
	return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, err.Error(), err))
}

func marshalOK(v map[string]any) kschema.ToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return kschema.Fail(kschema.NewKernelError(kschema.ErrUnsupportedOp, "result is not serializable", err))
	}
	return kschema.OK(data)
}
