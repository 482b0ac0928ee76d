package toolkit

import (
	"regexp"
	"strings"

	"github.com/ctxmetab/kernel/schema"
)

// MarkdownHandler extracts headings via regex. No markdown AST library in
// the retrieval pack does structural heading extraction cheaply enough to
// justify the dependency for this one operation (see DESIGN.md).
type MarkdownHandler struct {
	headingRe *regexp.Regexp
}

func NewMarkdownHandler() *MarkdownHandler {
	return &MarkdownHandler{headingRe: regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)}
}

func (h *MarkdownHandler) Extensions() []string { return []string{".md", ".markdown"} }

func (h *MarkdownHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	content, err := readFile(path)
	if err != nil {
		return nil, err
	}

	matches := h.headingRe.FindAllStringSubmatch(content, -1)
	headings := make([]map[string]any, 0, len(matches))
	for _, m := range matches {
		headings = append(headings, map[string]any{
			"level": len(m[1]),
			"text":  strings.TrimSpace(m[2]),
		})
	}

	return map[string]any{"summary": "markdown", "headings": headings}, nil
}

func (h *MarkdownHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "markdown handler does not support select", nil)
}

func (h *MarkdownHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "markdown handler does not support replace", nil)
}
