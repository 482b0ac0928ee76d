package toolkit

import (
	"strings"

	"github.com/ctxmetab/kernel/schema"
)

// TextHandler outlines free text as a paginated line preview, generalizing
// the teacher's head/tail truncation helpers (tools/truncate.go) from a
// single head-or-tail cap into page-at-a-time slicing.
type TextHandler struct{}

func NewTextHandler() *TextHandler { return &TextHandler{} }

func (h *TextHandler) Extensions() []string { return []string{".txt", ".log"} }

// PaginateLines partitions t's lines disjointly across 1-based pages,
// matching spec.md §8's "paginate_text partitions the lines of t with no
// loss" testable property.
func PaginateLines(t string, page, pageSize int) (lines []string, pg Pagination) {
	all := strings.Split(t, "\n")
	start, end, p := paginateSlice(len(all), page, pageSize, "call describe_file again with page=next_page to see more lines")
	return all[start:end], p
}

func (h *TextHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	content, err := readFile(path)
	if err != nil {
		return nil, err
	}
	lines, pg := PaginateLines(content, page, pageSize)
	return map[string]any{
		"summary":   "text",
		"preview":   strings.Join(lines, "\n"),
		"page":      pg.Page,
		"page_size": pg.PageSize,
		"total":     pg.Total,
		"truncated": pg.Truncated,
		"next_page": pg.NextPage,
		"note":      nonEmptyOrOmit(pg.Note),
	}, nil
}

func (h *TextHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "text handler does not support select", nil)
}

func (h *TextHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "text handler does not support replace", nil)
}
