// Package toolkit implements the shape-aware file inspector: a registry of
// per-extension handlers exposing outline/select/replace with pagination,
// grounded on the teacher's tools.Registry (tools/registry.go) but keyed by
// file extension instead of tool name.
package toolkit

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctxmetab/kernel/schema"
)

// Segment is one step of a map-like path selector: either a string key or
// an integer index (spec.md §9's tagged Segment = Key | Index).
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

func KeySegment(k string) Segment   { return Segment{Key: k} }
func IndexSegment(i int) Segment    { return Segment{Index: i, IsIndex: true} }

func (s Segment) String() string {
	if s.IsIndex {
		return strconv.Itoa(s.Index)
	}
	return s.Key
}

// ParsePath parses a map selector, accepting either a dotted/bracketed
// string ("a.b[0]") or an already-structured list (from JSON array input:
// []interface{} of strings/numbers), matching spec.md §4.A's selector
// parser contract.
func ParsePath(raw interface{}) ([]Segment, error) {
	switch v := raw.(type) {
	case string:
		return parsePathString(v)
	case []interface{}:
		return parsePathList(v)
	case []string:
		segs := make([]Segment, len(v))
		for i, s := range v {
			segs[i] = KeySegment(s)
		}
		return segs, nil
	case nil:
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "selector is empty", nil)
	default:
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, fmt.Sprintf("unsupported selector shape %T", raw), nil)
	}
}

func parsePathList(items []interface{}) ([]Segment, error) {
	if len(items) == 0 {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "selector is empty", nil)
	}
	segs := make([]Segment, 0, len(items))
	for _, item := range items {
		switch t := item.(type) {
		case string:
			segs = append(segs, KeySegment(t))
		case float64:
			segs = append(segs, IndexSegment(int(t)))
		case int:
			segs = append(segs, IndexSegment(t))
		default:
			return nil, schema.NewKernelError(schema.ErrInvalidSelector, fmt.Sprintf("selector element has unsupported type %T", item), nil)
		}
	}
	return segs, nil
}

// parsePathString implements the dotted/bracketed string grammar: segments
// separated by '.', bracket indices "[N]" (numeric) or "[name]" (string).
// Reserved prefixes "function:" and "class:" pass through unmodified as a
// single opaque segment (the tree handler parses those itself).
func parsePathString(s string) ([]Segment, error) {
	if s == "" {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "selector is empty", nil)
	}
	if strings.HasPrefix(s, "function:") || strings.HasPrefix(s, "class:") {
		return []Segment{KeySegment(s)}, nil
	}

	var segs []Segment
	var cur strings.Builder
	flushKey := func() {
		if cur.Len() > 0 {
			segs = append(segs, KeySegment(cur.String()))
			cur.Reset()
		}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '.':
			flushKey()
			i++
		case '[':
			flushKey()
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, schema.NewKernelError(schema.ErrInvalidSelector, "unterminated '[' in selector", nil)
			}
			inner := s[i+1 : i+end]
			if n, err := strconv.Atoi(inner); err == nil {
				segs = append(segs, IndexSegment(n))
			} else {
				segs = append(segs, KeySegment(inner))
			}
			i += end + 1
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flushKey()

	if len(segs) == 0 {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "selector is empty", nil)
	}
	return segs, nil
}

// GJSONPath renders segments as a github.com/tidwall/gjson / sjson path
// string, the grammar spec.md's map selector already matches.
func GJSONPath(segs []Segment) string {
	var b strings.Builder
	for i, seg := range segs {
		if seg.IsIndex {
			b.WriteByte('.')
			b.WriteString(strconv.Itoa(seg.Index))
		} else {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// ParseTreeSelector splits a "function:<name>" or "class:<name>" selector
// string into its kind and name.
func ParseTreeSelector(s string) (kind, name string, err error) {
	switch {
	case strings.HasPrefix(s, "function:"):
		return "function", strings.TrimPrefix(s, "function:"), nil
	case strings.HasPrefix(s, "class:"):
		return "class", strings.TrimPrefix(s, "class:"), nil
	default:
		return "", "", schema.NewKernelError(schema.ErrInvalidSelector, "tree selector must be \"function:<name>\" or \"class:<name>\"", nil)
	}
}

// ParseTableSelector accepts a 2-element [row, col] selector where col is
// either a numeric index or a column name.
func ParseTableSelector(raw interface{}) (row int, col Segment, err error) {
	items, ok := raw.([]interface{})
	if !ok || len(items) != 2 {
		return 0, Segment{}, schema.NewKernelError(schema.ErrInvalidSelector, "table selector must be [row, col]", nil)
	}
	rf, ok := items[0].(float64)
	if !ok {
		return 0, Segment{}, schema.NewKernelError(schema.ErrInvalidSelector, "table row must be numeric", nil)
	}
	switch c := items[1].(type) {
	case float64:
		return int(rf), IndexSegment(int(c)), nil
	case string:
		return int(rf), KeySegment(c), nil
	default:
		return 0, Segment{}, schema.NewKernelError(schema.ErrInvalidSelector, fmt.Sprintf("table column has unsupported type %T", items[1]), nil)
	}
}
