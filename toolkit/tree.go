package toolkit

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ctxmetab/kernel/schema"
)

// TreeHandler outlines/selects/replaces source files by regex discovery of
// function and class definitions. spec.md allows "AST (native language) or
// regex fallback (other language)"; no AST library for Python/JS/TS exists
// anywhere in the retrieval pack, so every language here uses the regex
// path (justified in DESIGN.md).
type TreeHandler struct {
	funcRe  *regexp.Regexp
	classRe *regexp.Regexp
}

// NewTreeHandler builds a handler matching Python/JS/TS function and class
// definitions.
func NewTreeHandler() *TreeHandler {
	return &TreeHandler{
		funcRe:  regexp.MustCompile(`(?m)^([ \t]*)(?:export\s+)?(?:async\s+)?(?:function\s+(\w+)|def\s+(\w+))\s*\(`),
		classRe: regexp.MustCompile(`(?m)^([ \t]*)(?:export\s+)?class\s+(\w+)`),
	}
}

func (h *TreeHandler) Extensions() []string {
	return []string{".py", ".js", ".ts", ".jsx", ".tsx"}
}

type treeEntry struct {
	name   string
	indent string
	line   int
}

func (h *TreeHandler) discover(src string, re *regexp.Regexp, nameGroups []int) []treeEntry {
	lines := strings.Split(src, "\n")
	lineStart := make([]int, 0, len(lines))
	offset := 0
	for _, l := range lines {
		lineStart = append(lineStart, offset)
		offset += len(l) + 1
	}

	var entries []treeEntry
	for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
		indent := src[m[2]:m[3]]
		var name string
		for _, g := range nameGroups {
			if m[2*g] >= 0 {
				name = src[m[2*g] : m[2*g+1]]
				break
			}
		}
		if name == "" {
			continue
		}
		lineNo := lineForOffset(lineStart, m[0])
		entries = append(entries, treeEntry{name: name, indent: indent, line: lineNo})
	}
	return entries
}

func lineForOffset(lineStart []int, offset int) int {
	lo, hi := 0, len(lineStart)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if lineStart[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo + 1
}

func (h *TreeHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	src, err := readFile(path)
	if err != nil {
		return nil, err
	}

	funcs := h.discover(src, h.funcRe, []int{2, 3})
	classes := h.discover(src, h.classRe, []int{2})

	funcNames := make([]string, len(funcs))
	for i, f := range funcs {
		funcNames[i] = f.name
	}
	classNames := make([]string, len(classes))
	for i, c := range classes {
		classNames[i] = c.name
	}

	return map[string]any{
		"summary":   "tree",
		"functions": funcNames,
		"classes":   classNames,
	}, nil
}

func (h *TreeHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	s, ok := selector.(string)
	if !ok {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "tree selector must be a string", nil)
	}
	kind, name, err := ParseTreeSelector(s)
	if err != nil {
		return nil, err
	}

	src, err := readFile(path)
	if err != nil {
		return nil, err
	}

	_, _, body, found := h.locateBlock(src, extLang(path), kind, name)
	if !found {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("%s %q not found", kind, name), nil)
	}

	return map[string]any{
		"kind":  "tree",
		"value": body,
	}, nil
}

func (h *TreeHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	s, ok := selector.(string)
	if !ok {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "tree selector must be a string", nil)
	}
	text, ok := value.(string)
	if !ok {
		return nil, schema.NewKernelError(schema.ErrInvalidSelector, "tree replace value must be source text", nil)
	}
	kind, name, err := ParseTreeSelector(s)
	if err != nil {
		return nil, err
	}

	src, err := readFile(path)
	if err != nil {
		return nil, err
	}

	start, end, _, found := h.locateBlock(src, extLang(path), kind, name)
	if !found {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("%s %q not found", kind, name), nil)
	}

	newSrc := src[:start] + text + src[end:]
	if err := writeFile(path, newSrc); err != nil {
		return nil, err
	}
	return map[string]any{"changed": true, "kind": "tree"}, nil
}

// locateBlock finds the byte range of a function/class body: brace matching
// for curly-brace languages (.js/.ts/.jsx/.tsx), indentation matching for
// Python. lang is decided by file extension (extLang), never by sniffing
// the source for a stray '{' — a Python dict/set literal in the body would
// otherwise be mistaken for a curly-brace function header.
func (h *TreeHandler) locateBlock(src, lang, kind, name string) (start, end int, body string, found bool) {
	var re *regexp.Regexp
	var nameGroups []int
	if kind == "class" {
		re = h.classRe
		nameGroups = []int{2}
	} else {
		re = h.funcRe
		nameGroups = []int{2, 3}
	}

	for _, m := range re.FindAllStringSubmatchIndex(src, -1) {
		var matched string
		for _, g := range nameGroups {
			if m[2*g] >= 0 {
				matched = src[m[2*g] : m[2*g+1]]
				break
			}
		}
		if matched != name {
			continue
		}
		indent := src[m[2]:m[3]]
		blockStart := m[0]

		if lang == "curly" {
			idx := strings.IndexByte(src[m[1]:], '{')
			if idx < 0 {
				return 0, 0, "", false
			}
			braceStart := m[1] + idx
			braceEnd := matchBrace(src, braceStart)
			if braceEnd < 0 {
				return 0, 0, "", false
			}
			return blockStart, braceEnd + 1, src[blockStart : braceEnd+1], true
		}

		blockEnd := indentBlockEnd(src, m[1], indent)
		return blockStart, blockEnd, src[blockStart:blockEnd], true
	}
	return 0, 0, "", false
}

// extLang maps a file extension to "curly" (brace-matched body) or "indent"
// (Python-style indented body); the only two shapes locateBlock handles.
func extLang(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".ts", ".jsx", ".tsx":
		return "curly"
	default:
		return "indent"
	}
}

func matchBrace(src string, openIdx int) int {
	depth := 0
	for i := openIdx; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// indentBlockEnd returns the offset one past the last line of a Python-style
// indented block starting right after the "def"/"class" header line.
func indentBlockEnd(src string, afterHeader int, headerIndent string) int {
	nl := strings.IndexByte(src[afterHeader:], '\n')
	if nl < 0 {
		return len(src)
	}
	pos := afterHeader + nl + 1

	lines := strings.Split(src[pos:], "\n")
	end := pos
	for _, line := range lines {
		trimmed := strings.TrimRight(line, " \t\r")
		if trimmed == "" {
			end += len(line) + 1
			continue
		}
		indent := leadingWhitespace(line)
		if len(indent) <= len(headerIndent) {
			break
		}
		end += len(line) + 1
	}
	return end
}

func leadingWhitespace(s string) string {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t') {
		i++
	}
	return s[:i]
}
