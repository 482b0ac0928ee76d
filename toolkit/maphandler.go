package toolkit

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"

	"github.com/ctxmetab/kernel/schema"
)

// MapHandler implements outline/select/replace for every hierarchical-map
// shape spec.md names, one handler parameterized by codec (spec.md §4.A).
// JSON is special-cased onto gjson/sjson directly, since spec.md's path
// grammar for maps ("a.b[0]") is exactly gjson/sjson's own path grammar —
// the highest-leverage dependency wiring in this repo. YAML/TOML/INI are
// decoded into a generic interface{} tree and walked with the same
// Segment-based evaluator.
type MapHandler struct{}

func NewMapHandler() *MapHandler { return &MapHandler{} }

func (h *MapHandler) Extensions() []string {
	return []string{".json", ".yaml", ".yml", ".toml", ".ini", ".cfg"}
}

// mapSelectCapChars is the other half of spec.md §4.A's whole-vs-paginate
// cap; the entry half of the cap is the request's own page_size.
const mapSelectCapChars = 4000

func (h *MapHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return outlineFromGJSON(gjson.Parse(raw), page, pageSize)
	}

	root, err := h.loadGeneric(path, ext)
	if err != nil {
		return nil, err
	}
	return outlineGeneric(root, page, pageSize)
}

func outlineFromGJSON(res gjson.Result, page, pageSize int) (map[string]any, error) {
	switch {
	case res.IsObject():
		var keys []string
		res.ForEach(func(k, _ gjson.Result) bool {
			keys = append(keys, k.String())
			return true
		})
		sort.Strings(keys)
		start, end, pg := paginateSlice(len(keys), page, pageSize, "call describe_file again with page=next_page to see more keys")
		return mapOutlineResponse(keys[start:end], pg), nil
	case res.IsArray():
		return map[string]any{"summary": "map-list", "length": len(res.Array())}, nil
	default:
		return map[string]any{"summary": "map-scalar", "type": gjsonTypeName(res)}, nil
	}
}

func gjsonTypeName(res gjson.Result) string {
	switch res.Type {
	case gjson.String:
		return "string"
	case gjson.Number:
		return "number"
	case gjson.True, gjson.False:
		return "bool"
	case gjson.Null:
		return "null"
	default:
		return "unknown"
	}
}

func outlineGeneric(root interface{}, page, pageSize int) (map[string]any, error) {
	switch v := root.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		start, end, pg := paginateSlice(len(keys), page, pageSize, "call describe_file again with page=next_page to see more keys")
		return mapOutlineResponse(keys[start:end], pg), nil
	case []interface{}:
		return map[string]any{"summary": "map-list", "length": len(v)}, nil
	default:
		return map[string]any{"summary": "map-scalar", "type": fmt.Sprintf("%T", v)}, nil
	}
}

func mapOutlineResponse(keys []string, pg Pagination) map[string]any {
	return map[string]any{
		"summary":    "map",
		"keys":       keys,
		"page":       pg.Page,
		"page_size":  pg.PageSize,
		"total":      pg.Total,
		"truncated":  pg.Truncated,
		"next_page":  pg.NextPage,
		"note":       nonEmptyOrOmit(pg.Note),
	}
}

func nonEmptyOrOmit(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func (h *MapHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	segs, err := ParsePath(selector)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))

	var value interface{}
	if ext == ".json" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		res := gjson.Get(raw, GJSONPath(segs))
		if !res.Exists() {
			return nil, schema.NewKernelError(schema.ErrKeyNotFound, GJSONPath(segs)+" not found", nil)
		}
		value = res.Value()
	} else {
		root, err := h.loadGeneric(path, ext)
		if err != nil {
			return nil, err
		}
		value, err = walkGet(root, segs)
		if err != nil {
			return nil, err
		}
	}

	return wrapSelectValue(value, page, pageSize)
}

// wrapSelectValue applies spec.md §4.A's size cap: results within the cap
// return whole, larger ones paginate (by element, for list/dict values).
// The entry cap is the request's own page_size (defaulted to 50), per
// spec.md's "≤ page_size entries AND ≤ 4000 JSON chars".
func wrapSelectValue(value interface{}, page, pageSize int) (map[string]any, error) {
	encoded, err := json.Marshal(value)
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "value is not serializable", err)
	}
	_, normalizedPageSize := normalizePaging(page, pageSize)

	switch v := value.(type) {
	case []interface{}:
		if len(v) <= normalizedPageSize && len(encoded) <= mapSelectCapChars {
			return map[string]any{"kind": "map", "value": v}, nil
		}
		start, end, pg := paginateSlice(len(v), page, pageSize, "call extract_section again with page=next_page to see more elements")
		return map[string]any{
			"kind": "map", "value": v[start:end],
			"page": pg.Page, "page_size": pg.PageSize, "total": pg.Total,
			"truncated": pg.Truncated, "next_page": pg.NextPage, "note": nonEmptyOrOmit(pg.Note),
		}, nil
	case map[string]interface{}:
		if len(v) <= normalizedPageSize && len(encoded) <= mapSelectCapChars {
			return map[string]any{"kind": "map", "value": v}, nil
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		start, end, pg := paginateSlice(len(keys), page, pageSize, "call extract_section again with page=next_page to see more keys")
		windowed := make(map[string]interface{}, end-start)
		for _, k := range keys[start:end] {
			windowed[k] = v[k]
		}
		return map[string]any{
			"kind": "map", "value": windowed,
			"page": pg.Page, "page_size": pg.PageSize, "total": pg.Total,
			"truncated": pg.Truncated, "next_page": pg.NextPage, "note": nonEmptyOrOmit(pg.Note),
		}, nil
	default:
		return map[string]any{"kind": "map", "value": value}, nil
	}
}

func (h *MapHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	segs, err := ParsePath(selector)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".json" {
		raw, err := readFile(path)
		if err != nil {
			return nil, err
		}
		encodedValue, err := json.Marshal(value)
		if err != nil {
			return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "value is not serializable", err)
		}
		newRaw, err := sjson.SetRawOptions(raw, GJSONPath(segs), string(encodedValue), &sjson.Options{Optimistic: true})
		if err != nil {
			return nil, schema.NewKernelError(schema.ErrInvalidSelector, "sjson set failed", err)
		}
		if err := writeFile(path, newRaw); err != nil {
			return nil, err
		}
		return map[string]any{"changed": true, "kind": "map"}, nil
	}

	root, err := h.loadGeneric(path, ext)
	if err != nil {
		return nil, err
	}
	if err := walkSet(&root, segs, value); err != nil {
		return nil, err
	}
	if err := h.dumpGeneric(path, ext, root); err != nil {
		return nil, err
	}
	return map[string]any{"changed": true, "kind": "map"}, nil
}

// loadGeneric decodes YAML/TOML/INI into a generic map[string]interface{}
// / []interface{} tree the shared walker understands.
func (h *MapHandler) loadGeneric(path, ext string) (interface{}, error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, err
	}

	switch ext {
	case ".yaml", ".yml":
		var v interface{}
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, schema.NewKernelError(schema.ErrUnsupportedFileType, "invalid YAML", err)
		}
		return normalizeYAML(v), nil
	case ".toml":
		var v map[string]interface{}
		if err := toml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, schema.NewKernelError(schema.ErrUnsupportedFileType, "invalid TOML", err)
		}
		return v, nil
	case ".ini", ".cfg":
		return loadINI(raw)
	default:
		return nil, schema.NewKernelError(schema.ErrUnsupportedFileType, "unsupported map extension "+ext, nil)
	}
}

// normalizeYAML converts yaml.v3's map[string]interface{} (already the
// default for mapping nodes) recursively, no-op placeholder kept distinct
// from the TOML/INI loaders in case yaml.v3 ever hands back
// map[interface{}]interface{} for legacy documents.
func normalizeYAML(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, vv := range t {
			t[k] = normalizeYAML(vv)
		}
		return t
	case []interface{}:
		for i, vv := range t {
			t[i] = normalizeYAML(vv)
		}
		return t
	default:
		return t
	}
}

func loadINI(raw string) (interface{}, error) {
	cfg, err := ini.Load([]byte(raw))
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedFileType, "invalid INI", err)
	}
	root := make(map[string]interface{})
	for _, section := range cfg.Sections() {
		kv := make(map[string]interface{})
		for _, key := range section.Keys() {
			kv[key.Name()] = key.Value()
		}
		root[section.Name()] = kv
	}
	return root, nil
}

func (h *MapHandler) dumpGeneric(path, ext string, root interface{}) error {
	switch ext {
	case ".yaml", ".yml":
		out, err := yaml.Marshal(root)
		if err != nil {
			return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to encode YAML", err)
		}
		return writeFile(path, string(out))
	case ".toml":
		m, ok := root.(map[string]interface{})
		if !ok {
			return schema.NewKernelError(schema.ErrUnsupportedOp, "TOML root must remain a table", nil)
		}
		out, err := toml.Marshal(m)
		if err != nil {
			return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to encode TOML", err)
		}
		return writeFile(path, string(out))
	case ".ini", ".cfg":
		return dumpINI(path, root)
	default:
		return schema.NewKernelError(schema.ErrUnsupportedFileType, "unsupported map extension "+ext, nil)
	}
}

func dumpINI(path string, root interface{}) error {
	m, ok := root.(map[string]interface{})
	if !ok {
		return schema.NewKernelError(schema.ErrUnsupportedOp, "INI root must remain a section map", nil)
	}
	cfg := ini.Empty()
	for sectionName, kv := range m {
		keys, ok := kv.(map[string]interface{})
		if !ok {
			return schema.NewKernelError(schema.ErrUnsupportedOp, "INI section "+sectionName+" must be a flat key map", nil)
		}
		section, err := cfg.NewSection(sectionName)
		if err != nil {
			return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to create INI section", err)
		}
		for k, v := range keys {
			if _, err := section.NewKey(k, fmt.Sprintf("%v", v)); err != nil {
				return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to set INI key", err)
			}
		}
	}
	var buf strings.Builder
	if _, err := cfg.WriteTo(&buf); err != nil {
		return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to encode INI", err)
	}
	return writeFile(path, buf.String())
}

// walkGet traverses segs over a generic map/list tree.
func walkGet(root interface{}, segs []Segment) (interface{}, error) {
	cur := root
	for _, seg := range segs {
		switch {
		case seg.IsIndex:
			arr, ok := cur.([]interface{})
			if !ok {
				return nil, schema.NewKernelError(schema.ErrInvalidSelector, fmt.Sprintf("cannot index non-list with [%d]", seg.Index), nil)
			}
			if seg.Index < 0 || seg.Index >= len(arr) {
				return nil, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("index %d out of range", seg.Index), nil)
			}
			cur = arr[seg.Index]
		default:
			m, ok := cur.(map[string]interface{})
			if !ok {
				return nil, schema.NewKernelError(schema.ErrInvalidSelector, "cannot select key "+seg.Key+" from non-map", nil)
			}
			v, exists := m[seg.Key]
			if !exists {
				return nil, schema.NewKernelError(schema.ErrKeyNotFound, "key "+seg.Key+" not found", nil)
			}
			cur = v
		}
	}
	return cur, nil
}

// walkSet traverses all but the final segment then sets the leaf,
// matching spec.md §4.B's "map replacement traverses all but the final
// selector segment then sets the leaf".
func walkSet(root *interface{}, segs []Segment, value interface{}) error {
	if len(segs) == 0 {
		return schema.NewKernelError(schema.ErrInvalidSelector, "selector is empty", nil)
	}

	// Maps and slices are Go reference types, so descending into a child
	// value and mutating it in place is visible through the parent without
	// any explicit write-back step.
	cur := root
	for i := 0; i < len(segs)-1; i++ {
		seg := segs[i]
		switch {
		case seg.IsIndex:
			arr, ok := (*cur).([]interface{})
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("index %d not found", seg.Index), nil)
			}
			cur = &arr[seg.Index]
		default:
			m, ok := (*cur).(map[string]interface{})
			if !ok {
				return schema.NewKernelError(schema.ErrInvalidSelector, "cannot select key "+seg.Key+" from non-map", nil)
			}
			v, exists := m[seg.Key]
			if !exists {
				return schema.NewKernelError(schema.ErrKeyNotFound, "key "+seg.Key+" not found", nil)
			}
			local := v
			cur = &local
		}
	}

	last := segs[len(segs)-1]
	switch {
	case last.IsIndex:
		arr, ok := (*cur).([]interface{})
		if !ok || last.Index < 0 || last.Index >= len(arr) {
			return schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("index %d not found", last.Index), nil)
		}
		arr[last.Index] = value
	default:
		m, ok := (*cur).(map[string]interface{})
		if !ok {
			return schema.NewKernelError(schema.ErrInvalidSelector, "cannot set key "+last.Key+" on non-map", nil)
		}
		m[last.Key] = value
	}
	return nil
}
