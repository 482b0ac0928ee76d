package toolkit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ctxmetab/kernel/schema"
)

// TableHandler implements outline/select/replace for delimited tables.
// encoding/csv is stdlib; no third-party CSV library appears anywhere in
// the retrieval pack (see DESIGN.md).
type TableHandler struct{}

func NewTableHandler() *TableHandler { return &TableHandler{} }

func (h *TableHandler) Extensions() []string { return []string{".csv", ".tsv"} }

func delimiterFor(path string) rune {
	if strings.EqualFold(filepath.Ext(path), ".tsv") {
		return '\t'
	}
	return ','
}

func (h *TableHandler) readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "failed to open "+path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = delimiterFor(path)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedFileType, "invalid delimited table", err)
	}
	return rows, nil
}

func (h *TableHandler) writeAll(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to open "+path+" for writing", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Comma = delimiterFor(path)
	if err := w.WriteAll(rows); err != nil {
		return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to write "+path, err)
	}
	w.Flush()
	return w.Error()
}

func (h *TableHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	rows, err := h.readAll(path)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return map[string]any{"summary": "table", "row_count": 0, "columns": []string{}, "head": [][]string{}}, nil
	}

	columns := rows[0]
	dataRows := rows[1:]

	start, end, _ := paginateSlice(len(dataRows), page, pageSize, "")
	head := dataRows[start:end]
	if len(head) > 10 {
		head = head[:10]
	}

	return map[string]any{
		"summary":   "table",
		"row_count": len(dataRows),
		"columns":   columns,
		"head":      head,
	}, nil
}

func (h *TableHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	row, col, err := ParseTableSelector(selector)
	if err != nil {
		return nil, err
	}

	rows, err := h.readAll(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, "table has no data rows", nil)
	}
	columns := rows[0]
	dataRows := rows[1:]

	if row < 0 || row >= len(dataRows) {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("row %d out of range", row), nil)
	}

	colIndex, err := resolveColumn(columns, col)
	if err != nil {
		return nil, err
	}
	record := dataRows[row]
	if colIndex >= len(record) {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, "column out of range for this row", nil)
	}

	return map[string]any{"kind": "table", "value": record[colIndex]}, nil
}

func resolveColumn(columns []string, col Segment) (int, error) {
	if col.IsIndex {
		if col.Index < 0 || col.Index >= len(columns) {
			return 0, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("column index %d out of range", col.Index), nil)
		}
		return col.Index, nil
	}
	for i, c := range columns {
		if c == col.Key {
			return i, nil
		}
	}
	return 0, schema.NewKernelError(schema.ErrKeyNotFound, "column "+col.Key+" not found", nil)
}

func (h *TableHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	row, col, err := ParseTableSelector(selector)
	if err != nil {
		return nil, err
	}

	rows, err := h.readAll(path)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, "table has no data rows", nil)
	}
	columns := rows[0]
	dataRows := rows[1:]

	if row < 0 || row >= len(dataRows) {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, fmt.Sprintf("row %d out of range", row), nil)
	}
	colIndex, err := resolveColumn(columns, col)
	if err != nil {
		return nil, err
	}
	if colIndex >= len(dataRows[row]) {
		return nil, schema.NewKernelError(schema.ErrKeyNotFound, "column out of range for this row", nil)
	}

	dataRows[row][colIndex] = toCellString(value)

	out := make([][]string, 0, len(rows))
	out = append(out, columns)
	out = append(out, dataRows...)
	if err := h.writeAll(path, out); err != nil {
		return nil, err
	}
	return map[string]any{"changed": true, "kind": "table"}, nil
}

func toCellString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
