package toolkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableHandler_CSV_OutlineSelectReplaceRoundTrip(t *testing.T) {
	path := writeTemp(t, "users.csv", "name,age\nalice,30\nbob,25\n")
	h := NewTableHandler()

	outline, err := h.Outline(path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, outline["row_count"])
	assert.Equal(t, []string{"name", "age"}, outline["columns"])

	sel, err := h.Select(path, []interface{}{float64(1), "name"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "bob", sel["value"])

	_, err = h.Replace(path, []interface{}{float64(1), "name"}, "carol")
	require.NoError(t, err)

	sel, err = h.Select(path, []interface{}{float64(1), "name"}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "carol", sel["value"])
}

func TestTableHandler_TSV_ColumnByIndex(t *testing.T) {
	path := writeTemp(t, "users.tsv", "name\tage\nalice\t30\n")
	h := NewTableHandler()

	sel, err := h.Select(path, []interface{}{float64(0), float64(1)}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "30", sel["value"])
}

func TestTableHandler_RowOutOfRange(t *testing.T) {
	path := writeTemp(t, "users.csv", "name,age\nalice,30\n")
	h := NewTableHandler()

	_, err := h.Select(path, []interface{}{float64(5), "name"}, 0, 0)
	require.Error(t, err)
}

func TestTableHandler_ColumnNotFound(t *testing.T) {
	path := writeTemp(t, "users.csv", "name,age\nalice,30\n")
	h := NewTableHandler()

	_, err := h.Select(path, []interface{}{float64(0), "missing"}, 0, 0)
	require.Error(t, err)
}
