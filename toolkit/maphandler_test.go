package toolkit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestMapHandler_JSON_OutlineSelectReplaceRoundTrip(t *testing.T) {
	path := writeTemp(t, "config.json", `{"db":{"host":"localhost","port":5432},"cache":{"ttl":60}}`)
	h := NewMapHandler()

	outline, err := h.Outline(path, 0, 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"cache", "db"}, outline["keys"])

	sel, err := h.Select(path, "db.port", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(5432), sel["value"])

	_, err = h.Replace(path, "db.port", float64(5433))
	require.NoError(t, err)

	sel, err = h.Select(path, "db.port", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, float64(5433), sel["value"], "select(path, selector) must equal the value just replaced")
}

func TestMapHandler_JSON_KeyNotFound(t *testing.T) {
	path := writeTemp(t, "config.json", `{"db":{"host":"localhost"}}`)
	h := NewMapHandler()

	_, err := h.Select(path, "db.missing", 0, 0)
	require.Error(t, err)
}

func TestMapHandler_YAML_RoundTrip(t *testing.T) {
	path := writeTemp(t, "config.yaml", "db:\n  host: localhost\n  port: 5432\ncache:\n  ttl: 60\n")
	h := NewMapHandler()

	sel, err := h.Select(path, "db.host", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "localhost", sel["value"])

	_, err = h.Replace(path, "db.host", "db.internal")
	require.NoError(t, err)

	sel, err = h.Select(path, "db.host", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", sel["value"])
}

func TestMapHandler_TOML_RoundTrip(t *testing.T) {
	path := writeTemp(t, "config.toml", "[db]\nhost = \"localhost\"\nport = 5432\n")
	h := NewMapHandler()

	sel, err := h.Select(path, "db.port", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5432, sel["value"])

	_, err = h.Replace(path, "db.port", int64(5433))
	require.NoError(t, err)

	sel, err = h.Select(path, "db.port", 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5433, sel["value"])
}

func TestMapHandler_INI_RoundTrip(t *testing.T) {
	path := writeTemp(t, "config.ini", "[db]\nhost = localhost\nport = 5432\n")
	h := NewMapHandler()

	sel, err := h.Select(path, "db.host", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "localhost", sel["value"])

	_, err = h.Replace(path, "db.host", "db.internal")
	require.NoError(t, err)

	sel, err = h.Select(path, "db.host", 0, 0)
	require.NoError(t, err)
	assert.Equal(t, "db.internal", sel["value"])
}

func TestMapHandler_SelectCapPaginatesList(t *testing.T) {
	items := make([]interface{}, 0, 80)
	for i := 0; i < 80; i++ {
		items = append(items, i)
	}
	path := writeTemp(t, "big.json", "{}")
	h := NewMapHandler()
	_, err := h.Replace(path, "items", items)
	require.NoError(t, err)

	sel, err := h.Select(path, "items", 1, 0)
	require.NoError(t, err)
	assert.Equal(t, true, sel["truncated"], "a list over the entry cap must paginate instead of returning whole")
	assert.Equal(t, float64(80), floatOf(sel["total"]))
}

func floatOf(v interface{}) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case float64:
		return n
	default:
		return -1
	}
}
