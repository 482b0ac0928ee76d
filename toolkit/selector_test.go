package toolkit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/schema"
)

func TestParsePath_DottedBracketedString(t *testing.T) {
	segs, err := ParsePath("db.hosts[0].name")
	require.NoError(t, err)
	require.Len(t, segs, 4)
	assert.Equal(t, "db", segs[0].Key)
	assert.Equal(t, "hosts", segs[1].Key)
	assert.True(t, segs[2].IsIndex)
	assert.Equal(t, 0, segs[2].Index)
	assert.Equal(t, "name", segs[3].Key)
}

func TestParsePath_BracketedStringKey(t *testing.T) {
	segs, err := ParsePath(`config["db-name"]`)
	require.NoError(t, err)
	require.Len(t, segs, 2)
	assert.Equal(t, "config", segs[0].Key)
	assert.Equal(t, `"db-name"`, segs[1].Key)
}

func TestParsePath_StructuredList(t *testing.T) {
	segs, err := ParsePath([]interface{}{"db", "hosts", float64(1)})
	require.NoError(t, err)
	require.Len(t, segs, 3)
	assert.Equal(t, "db", segs[0].Key)
	assert.Equal(t, "hosts", segs[1].Key)
	assert.True(t, segs[2].IsIndex)
	assert.Equal(t, 1, segs[2].Index)
}

func TestParsePath_FunctionClassPassthrough(t *testing.T) {
	segs, err := ParsePath("function:parse_config")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "function:parse_config", segs[0].Key)

	segs, err = ParsePath("class:Parser")
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "class:Parser", segs[0].Key)
}

func TestParsePath_EmptyRejected(t *testing.T) {
	_, err := ParsePath("")
	require.Error(t, err)
	ke, ok := schema.AsKernelError(err)
	require.True(t, ok)
	assert.Equal(t, schema.ErrInvalidSelector, ke.Kind)

	_, err = ParsePath(nil)
	require.Error(t, err)
}

func TestParsePath_UnterminatedBracket(t *testing.T) {
	_, err := ParsePath("db[0")
	require.Error(t, err)
	ke, ok := schema.AsKernelError(err)
	require.True(t, ok)
	assert.Equal(t, schema.ErrInvalidSelector, ke.Kind)
}

func TestParseTreeSelector(t *testing.T) {
	kind, name, err := ParseTreeSelector("function:load_config")
	require.NoError(t, err)
	assert.Equal(t, "function", kind)
	assert.Equal(t, "load_config", name)

	kind, name, err = ParseTreeSelector("class:Loader")
	require.NoError(t, err)
	assert.Equal(t, "class", kind)
	assert.Equal(t, "Loader", name)

	_, _, err = ParseTreeSelector("bogus")
	require.Error(t, err)
}

func TestParseTableSelector(t *testing.T) {
	row, col, err := ParseTableSelector([]interface{}{float64(2), "name"})
	require.NoError(t, err)
	assert.Equal(t, 2, row)
	assert.Equal(t, "name", col.Key)
	assert.False(t, col.IsIndex)

	row, col, err = ParseTableSelector([]interface{}{float64(0), float64(1)})
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	assert.True(t, col.IsIndex)
	assert.Equal(t, 1, col.Index)

	_, _, err = ParseTableSelector("not-a-list")
	require.Error(t, err)
}

func TestGJSONPath(t *testing.T) {
	segs, err := ParsePath("db.hosts[0].name")
	require.NoError(t, err)
	assert.Equal(t, "db.hosts.0.name", GJSONPath(segs))
}
