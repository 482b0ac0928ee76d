package tools

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctxmetab/kernel/toolkit"
)

func TestFileTools_DescribeExtractReplace_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/config.json"
	require.NoError(t, os.WriteFile(path, []byte(`{"db":{"host":"localhost","port":5432}}`), 0644))

	reg := toolkit.NewDefaultRegistry(dir)
	describe := NewDescribeFileTool(reg)
	extract := NewExtractSectionTool(reg)
	replace := NewReplaceSectionTool(reg)

	descInput, _ := json.Marshal(map[string]any{"path": path})
	result := describe.Execute(context.Background(), descInput)
	require.False(t, result.IsError())

	extractInput, _ := json.Marshal(map[string]any{"path": path, "selector": "db.port"})
	result = extract.Execute(context.Background(), extractInput)
	require.False(t, result.IsError())
	var payload map[string]any
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, float64(5432), payload["value"])

	replaceInput, _ := json.Marshal(map[string]any{"path": path, "selector": "db.port", "value": 5433})
	result = replace.Execute(context.Background(), replaceInput)
	require.False(t, result.IsError())

	result = extract.Execute(context.Background(), extractInput)
	require.False(t, result.IsError())
	require.NoError(t, json.Unmarshal(result.Data, &payload))
	assert.Equal(t, float64(5433), payload["value"])
}

func TestFileTools_UnsupportedExtensionNoFallback(t *testing.T) {
	reg := toolkit.NewRegistry()
	reg.Register(toolkit.NewMapHandler())
	describe := NewDescribeFileTool(reg)

	input, _ := json.Marshal(map[string]any{"path": "/tmp/image.png"})
	result := describe.Execute(context.Background(), input)
	require.True(t, result.IsError())
}
