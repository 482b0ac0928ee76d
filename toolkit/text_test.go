package toolkit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextHandler_Outline_Paginates(t *testing.T) {
	content := strings.Join([]string{"line1", "line2", "line3", "line4", "line5"}, "\n")
	path := writeTemp(t, "app.log", content)
	h := NewTextHandler()

	outline, err := h.Outline(path, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2", outline["preview"])
	assert.Equal(t, true, outline["truncated"])
}

func TestTextHandler_SelectReplaceUnsupported(t *testing.T) {
	path := writeTemp(t, "app.log", "hello\n")
	h := NewTextHandler()

	_, err := h.Select(path, "anything", 0, 0)
	require.Error(t, err)

	_, err = h.Replace(path, "anything", "x")
	require.Error(t, err)
}
