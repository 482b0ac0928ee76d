package toolkit

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobHandler_Outline_SizeAndHash(t *testing.T) {
	content := "binary-ish payload"
	path := writeTemp(t, "payload.bin", content)
	h := NewBlobHandler()

	outline, err := h.Outline(path, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, len(content), outline["size"])

	sum := sha256.Sum256([]byte(content))
	assert.Equal(t, hex.EncodeToString(sum[:]), outline["sha256"])
}

func TestBlobHandler_SelectReplaceUnsupported(t *testing.T) {
	path := writeTemp(t, "payload.bin", "x")
	h := NewBlobHandler()

	_, err := h.Select(path, "anything", 0, 0)
	require.Error(t, err)

	_, err = h.Replace(path, "anything", "x")
	require.Error(t, err)
}
