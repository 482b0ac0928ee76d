package toolkit

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"

	"github.com/ctxmetab/kernel/schema"
)

// BlobHandler is the catch-all for unknown/binary content: a size and a
// hash, nothing structural. crypto/sha256 is a hashing primitive, not a
// concern any ecosystem library in the retrieval pack specializes in.
type BlobHandler struct{}

func NewBlobHandler() *BlobHandler { return &BlobHandler{} }

// Extensions returns nil: BlobHandler is registered as the registry's
// fallback for any extension with no dedicated handler, not via a static
// extension list.
func (h *BlobHandler) Extensions() []string { return nil }

func (h *BlobHandler) Outline(path string, page, pageSize int) (map[string]any, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "failed to stat "+path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "failed to open "+path, err)
	}
	defer f.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, f); err != nil {
		return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "failed to hash "+path, err)
	}

	return map[string]any{
		"summary": "blob",
		"size":    info.Size(),
		"sha256":  hex.EncodeToString(sum.Sum(nil)),
	}, nil
}

func (h *BlobHandler) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "blob handler does not support select", nil)
}

func (h *BlobHandler) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	return nil, schema.NewKernelError(schema.ErrUnsupportedOp, "blob handler does not support replace", nil)
}
