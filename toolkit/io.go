package toolkit

import (
	"os"

	"github.com/ctxmetab/kernel/schema"
)

// readFile reads a file's contents as text, wrapping OS errors into the
// kernel's error taxonomy.
func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", schema.NewKernelError(schema.ErrUnsupportedOp, "failed to read "+path, err)
	}
	return string(data), nil
}

// writeFile overwrites a file's contents, preserving its existing mode.
func writeFile(path string, content string) error {
	info, err := os.Stat(path)
	mode := os.FileMode(0644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		return schema.NewKernelError(schema.ErrUnsupportedOp, "failed to write "+path, err)
	}
	return nil
}
