package toolkit

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/ctxmetab/kernel/schema"
)

// Handler is the capability interface every shape implements: the teacher's
// handler-registry pattern (tools/registry.go's Registry/Tool split),
// generalized to extension-keyed dispatch (spec.md §9's "replace the
// handler-registry pattern with a capability interface" design note).
type Handler interface {
	Extensions() []string
	Outline(path string, page, pageSize int) (map[string]any, error)
	Select(path string, selector interface{}, page, pageSize int) (map[string]any, error)
	Replace(path string, selector interface{}, value interface{}) (map[string]any, error)
}

// Registry dispatches a path to its extension's Handler. A Registry with
// no fallback returns the unsupported_file_type error spec.md §4.A names
// for any extension outside its registered set; NewDefaultRegistry installs
// BlobHandler as that fallback, so an unrecognized extension degrades to a
// size/hash blob response instead of a hard error (spec.md's outline
// bullet list names a "blob" outcome for unknown/binary content — that
// outcome is only reachable through a fallback, since blob has no
// extension set of its own).
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	fallback Handler
}

// NewRegistry builds an empty registry with no fallback handler.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// NewDefaultRegistry wires every shape handler this repo ships, keyed by
// the extensions spec.md §6 lists as supported, plus BlobHandler as the
// fallback for anything else.
func NewDefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register(NewTreeHandler())
	r.Register(NewMapHandler())
	r.Register(NewTableHandler())
	r.Register(NewTextHandler())
	r.Register(NewMarkdownHandler())
	r.fallback = NewBlobHandler()
	_ = workDir // reserved for handlers that need to resolve relative paths
	return r
}

// Register binds a handler to each extension it declares, last write wins.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range h.Extensions() {
		r.handlers[strings.ToLower(ext)] = h
	}
}

// Resolve returns the handler for path's extension.
func (r *Registry) Resolve(path string) (Handler, error) {
	ext := strings.ToLower(filepath.Ext(path))

	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.handlers[ext]; ok {
		return h, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}

	supported := make([]string, 0, len(r.handlers))
	for e := range r.handlers {
		supported = append(supported, e)
	}
	sort.Strings(supported)
	return nil, schema.NewKernelError(
		schema.ErrUnsupportedFileType,
		fmt.Sprintf("unsupported extension %q; supported: %s", ext, strings.Join(supported, " ")),
		nil,
	)
}

// SupportedExtensions lists every extension with a registered handler, used
// by the unsupported-file-type error and by diagnostics.
func (r *Registry) SupportedExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.handlers))
	for e := range r.handlers {
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}

// Outline dispatches outline(path, page, pageSize) to the resolved handler.
func (r *Registry) Outline(path string, page, pageSize int) (map[string]any, error) {
	h, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return h.Outline(path, page, pageSize)
}

// Select dispatches select(path, selector, page, pageSize) to the resolved handler.
func (r *Registry) Select(path string, selector interface{}, page, pageSize int) (map[string]any, error) {
	h, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return h.Select(path, selector, page, pageSize)
}

// Replace dispatches replace(path, selector, value) to the resolved handler.
func (r *Registry) Replace(path string, selector interface{}, value interface{}) (map[string]any, error) {
	h, err := r.Resolve(path)
	if err != nil {
		return nil, err
	}
	return h.Replace(path, selector, value)
}
