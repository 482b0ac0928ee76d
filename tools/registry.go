package tools

import (
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ctxmetab/kernel/schema"
)

// Registry stores registered tools alongside their compiled schemas,
// grounded on the teacher's tools.Registry (tools/registry.go) with
// RWMutex-guarded map access.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]Tool
	compiled map[string]*jsonschema.Schema
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		compiled: make(map[string]*jsonschema.Schema),
	}
}

// Register compiles the tool's schema and adds it, rejecting duplicates.
func (r *Registry) Register(t Tool) error {
	compiled, err := CompileSchema(t.Name(), t.RawSchema())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name()]; exists {
		return schema.NewToolError(t.Name(), "register", schema.ErrToolAlreadyExists)
	}
	r.tools[t.Name()] = t
	r.compiled[t.Name()] = compiled
	return nil
}

// Get retrieves a tool and its compiled schema by name.
func (r *Registry) Get(name string) (Tool, *jsonschema.Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, nil, false
	}
	return t, r.compiled[name], true
}

// Names lists every registered tool name.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Schemas returns every tool's function-list entry, keyed by name — what
// the loop hands the LLM transport as the available function list
// (spec.md §6). Each entry carries the tool's description alongside its
// JSON Schema "parameters" document, the shape transport implementations
// (e.g. litellm.FunctionDef) expect.
func (r *Registry) Schemas() map[string]map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]map[string]any, len(r.tools))
	for name, t := range r.tools {
		out[name] = map[string]any{
			"description": t.Description(),
			"parameters":  t.RawSchema(),
		}
	}
	return out
}
