package tool

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/model"
)

// Registry holds the tools available to an agent in registration order.
type Registry struct {
	mu    sync.RWMutex
	order []string
	tools map[string]Tool
	meta  map[string]Metadata
}

// NewRegistry creates a registry and registers the given tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{
		tools: make(map[string]Tool),
		meta:  make(map[string]Metadata),
	}

	if err := r.Register(tools...); err != nil {
		return nil, err
	}

	return r, nil
}

// Register validates and adds tools. Registration is all-or-nothing per call:
// when one tool is rejected none of the tools passed in the call are added.
func (r *Registry) Register(tools ...Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make(map[string]Metadata, len(tools))
	order := make([]string, 0, len(tools))

	for _, t := range tools {
		md, err := Describe(t)
		if err != nil {
			return err
		}

		if _, dup := r.tools[md.Name]; dup {
			return &RegistrationError{Tool: md.Name, Reason: "tool already registered"}
		}

		if _, dup := pending[md.Name]; dup {
			return &RegistrationError{Tool: md.Name, Reason: "tool already registered"}
		}

		pending[md.Name] = md
		order = append(order, md.Name)
	}

	for i, name := range order {
		r.tools[name] = tools[i]
		r.meta[name] = pending[name]
		r.order = append(r.order, name)
	}

	return nil
}

// MustRegister is like Register but panics on error. Intended for static setup.
func (r *Registry) MustRegister(tools ...Tool) *Registry {
	if err := r.Register(tools...); err != nil {
		panic(fmt.Sprintf("tool: %v", err))
	}

	return r
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]

	return t, ok
}

// Metadata returns the cached descriptor of the named tool.
func (r *Registry) Metadata(name string) (Metadata, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	md, ok := r.meta[name]

	return md, ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.order)
}

// Names returns the tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Tools returns the tools in registration order.
func (r *Registry) Tools() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}

	return out
}

// All returns every tool descriptor in registration order.
func (r *Registry) All() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metadata, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.meta[name])
	}

	return out
}

// Filter returns a new registry holding the tools carrying at least one of
// tags. Without tags the receiver's tools are copied.
func (r *Registry) Filter(tags ...string) *Registry {
	want := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		want[t] = struct{}{}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := &Registry{tools: make(map[string]Tool), meta: make(map[string]Metadata)}

	for _, name := range r.order {
		md := r.meta[name]
		if len(want) > 0 && !hasAnyTag(md.Tags, want) {
			continue
		}

		out.tools[name] = r.tools[name]
		out.meta[name] = md
		out.order = append(out.order, name)
	}

	return out
}

func hasAnyTag(tags []string, want map[string]struct{}) bool {
	for _, t := range tags {
		if _, ok := want[t]; ok {
			return true
		}
	}

	return false
}

// Definitions returns the model facing tool definitions in registration order.
func (r *Registry) Definitions() []model.ToolDefinition {
	all := r.All()

	defs := make([]model.ToolDefinition, 0, len(all))
	for _, md := range all {
		defs = append(defs, md.Definition())
	}

	return defs
}
