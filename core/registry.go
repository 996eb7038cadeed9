package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DelegateRequest is the input of a delegated run.
type DelegateRequest struct {
	// Task becomes the user entry of the child run.
	Task string
	// Memory is the log the child run appends to. A fresh log isolates the
	// child; passing the parent's log shares it (hand-off).
	Memory Memory
	// Properties seed the child's ActionContext.
	Properties map[string]any
}

// RunFunc is the invocable entrypoint of a registered agent. It returns the
// memory the child run wrote to.
type RunFunc func(ctx context.Context, req DelegateRequest) (Memory, error)

// AgentRegistry maps agent names to run entrypoints. It is populated before a
// run starts and only read during it.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]RunFunc
}

// NewAgentRegistry returns an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]RunFunc)}
}

// Register adds (or replaces) the entrypoint for name.
func (r *AgentRegistry) Register(name string, run RunFunc) error {
	if name == "" {
		return fmt.Errorf("agent name must not be empty")
	}

	if run == nil {
		return fmt.Errorf("agent %q: run function must not be nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.agents[name] = run

	return nil
}

// Lookup returns the entrypoint for name.
func (r *AgentRegistry) Lookup(name string) (RunFunc, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAgentNotFound, name)
	}

	return run, nil
}

// Names returns the registered agent names in lexical order.
func (r *AgentRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}

	sort.Strings(names)

	return names
}
