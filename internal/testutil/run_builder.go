package testutil

import (
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
)

// RunBuilder constructs a core.RunState backed by an in-memory log.
// Example:
//
//	run := NewRunBuilder("tester").Property("time_zone", "UTC").User("hi").Build()
type RunBuilder struct {
	agent     string
	runID     string
	iteration int
	startedAt time.Time
	props     map[string]any
	entries   []core.Entry
}

// NewRunBuilder creates a builder for a run of the named agent. The run ID
// defaults to "run-1".
func NewRunBuilder(agent string) *RunBuilder {
	return &RunBuilder{agent: agent, runID: "run-1", props: map[string]any{}}
}

// RunID sets the run identifier (chainable).
func (b *RunBuilder) RunID(id string) *RunBuilder {
	b.runID = id
	return b
}

// Iteration sets the current iteration (chainable).
func (b *RunBuilder) Iteration(n int) *RunBuilder {
	b.iteration = n
	return b
}

// StartedAt sets the start time (chainable).
func (b *RunBuilder) StartedAt(t time.Time) *RunBuilder {
	b.startedAt = t
	return b
}

// Property sets an ActionContext property (chainable).
func (b *RunBuilder) Property(key string, val any) *RunBuilder {
	b.props[key] = val
	return b
}

// Entry appends a memory entry of any type (chainable).
func (b *RunBuilder) Entry(typ, content string) *RunBuilder {
	b.entries = append(b.entries, core.Entry{Type: typ, Content: content})
	return b
}

// User appends a user entry (chainable).
func (b *RunBuilder) User(content string) *RunBuilder {
	return b.Entry(core.EntryUser, content)
}

// System appends a system entry (chainable).
func (b *RunBuilder) System(content string) *RunBuilder {
	return b.Entry(core.EntrySystem, content)
}

// Build returns the run state. The memory property is always a fresh log
// holding the appended entries.
func (b *RunBuilder) Build() *core.RunState {
	props := make(map[string]any, len(b.props)+1)
	for k, v := range b.props {
		props[k] = v
	}

	props[core.PropMemory] = memory.New(b.entries...)

	return &core.RunState{
		RunID:     b.runID,
		AgentName: b.agent,
		Iteration: b.iteration,
		StartedAt: b.startedAt,
		Context:   core.NewActionContext(props),
	}
}

// Context returns a standalone ActionContext holding the configured
// properties and a fresh memory with the appended entries.
func (b *RunBuilder) Context() *core.ActionContext {
	return b.Build().Context
}
