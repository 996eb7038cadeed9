package capability

import (
	"context"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Step carries what the current iteration produced. Action and Result are
// nil when the model gave a final answer instead of a tool call.
type Step struct {
	Response model.Response
	Action   *core.Action
	Result   *tool.Result
}

// Final reports whether the step is a final answer.
func (s Step) Final() bool { return s.Action == nil }

// Capability is the fixed set of loop extension points.
type Capability interface {
	// Name identifies the capability in logs and metrics.
	Name() string

	// Init runs once before the first iteration.
	Init(ctx context.Context, run *core.RunState)
	// StartAgentLoop runs at the start of every iteration. Returning false
	// vetoes the iteration.
	StartAgentLoop(ctx context.Context, run *core.RunState) bool
	// ProcessPrompt transforms the request before it is sent to the model.
	ProcessPrompt(ctx context.Context, run *core.RunState, req model.Request) model.Request
	// ProcessResponse transforms the model response before it is parsed.
	ProcessResponse(ctx context.Context, run *core.RunState, resp model.Response) model.Response
	// ProcessAction transforms the parsed action before binding and execution.
	ProcessAction(ctx context.Context, run *core.RunState, action core.Action) core.Action
	// ProcessResult transforms the tool result before memory entries are built.
	ProcessResult(ctx context.Context, run *core.RunState, action core.Action, result tool.Result) tool.Result
	// ProcessNewMemories filters or augments the entries about to be appended.
	ProcessNewMemories(ctx context.Context, run *core.RunState, step Step, entries []core.Entry) []core.Entry
	// EndAgentLoop runs at the end of every completed iteration.
	EndAgentLoop(ctx context.Context, run *core.RunState, step Step)
	// ShouldTerminate is polled after every iteration.
	ShouldTerminate(ctx context.Context, run *core.RunState, step Step) bool
	// Terminate runs once after the loop exits.
	Terminate(ctx context.Context, run *core.RunState)
}

// Base implements every hook as a no-op. Embed it and override what you need.
type Base struct{}

// Init implements Capability.
func (Base) Init(context.Context, *core.RunState) {}

// StartAgentLoop implements Capability.
func (Base) StartAgentLoop(context.Context, *core.RunState) bool { return true }

// ProcessPrompt implements Capability.
func (Base) ProcessPrompt(_ context.Context, _ *core.RunState, req model.Request) model.Request {
	return req
}

// ProcessResponse implements Capability.
func (Base) ProcessResponse(_ context.Context, _ *core.RunState, resp model.Response) model.Response {
	return resp
}

// ProcessAction implements Capability.
func (Base) ProcessAction(_ context.Context, _ *core.RunState, action core.Action) core.Action {
	return action
}

// ProcessResult implements Capability.
func (Base) ProcessResult(_ context.Context, _ *core.RunState, _ core.Action, result tool.Result) tool.Result {
	return result
}

// ProcessNewMemories implements Capability.
func (Base) ProcessNewMemories(_ context.Context, _ *core.RunState, _ Step, entries []core.Entry) []core.Entry {
	return entries
}

// EndAgentLoop implements Capability.
func (Base) EndAgentLoop(context.Context, *core.RunState, Step) {}

// ShouldTerminate implements Capability.
func (Base) ShouldTerminate(context.Context, *core.RunState, Step) bool { return false }

// Terminate implements Capability.
func (Base) Terminate(context.Context, *core.RunState) {}
