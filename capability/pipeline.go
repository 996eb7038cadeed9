package capability

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Hook names used in log events.
const (
	HookInit               = "init"
	HookStartAgentLoop     = "start_agent_loop"
	HookProcessPrompt      = "process_prompt"
	HookProcessResponse    = "process_response"
	HookProcessAction      = "process_action"
	HookProcessResult      = "process_result"
	HookProcessNewMemories = "process_new_memories"
	HookEndAgentLoop       = "end_agent_loop"
	HookShouldTerminate    = "should_terminate"
	HookTerminate          = "terminate"
)

// PipelineOptions configure a Pipeline.
type PipelineOptions struct {
	// Logger receives capability.hook.panic events. Nil disables logging.
	Logger logging.Logger
}

// Pipeline runs an ordered, fixed set of capabilities. It is built once per
// agent and is read-only afterwards.
type Pipeline struct {
	caps   []Capability
	logger logging.Logger
}

// NewPipeline creates a pipeline. Nil capabilities are skipped.
func NewPipeline(caps []Capability, optFns ...func(o *PipelineOptions)) *Pipeline {
	opts := PipelineOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	list := make([]Capability, 0, len(caps))
	for _, c := range caps {
		if c != nil {
			list = append(list, c)
		}
	}

	return &Pipeline{caps: list, logger: logging.OrNoOp(opts.Logger)}
}

// Capabilities returns the capabilities in registration order.
func (p *Pipeline) Capabilities() []Capability {
	return append([]Capability(nil), p.caps...)
}

// Len returns the number of capabilities.
func (p *Pipeline) Len() int { return len(p.caps) }

// guard runs fn and reports whether it returned normally.
func (p *Pipeline) guard(c Capability, hook string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("capability.hook.panic",
				"capability", c.Name(),
				"hook", hook,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)

			ok = false
		}
	}()

	fn()

	return true
}

// Init runs every Init hook.
func (p *Pipeline) Init(ctx context.Context, run *core.RunState) {
	for _, c := range p.caps {
		p.guard(c, HookInit, func() { c.Init(ctx, run) })
	}
}

// StartAgentLoop asks every capability in order whether the iteration may
// run. The first veto wins and the remaining capabilities are not asked. The
// vetoing capability's name is returned.
func (p *Pipeline) StartAgentLoop(ctx context.Context, run *core.RunState) (bool, string) {
	for _, c := range p.caps {
		proceed := true
		p.guard(c, HookStartAgentLoop, func() { proceed = c.StartAgentLoop(ctx, run) })

		if !proceed {
			return false, c.Name()
		}
	}

	return true, ""
}

// ProcessPrompt chains every ProcessPrompt hook.
func (p *Pipeline) ProcessPrompt(ctx context.Context, run *core.RunState, req model.Request) model.Request {
	for _, c := range p.caps {
		p.guard(c, HookProcessPrompt, func() {
			next := c.ProcessPrompt(ctx, run, req)
			req = next
		})
	}

	return req
}

// ProcessResponse chains every ProcessResponse hook.
func (p *Pipeline) ProcessResponse(ctx context.Context, run *core.RunState, resp model.Response) model.Response {
	for _, c := range p.caps {
		p.guard(c, HookProcessResponse, func() {
			next := c.ProcessResponse(ctx, run, resp)
			resp = next
		})
	}

	return resp
}

// ProcessAction chains every ProcessAction hook.
func (p *Pipeline) ProcessAction(ctx context.Context, run *core.RunState, action core.Action) core.Action {
	for _, c := range p.caps {
		p.guard(c, HookProcessAction, func() {
			next := c.ProcessAction(ctx, run, action)
			action = next
		})
	}

	return action
}

// ProcessResult chains every ProcessResult hook.
func (p *Pipeline) ProcessResult(ctx context.Context, run *core.RunState, action core.Action, result tool.Result) tool.Result {
	for _, c := range p.caps {
		p.guard(c, HookProcessResult, func() {
			next := c.ProcessResult(ctx, run, action, result)
			result = next
		})
	}

	return result
}

// ProcessNewMemories chains every ProcessNewMemories hook. Each hook gets
// its own copy of the entries.
func (p *Pipeline) ProcessNewMemories(ctx context.Context, run *core.RunState, step Step, entries []core.Entry) []core.Entry {
	for _, c := range p.caps {
		p.guard(c, HookProcessNewMemories, func() {
			next := c.ProcessNewMemories(ctx, run, step, append([]core.Entry(nil), entries...))
			entries = next
		})
	}

	return entries
}

// EndAgentLoop runs every EndAgentLoop hook.
func (p *Pipeline) EndAgentLoop(ctx context.Context, run *core.RunState, step Step) {
	for _, c := range p.caps {
		p.guard(c, HookEndAgentLoop, func() { c.EndAgentLoop(ctx, run, step) })
	}
}

// ShouldTerminate polls every capability (no short circuit) and returns true
// when any of them asks to stop, together with the first one that did.
func (p *Pipeline) ShouldTerminate(ctx context.Context, run *core.RunState, step Step) (bool, string) {
	stop, by := false, ""

	for _, c := range p.caps {
		want := false
		p.guard(c, HookShouldTerminate, func() { want = c.ShouldTerminate(ctx, run, step) })

		if want && !stop {
			stop, by = true, c.Name()
		}
	}

	return stop, by
}

// Terminate runs every Terminate hook.
func (p *Pipeline) Terminate(ctx context.Context, run *core.RunState) {
	for _, c := range p.caps {
		p.guard(c, HookTerminate, func() { c.Terminate(ctx, run) })
	}
}
