package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/agentloop/capability"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// Stop reasons reported in Result.Reason.
const (
	StopFinalAnswer   = "final_answer"
	StopTerminateTool = "terminate_tool"
	StopCapability    = "capability"
	StopMaxIterations = "max_iterations"
	StopMaxDuration   = "max_duration"
	StopModelError    = "model_error"
	StopCancelled     = "cancelled"
)

// Default run bounds.
const (
	DefaultMaxIterations = 10
	DefaultMaxDuration   = 180 * time.Second
)

// Options configures an Agent.
type Options struct {
	// Description is shown to other agents when this one is registered for
	// delegation.
	Description string
	// Instructions is a text/template rendered against the run's context
	// properties and sent as the system prompt.
	Instructions string
	Goals        []core.Goal
	// Language builds prompts and parses actions (default
	// FunctionCallingLanguage).
	Language     Language
	Tools        []tool.Tool
	Capabilities []capability.Capability
	// AgentRegistry is exposed to delegation tools under "agent_registry".
	AgentRegistry *core.AgentRegistry
	// Properties seed the ActionContext of every run.
	Properties map[string]any
	// MaxIterations bounds the loop; zero disables the bound.
	MaxIterations int
	// MaxDuration bounds the wall-clock time of a run; zero disables the
	// bound. Both bounds are checked between iterations only.
	MaxDuration time.Duration
	// Stream requests streaming responses from the model.
	Stream bool
	Logger *logging.RunLogger
	Clock  func() time.Time
}

// Agent runs the capability-wrapped tool loop against a model.
type Agent struct {
	name     string
	llm      model.Model
	opts     Options
	tools    *tool.Registry
	pipeline *capability.Pipeline
	executor *tool.Executor
}

// New creates an agent. It fails when a tool cannot be registered.
func New(name string, llm model.Model, optFns ...func(o *Options)) (*Agent, error) {
	opts := Options{
		Instructions:  fmt.Sprintf("You are %s, an AI agent that completes tasks using the available tools.", name),
		Language:      FunctionCallingLanguage{},
		MaxIterations: DefaultMaxIterations,
		MaxDuration:   DefaultMaxDuration,
		Clock:         time.Now,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if name == "" {
		return nil, fmt.Errorf("agent name must not be empty")
	}

	if llm == nil {
		return nil, fmt.Errorf("agent %s: model must not be nil", name)
	}

	if opts.Language == nil {
		opts.Language = FunctionCallingLanguage{}
	}

	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewDiscardLogger()
	}

	opts.Logger = opts.Logger.WithComponent("agent")

	tools, err := tool.NewRegistry(opts.Tools...)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	return &Agent{
		name:  name,
		llm:   llm,
		opts:  opts,
		tools: tools,
		pipeline: capability.NewPipeline(opts.Capabilities, func(o *capability.PipelineOptions) {
			o.Logger = opts.Logger
		}),
		executor: tool.NewExecutor(func(o *tool.Options) {
			o.Logger = opts.Logger
			o.Clock = opts.Clock
		}),
	}, nil
}

// Name returns the agent name.
func (a *Agent) Name() string { return a.name }

// Description returns the configured description.
func (a *Agent) Description() string { return a.opts.Description }

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// RunOptions configure a single run.
type RunOptions struct {
	// Memory is appended to by the run. Nil starts with an empty log.
	Memory core.Memory
	// Properties are merged over Options.Properties.
	Properties map[string]any
	// RunID overrides the generated run identifier.
	RunID string
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Output     string
	Reason     string
	Iterations int
	Memory     core.Memory
	Context    *core.ActionContext
}

// outcome is what one iteration decided.
type outcome struct {
	step   capability.Step
	done   bool
	reason string
	output string
}

// Run executes the loop for input until a final answer, a terminal tool, a
// capability request or an exhausted bound stops it. Bound exhaustion is not
// an error: the Result carries the notice as output. Only a failing model
// call (wrapping core.ErrModelFailure) or a cancelled ctx end the run with an
// error. Cancellation is observed between iterations.
func (a *Agent) Run(ctx context.Context, input string, optFns ...func(o *RunOptions)) (*Result, error) {
	ropts := RunOptions{}
	for _, fn := range optFns {
		fn(&ropts)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mem := ropts.Memory
	if mem == nil {
		mem = memory.New()
	}

	runID := ropts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	actx := core.NewActionContext(a.properties(ropts.Properties, mem))

	instructions, err := util.RenderTemplate(a.opts.Instructions, actx.Properties())
	if err != nil {
		return nil, fmt.Errorf("agent %s: instructions: %w", a.name, err)
	}

	run := &core.RunState{
		RunID:     runID,
		AgentName: a.name,
		Goals:     a.opts.Goals,
		Input:     input,
		StartedAt: a.opts.Clock(),
		Context:   actx,
	}

	log := a.opts.Logger.WithRun(a.name, runID)
	log.Info("agent.run.start", "max_iterations", a.opts.MaxIterations, "max_duration", a.opts.MaxDuration)

	if input != "" {
		mem.Add(core.Entry{Type: core.EntryUser, Content: input})
	}

	a.pipeline.Init(ctx, run)

	budget := core.NewBudget(a.opts.MaxIterations, a.opts.MaxDuration, a.opts.Clock)
	result := &Result{RunID: runID, Memory: mem, Context: actx}

	finish := func(reason, output string) {
		run.StopReason = reason
		result.Reason = reason
		result.Output = output
		result.Iterations = budget.Count()

		a.pipeline.Terminate(context.WithoutCancel(ctx), run)
		log.Info("agent.run.end", "reason", reason, "iterations", result.Iterations, "duration", budget.Elapsed())
	}

	// stopRequested polls the capabilities and finishes the run when one of
	// them asks to stop. Vetoed iterations are polled with an empty step.
	stopRequested := func(step capability.Step) bool {
		stop, by := a.pipeline.ShouldTerminate(ctx, run, step)
		if !stop {
			return false
		}

		log.Info("agent.run.stop_requested", "capability", by)

		output := ""
		if e, ok := memory.Last(mem); ok {
			output = e.Content
		}

		finish(StopCapability, output)

		return true
	}

	for {
		if err := ctx.Err(); err != nil {
			finish(StopCancelled, "")
			return nil, err
		}

		if budget.IterationsExhausted() {
			finish(StopMaxIterations, budget.Notice())
			return result, nil
		}

		if budget.DurationExhausted() {
			finish(StopMaxDuration, budget.Notice())
			return result, nil
		}

		budget.Increment()
		run.Iteration = budget.Count()

		if proceed, by := a.pipeline.StartAgentLoop(ctx, run); !proceed {
			log.Info("agent.iteration.vetoed", "iteration", run.Iteration, "capability", by)

			if stopRequested(capability.Step{}) {
				return result, nil
			}

			continue
		}

		started := a.opts.Clock()

		out, err := a.iterate(ctx, run, instructions, log)
		if err != nil {
			finish(StopModelError, "")
			return nil, err
		}

		a.pipeline.EndAgentLoop(ctx, run, out.step)

		action := StopFinalAnswer
		if out.step.Action != nil {
			action = out.step.Action.ToolName
		}

		log.LogIteration(run.Iteration, action, a.opts.Clock().Sub(started))

		if out.done {
			finish(out.reason, out.output)
			return result, nil
		}

		if stopRequested(out.step) {
			return result, nil
		}
	}
}

// iterate performs one prompt, model call, action and memory update.
func (a *Agent) iterate(ctx context.Context, run *core.RunState, instructions string, log *logging.RunLogger) (outcome, error) {
	mem := run.Memory()

	req := a.opts.Language.Construct(Prompt{
		Instructions: instructions,
		Goals:        a.opts.Goals,
		Memory:       mem.Entries(),
		Tools:        a.tools.All(),
	})
	req.Stream = a.opts.Stream
	req = a.pipeline.ProcessPrompt(ctx, run, req)

	started := a.opts.Clock()
	resp, err := model.Collect(a.llm.Generate(ctx, req))

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}

	log.LogLLMCall(a.llm.Info().Name, tokens, a.opts.Clock().Sub(started), err == nil, err)

	if err != nil {
		return outcome{}, fmt.Errorf("agent %s: %w: %w", a.name, core.ErrModelFailure, err)
	}

	resp = a.pipeline.ProcessResponse(ctx, run, resp)

	parsed, err := a.opts.Language.Parse(resp)
	if err != nil {
		log.Warn("agent.response.malformed", "error", err.Error())

		parsed = nil
	}

	out := outcome{step: capability.Step{Response: resp}}

	var entries []core.Entry

	if parsed == nil {
		entries = []core.Entry{{Type: core.EntryAssistant, Content: resp.Content}}
		out.done, out.reason, out.output = true, StopFinalAnswer, resp.Content
	} else {
		action := a.pipeline.ProcessAction(ctx, run, *parsed)

		res := a.executor.ExecuteAction(ctx, run.Context, a.tools, action)
		log.LogToolCall(action.ToolName, res.Duration, res.ToolExecuted, res.Err)

		res = a.pipeline.ProcessResult(ctx, run, action, res)

		out.step.Action = &action
		out.step.Result = &res

		resultType := core.EntryEnvironment
		if !res.ToolExecuted {
			resultType = core.EntryError
		}

		entries = []core.Entry{
			{Type: core.EntryAssistant, Content: encode(action)},
			{Type: resultType, Content: encode(res)},
		}

		if md, ok := a.tools.Metadata(action.ToolName); ok && md.Terminal && res.ToolExecuted {
			out.done, out.reason, out.output = true, StopTerminateTool, fmt.Sprint(res.Result)
		}
	}

	entries = a.pipeline.ProcessNewMemories(ctx, run, out.step, entries)
	mem.Add(entries...)

	return out, nil
}

// properties assembles the ActionContext properties of a run. Loop owned
// keys always win.
func (a *Agent) properties(runProps map[string]any, mem core.Memory) map[string]any {
	props := make(map[string]any, len(a.opts.Properties)+len(runProps)+4)

	for k, v := range a.opts.Properties {
		props[k] = v
	}

	for k, v := range runProps {
		props[k] = v
	}

	props[core.PropMemory] = mem
	props[core.PropToolRegistry] = a.tools
	props[core.PropModel] = a.llm

	if a.opts.AgentRegistry != nil {
		props[core.PropAgentRegistry] = a.opts.AgentRegistry
	}

	return props
}

// RunFunc adapts the agent to core.RunFunc so it can be registered in an
// AgentRegistry and invoked by delegation tools.
func (a *Agent) RunFunc() core.RunFunc {
	return func(ctx context.Context, req core.DelegateRequest) (core.Memory, error) {
		res, err := a.Run(ctx, req.Task, func(o *RunOptions) {
			o.Memory = req.Memory
			o.Properties = req.Properties
		})
		if err != nil {
			return nil, err
		}

		return res.Memory, nil
	}
}

// encode renders v as JSON, falling back to fmt formatting for values that
// cannot be marshalled.
func encode(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}

	return string(b)
}
