package tool

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
	"github.com/hupe1980/agentloop/logging"
)

// Result is the structured outcome of one tool invocation. Exactly one of
// Result and Error is meaningful, selected by ToolExecuted.
type Result struct {
	ToolExecuted bool   `json:"tool_executed"`
	Result       any    `json:"result,omitempty"`
	Error        string `json:"error,omitempty"`

	// Err keeps the typed failure (a *ToolError) for callers that want to
	// inspect codes or sentinels.
	Err error `json:"-"`
	// Duration of the tool call.
	Duration time.Duration `json:"-"`
}

// Failure builds a non-executed result from err.
func Failure(err error) Result {
	return Result{ToolExecuted: false, Error: err.Error(), Err: err}
}

// Success builds an executed result.
func Success(v any) Result {
	return Result{ToolExecuted: true, Result: v}
}

// Options configure an Executor.
type Options struct {
	// Logger receives tool.call.* events. Nil disables logging.
	Logger logging.Logger
	// Clock is used for durations (defaults to time.Now).
	Clock func() time.Time
}

// Executor binds arguments, invokes tools and converts every failure into a
// structured Result.
type Executor struct {
	opts Options
}

// NewExecutor creates an Executor.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{Clock: time.Now}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	return &Executor{opts: opts}
}

// ExecuteAction resolves action.ToolName in reg and executes it. Unknown
// tools yield the same structured failure as a failing tool.
func (e *Executor) ExecuteAction(ctx context.Context, actx *core.ActionContext, reg *Registry, action core.Action) Result {
	var (
		t  Tool
		ok bool
	)

	if reg != nil {
		t, ok = reg.Get(action.ToolName)
	}

	if !ok {
		err := &ToolError{
			Tool:    action.ToolName,
			Message: fmt.Sprintf("tool %q is not registered", action.ToolName),
			Code:    CodeUnknownTool,
			cause:   core.ErrUnknownTool,
		}

		e.opts.Logger.Warn("tool.call.unknown", "tool", action.ToolName)

		return Failure(err)
	}

	return e.Execute(ctx, actx, t, action.Args)
}

// Execute runs t with the model supplied arguments. It never panics and
// never returns an error: failures are reported through Result.
func (e *Executor) Execute(ctx context.Context, actx *core.ActionContext, t Tool, supplied map[string]any) (res Result) {
	if t == nil {
		return Failure(&ToolError{Message: "tool is nil", Code: CodeUnknownTool, cause: core.ErrUnknownTool})
	}

	name := t.Name()
	start := e.opts.Clock()
	params := t.Parameters()

	e.opts.Logger.Debug("tool.call.start", "tool", name)

	defer func() {
		res.Duration = e.opts.Clock().Sub(start)
	}()

	args := Bind(params, supplied, actx)
	applyDefaults(params, args)

	if err := util.ValidateParameters(args.Public(), publicSchema(params)); err != nil {
		e.opts.Logger.Warn("tool.call.validation_failed", "tool", name, "error", err.Error())

		return Failure(&ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    CodeValidation,
			Details: err,
			cause:   err,
		})
	}

	if missing := missingContext(params, args); missing != "" {
		e.opts.Logger.Warn("tool.call.missing_context", "tool", name, "property", missing)

		return Failure(&ToolError{
			Tool:    name,
			Message: fmt.Sprintf("required context property %q is not set", missing),
			Code:    CodeMissingContext,
			cause:   core.ErrMissingContextProperty,
		})
	}

	out, err := e.invoke(ctx, t, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, cause: err}
		}

		if toolErr.Tool == "" {
			toolErr.Tool = name
		}

		e.opts.Logger.Error("tool.call.error", "tool", name, "code", toolErr.Code, "error", toolErr.Message)

		return Failure(toolErr)
	}

	e.opts.Logger.Info("tool.call.success", "tool", name, "duration_ms", e.opts.Clock().Sub(start).Milliseconds())

	return Success(out)
}

func (e *Executor) invoke(ctx context.Context, t Tool, args Args) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("tool.call.panic", "tool", t.Name(), "panic", r, "stack", string(debug.Stack()))
			err = &ToolError{Tool: t.Name(), Message: fmt.Sprintf("panic: %v", r), Code: CodePanic}
		}
	}()

	return t.Call(ctx, args)
}

func applyDefaults(params []Parameter, args Args) {
	for _, p := range params {
		if p.Default == nil || Normalize(p).Hidden() {
			continue
		}

		if _, ok := args[p.Name]; !ok {
			args[p.Name] = p.Default
		}
	}
}

// missingContext returns the first required context-sourced parameter that
// has no value after binding.
func missingContext(params []Parameter, args Args) string {
	for _, p := range params {
		p = Normalize(p)
		if !p.Required || p.Source == SourceModel {
			continue
		}

		if _, ok := args[p.Name]; !ok {
			if p.Source == SourceContext {
				return p.ContextKey
			}

			return p.Name
		}
	}

	return ""
}
