package capability

import (
	"context"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names emitted by Tracing.
const (
	SpanAgentRun  = "agent.run"
	SpanIteration = "agent.iteration"
	SpanLLMCall   = "llm.call"
	SpanToolCall  = "tool.call"
)

// Attribute keys attached to spans.
const (
	AttrAgentName  = "agentloop.agent.name"
	AttrRunID      = "agentloop.run.id"
	AttrIteration  = "agentloop.iteration"
	AttrStopReason = "agentloop.stop_reason"
	AttrToolName   = "agentloop.tool.name"
)

// TracingOptions configure Tracing.
type TracingOptions struct {
	// TracerProvider defaults to the global provider.
	TracerProvider trace.TracerProvider
}

// runSpans holds the open spans of one run.
type runSpans struct {
	ctx       context.Context
	run       trace.Span
	iteration trace.Span
	iterCtx   context.Context
	llm       trace.Span
	tool      trace.Span
}

// Tracing emits OpenTelemetry spans: one per run, one per iteration and one
// per model and tool call inside the iteration.
type Tracing struct {
	Base
	tracer trace.Tracer

	mu   sync.Mutex
	runs map[string]*runSpans
}

var _ Capability = (*Tracing)(nil)

// NewTracing creates a Tracing capability.
func NewTracing(optFns ...func(o *TracingOptions)) *Tracing {
	opts := TracingOptions{}

	for _, fn := range optFns {
		fn(&opts)
	}

	tp := opts.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}

	return &Tracing{
		tracer: tp.Tracer("github.com/hupe1980/agentloop"),
		runs:   make(map[string]*runSpans),
	}
}

// Name implements Capability.
func (t *Tracing) Name() string { return "tracing" }

func (t *Tracing) spans(runID string) *runSpans {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.runs[runID]
}

// Init implements Capability.
func (t *Tracing) Init(ctx context.Context, run *core.RunState) {
	runCtx, span := t.tracer.Start(ctx, SpanAgentRun, trace.WithAttributes(
		attribute.String(AttrAgentName, run.AgentName),
		attribute.String(AttrRunID, run.RunID),
	))

	t.mu.Lock()
	t.runs[run.RunID] = &runSpans{ctx: runCtx, run: span}
	t.mu.Unlock()
}

// StartAgentLoop implements Capability.
func (t *Tracing) StartAgentLoop(_ context.Context, run *core.RunState) bool {
	s := t.spans(run.RunID)
	if s == nil {
		return true
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	endSpan(&s.iteration)

	s.iterCtx, s.iteration = t.tracer.Start(s.ctx, SpanIteration, trace.WithAttributes(
		attribute.Int(AttrIteration, run.Iteration),
	))

	return true
}

// ProcessPrompt implements Capability.
func (t *Tracing) ProcessPrompt(_ context.Context, run *core.RunState, req model.Request) model.Request {
	s := t.spans(run.RunID)
	if s == nil || s.iterCtx == nil {
		return req
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	endSpan(&s.llm)
	_, s.llm = t.tracer.Start(s.iterCtx, SpanLLMCall)

	return req
}

// ProcessResponse implements Capability.
func (t *Tracing) ProcessResponse(_ context.Context, run *core.RunState, resp model.Response) model.Response {
	s := t.spans(run.RunID)
	if s == nil {
		return resp
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s.llm != nil && resp.Usage != nil {
		s.llm.SetAttributes(attribute.Int("agentloop.usage.total_tokens", resp.Usage.TotalTokens))
	}

	endSpan(&s.llm)

	return resp
}

// ProcessAction implements Capability.
func (t *Tracing) ProcessAction(_ context.Context, run *core.RunState, action core.Action) core.Action {
	s := t.spans(run.RunID)
	if s == nil || s.iterCtx == nil {
		return action
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	endSpan(&s.tool)
	_, s.tool = t.tracer.Start(s.iterCtx, SpanToolCall, trace.WithAttributes(
		attribute.String(AttrToolName, action.ToolName),
	))

	return action
}

// ProcessResult implements Capability.
func (t *Tracing) ProcessResult(_ context.Context, run *core.RunState, _ core.Action, result tool.Result) tool.Result {
	s := t.spans(run.RunID)
	if s == nil {
		return result
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if s.tool != nil && !result.ToolExecuted {
		s.tool.SetStatus(codes.Error, result.Error)
	}

	endSpan(&s.tool)

	return result
}

// EndAgentLoop implements Capability.
func (t *Tracing) EndAgentLoop(_ context.Context, run *core.RunState, _ Step) {
	s := t.spans(run.RunID)
	if s == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	endSpan(&s.iteration)
}

// Terminate implements Capability.
func (t *Tracing) Terminate(_ context.Context, run *core.RunState) {
	t.mu.Lock()
	s := t.runs[run.RunID]
	delete(t.runs, run.RunID)
	t.mu.Unlock()

	if s == nil {
		return
	}

	endSpan(&s.llm)
	endSpan(&s.tool)
	endSpan(&s.iteration)

	s.run.SetAttributes(
		attribute.String(AttrStopReason, run.StopReason),
		attribute.Int(AttrIteration, run.Iteration),
	)
	s.run.End()
}

func endSpan(s *trace.Span) {
	if *s != nil {
		(*s).End()
		*s = nil
	}
}
