package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentloop/capability"
	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"github.com/hupe1980/agentloop/tool/agenttool"
	"github.com/hupe1980/agentloop/tool/filetool"
)

var fixedNow = time.Date(2025, time.March, 14, 15, 9, 26, 0, time.UTC)

func echoTool() tool.Tool {
	return tool.New(tool.Config{
		Name:        "echo",
		Description: "Echo the text back",
		Parameters:  []tool.Parameter{tool.String("text", "Text to echo")},
	}, func(_ context.Context, args tool.Args) (any, error) {
		return args.String("text"), nil
	})
}

func newAgent(t *testing.T, llm model.Model, optFns ...func(o *Options)) *Agent {
	t.Helper()

	a, err := New("tester", llm, optFns...)
	require.NoError(t, err)

	return a
}

// hooks records the memory size seen at every ProcessNewMemories call and
// optionally vetoes or stops iterations.
type hooks struct {
	capability.Base
	vetoFirst  bool
	stopAfter  int
	sizes      []int
	terminated []string
	iterations int
}

func (h *hooks) Name() string { return "hooks" }

func (h *hooks) StartAgentLoop(_ context.Context, run *core.RunState) bool {
	return !(h.vetoFirst && run.Iteration == 1)
}

func (h *hooks) ProcessNewMemories(_ context.Context, run *core.RunState, _ capability.Step, entries []core.Entry) []core.Entry {
	h.sizes = append(h.sizes, run.Memory().Len())
	return entries
}

func (h *hooks) EndAgentLoop(context.Context, *core.RunState, capability.Step) { h.iterations++ }

func (h *hooks) ShouldTerminate(context.Context, *core.RunState, capability.Step) bool {
	return h.stopAfter > 0 && h.iterations >= h.stopAfter
}

func (h *hooks) Terminate(_ context.Context, run *core.RunState) {
	h.terminated = append(h.terminated, run.StopReason)
}

func TestRun_PlanFirstPlansEachRun(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.TextResponse("PLAN A"), model.TextResponse("done 1"),
		model.TextResponse("PLAN B"), model.TextResponse("done 2"),
	)
	a := newAgent(t, llm, func(o *Options) {
		o.Capabilities = []capability.Capability{capability.NewPlanFirst()}
	})

	for i, want := range []string{"done 1", "done 2"} {
		res, err := a.Run(context.Background(), "task")
		require.NoError(t, err)

		assert.Equal(t, want, res.Output, "run %d", i+1)
		assert.Len(t, memory.Filter(res.Memory, core.EntrySystem), 1, "run %d", i+1)
	}
}

func TestRun_FinalAnswer(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("42"))
	a := newAgent(t, llm)

	res, err := a.Run(context.Background(), "what is the answer?")
	require.NoError(t, err)

	assert.Equal(t, "42", res.Output)
	assert.Equal(t, StopFinalAnswer, res.Reason)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, []core.Entry{
		{Type: core.EntryUser, Content: "what is the answer?"},
		{Type: core.EntryAssistant, Content: "42"},
	}, res.Memory.Entries())
}

func TestRun_MaxIterationsExhausted(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	for i := 0; i < 5; i++ {
		llm.Script(model.ToolCallResponse("call", "echo", map[string]any{"text": "again"}))
	}

	h := &hooks{}
	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{echoTool()}
		o.Capabilities = []capability.Capability{h}
		o.MaxIterations = 3
	})

	res, err := a.Run(context.Background(), "loop forever")
	require.NoError(t, err)

	assert.Equal(t, StopMaxIterations, res.Reason)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, llm.Calls())
	assert.Contains(t, res.Output, "maximum of 3 iterations")
	assert.Equal(t, 7, res.Memory.Len())
	assert.Equal(t, []string{StopMaxIterations}, h.terminated)
}

func TestRun_MaxDurationExhausted(t *testing.T) {
	now := fixedNow
	clock := func() time.Time {
		now = now.Add(time.Minute)
		return now
	}

	llm := model.NewMockModel("mock", "test")
	for i := 0; i < 10; i++ {
		llm.Script(model.ToolCallResponse("call", "echo", map[string]any{"text": "x"}))
	}

	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{echoTool()}
		o.MaxDuration = 3 * time.Minute
		o.Clock = clock
	})

	res, err := a.Run(context.Background(), "slow")
	require.NoError(t, err)

	assert.Equal(t, StopMaxDuration, res.Reason)
	assert.Contains(t, res.Output, "maximum duration")
	assert.Less(t, res.Iterations, 10)
}

func TestRun_ToolFailureIsRecorded(t *testing.T) {
	dir := t.TempDir()

	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "read_file", map[string]any{"file_name": "a.txt"}),
		model.TextResponse("the file does not exist"),
	)

	a := newAgent(t, llm, func(o *Options) {
		o.Tools = filetool.Tools(func(o *filetool.Options) { o.Root = dir })
	})

	res, err := a.Run(context.Background(), "read a.txt")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, core.EntryAssistant, entries[1].Type)
	assert.Contains(t, entries[1].Content, `"tool_name":"read_file"`)
	assert.Equal(t, core.EntryError, entries[2].Type)
	assert.Contains(t, entries[2].Content, `"tool_executed":false`)
	assert.Contains(t, entries[2].Content, "a.txt")
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, StopFinalAnswer, res.Reason)
}

func TestRun_ToolSuccessIsRecorded(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hello"), 0o600))

	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "read_file", map[string]any{"file_name": "a.txt"}),
		model.TextResponse("it says hello"),
	)

	a := newAgent(t, llm, func(o *Options) {
		o.Tools = filetool.Tools(func(o *filetool.Options) { o.Root = dir })
	})

	res, err := a.Run(context.Background(), "read a.txt")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	assert.Equal(t, core.EntryEnvironment, entries[2].Type)
	assert.JSONEq(t, `{"tool_executed":true,"result":"hello"}`, entries[2].Content)
}

func TestRun_ToolPanicDoesNotEscape(t *testing.T) {
	boom := tool.New(tool.Config{Name: "boom", Description: "Always panics"}, func(context.Context, tool.Args) (any, error) {
		panic("kaboom")
	})

	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "boom", nil),
		model.TextResponse("recovered"),
	)

	a := newAgent(t, llm, func(o *Options) { o.Tools = []tool.Tool{boom} })

	var (
		res *Result
		err error
	)

	require.NotPanics(t, func() { res, err = a.Run(context.Background(), "explode") })
	require.NoError(t, err)

	entries := res.Memory.Entries()
	assert.Equal(t, core.EntryError, entries[2].Type)
	assert.Contains(t, entries[2].Content, tool.CodePanic)
	assert.Equal(t, "recovered", res.Output)
	assert.Equal(t, 2, res.Iterations)
}

func TestRun_UnknownToolIsNotFatal(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "missing", nil),
		model.TextResponse("ok"),
	)

	res, err := newAgent(t, llm).Run(context.Background(), "go")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	assert.Equal(t, core.EntryError, entries[2].Type)
	assert.Contains(t, entries[2].Content, tool.CodeUnknownTool)
}

func TestRun_CallAgentUnknownAgent(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "call_agent", map[string]any{"agent_name": "ghost", "task": "haunt"}),
		model.TextResponse("nobody answered"),
	)

	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{agenttool.CallAgent()}
		o.AgentRegistry = core.NewAgentRegistry()
	})

	res, err := a.Run(context.Background(), "delegate")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, core.EntryEnvironment, entries[2].Type)
	assert.Contains(t, entries[2].Content, `"success":false`)
	assert.Contains(t, entries[2].Content, "ghost")
}

func TestRun_DelegatesToRegisteredAgent(t *testing.T) {
	childLLM := model.NewMockModel("child", "test").Script(model.TextResponse("child answer"))
	child := newAgent(t, childLLM)

	registry := core.NewAgentRegistry()
	require.NoError(t, registry.Register("child", child.RunFunc()))

	parentLLM := model.NewMockModel("parent", "test").Script(
		model.ToolCallResponse("1", "call_agent", map[string]any{"agent_name": "child", "task": "help"}),
		model.TextResponse("done"),
	)

	parent := newAgent(t, parentLLM, func(o *Options) {
		o.Tools = []tool.Tool{agenttool.CallAgent()}
		o.AgentRegistry = registry
	})

	res, err := parent.Run(context.Background(), "ask the child")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	assert.Contains(t, entries[2].Content, "child answer")
	assert.Equal(t, 4, res.Memory.Len())

	// the child saw only its task
	assert.Equal(t, "help", childLLM.Requests()[0].Messages[1].Content)
}

func TestRun_TerminateTool(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", tool.TerminateName, map[string]any{"message": "bye"}),
		model.TextResponse("never reached"),
	)

	a := newAgent(t, llm, func(o *Options) { o.Tools = []tool.Tool{tool.NewTerminate()} })

	res, err := a.Run(context.Background(), "finish")
	require.NoError(t, err)

	assert.Equal(t, StopTerminateTool, res.Reason)
	assert.Equal(t, "bye", res.Output)
	assert.Equal(t, 1, llm.Calls())
}

func TestRun_TerminateToolValidationFailureContinues(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", tool.TerminateName, map[string]any{}),
		model.TextResponse("final"),
	)

	a := newAgent(t, llm, func(o *Options) { o.Tools = []tool.Tool{tool.NewTerminate()} })

	res, err := a.Run(context.Background(), "finish")
	require.NoError(t, err)

	assert.Equal(t, StopFinalAnswer, res.Reason)
	assert.Equal(t, 2, llm.Calls())
}

func TestRun_ModelFailure(t *testing.T) {
	llm := model.NewMockModel("mock", "test").ScriptError(errors.New("rate limited"))
	h := &hooks{}

	a := newAgent(t, llm, func(o *Options) { o.Capabilities = []capability.Capability{h} })

	res, err := a.Run(context.Background(), "hi")
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, core.ErrModelFailure)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, []string{StopModelError}, h.terminated)
}

func TestRun_MalformedToolCallIsFinalAnswer(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.Response{
		Content:   "partial thoughts",
		ToolCalls: []model.ToolCall{{ID: "1", Function: model.ToolCallFunction{Name: "echo", Arguments: "{not json"}}},
	})

	a := newAgent(t, llm, func(o *Options) { o.Tools = []tool.Tool{echoTool()} })

	res, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, StopFinalAnswer, res.Reason)
	assert.Equal(t, "partial thoughts", res.Output)
}

func TestRun_VetoedIterationCountsTowardBudget(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("answer"))
	h := &hooks{vetoFirst: true}

	a := newAgent(t, llm, func(o *Options) { o.Capabilities = []capability.Capability{h} })

	res, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, 1, h.iterations)
}

// gate vetoes every iteration and asks to stop after stopAfter polls.
type gate struct {
	capability.Base
	stopAfter int
	polls     int
	steps     []capability.Step
}

func (g *gate) Name() string { return "gate" }

func (g *gate) StartAgentLoop(context.Context, *core.RunState) bool { return false }

func (g *gate) ShouldTerminate(_ context.Context, _ *core.RunState, step capability.Step) bool {
	g.polls++
	g.steps = append(g.steps, step)

	return g.polls >= g.stopAfter
}

func TestRun_VetoingCapabilityCanStopUnboundedRun(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	g := &gate{stopAfter: 3}

	a := newAgent(t, llm, func(o *Options) {
		o.Capabilities = []capability.Capability{g}
		o.MaxIterations = 0
		o.MaxDuration = 0
	})

	res, err := a.Run(context.Background(), "hi")
	require.NoError(t, err)

	assert.Equal(t, StopCapability, res.Reason)
	assert.Equal(t, "hi", res.Output)
	assert.Equal(t, 3, res.Iterations)
	assert.Zero(t, llm.Calls())
	assert.Equal(t, capability.Step{}, g.steps[0])
}

func TestRun_CapabilityRequestsStop(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	for i := 0; i < 3; i++ {
		llm.Script(model.ToolCallResponse("call", "echo", map[string]any{"text": "x"}))
	}

	h := &hooks{stopAfter: 2}
	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{echoTool()}
		o.Capabilities = []capability.Capability{h}
	})

	res, err := a.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, StopCapability, res.Reason)
	assert.Equal(t, 2, res.Iterations)
	assert.JSONEq(t, `{"tool_executed":true,"result":"x"}`, res.Output)
}

func TestRun_MemoryGrowsMonotonically(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "echo", map[string]any{"text": "a"}),
		model.ToolCallResponse("2", "missing", nil),
		model.TextResponse("done"),
	)

	h := &hooks{}
	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{echoTool()}
		o.Capabilities = []capability.Capability{h}
	})

	res, err := a.Run(context.Background(), "go")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 5}, h.sizes)
	assert.Equal(t, 6, res.Memory.Len())

	// earlier prompts are prefixes of later ones
	reqs := llm.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, reqs[1].Messages, reqs[2].Messages[:len(reqs[1].Messages)])
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	stopper := tool.New(tool.Config{Name: "stop", Description: "Cancels the run"}, func(context.Context, tool.Args) (any, error) {
		cancel()
		return "cancelled", nil
	})

	llm := model.NewMockModel("mock", "test").Script(
		model.ToolCallResponse("1", "stop", nil),
		model.TextResponse("unreachable"),
	)

	h := &hooks{}
	a := newAgent(t, llm, func(o *Options) {
		o.Tools = []tool.Tool{stopper}
		o.Capabilities = []capability.Capability{h}
	})

	res, err := a.Run(ctx, "go")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, llm.Calls())
	assert.Equal(t, []string{StopCancelled}, h.terminated)

	_, err = a.Run(ctx, "again")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_InstructionsAndProperties(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("hi Ada"))

	var seen *core.ActionContext

	inspect := tool.New(tool.Config{Name: "inspect", Description: "unused"}, func(context.Context, tool.Args) (any, error) {
		return nil, nil
	})

	a := newAgent(t, llm, func(o *Options) {
		o.Instructions = "Greet {{.user_name}} politely."
		o.Goals = []core.Goal{
			{Priority: 2, Name: "Tone", Description: "Be brief"},
			{Priority: 1, Name: "Greeting", Description: "Say hello"},
		}
		o.Properties = map[string]any{"user_name": "Grace"}
		o.Tools = []tool.Tool{inspect}
	})

	res, err := a.Run(context.Background(), "hello", func(o *RunOptions) {
		o.Properties = map[string]any{"user_name": "Ada"}
		o.RunID = "run-42"
	})
	require.NoError(t, err)

	seen = res.Context
	assert.Equal(t, "run-42", res.RunID)
	assert.Equal(t, "Ada", seen.Get("user_name", ""))
	assert.Same(t, a.Tools(), seen.Get(core.PropToolRegistry, nil))

	req := llm.Requests()[0]
	assert.Equal(t, model.RoleSystem, req.Messages[0].Role)
	assert.Equal(t,
		"Greet Ada politely.\n\nGoals:\nGreeting: Say hello\n-------------------\nTone: Be brief",
		req.Messages[0].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "inspect", req.Tools[0].Function.Name)
}

func TestRun_JSONActionLanguage(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(
		model.TextResponse("I will echo.\n```action\n{\"tool\": \"echo\", \"args\": {\"text\": \"ping\"}}\n```"),
		model.TextResponse("pong"),
	)

	a := newAgent(t, llm, func(o *Options) {
		o.Language = JSONActionLanguage{}
		o.Tools = []tool.Tool{echoTool()}
	})

	res, err := a.Run(context.Background(), "echo ping")
	require.NoError(t, err)

	entries := res.Memory.Entries()
	assert.JSONEq(t, `{"tool_executed":true,"result":"ping"}`, entries[2].Content)
	assert.Empty(t, llm.Requests()[0].Tools)
	assert.Contains(t, llm.Requests()[0].Messages[0].Content, "```action")
}

func TestRun_ContinuesExistingMemory(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("second"))
	a := newAgent(t, llm)

	mem := memory.New(core.Entry{Type: core.EntrySystem, Content: "prior"})

	res, err := a.Run(context.Background(), "again", func(o *RunOptions) { o.Memory = mem })
	require.NoError(t, err)

	assert.Same(t, mem, res.Memory)
	assert.Equal(t, []core.Entry{
		{Type: core.EntrySystem, Content: "prior"},
		{Type: core.EntryUser, Content: "again"},
		{Type: core.EntryAssistant, Content: "second"},
	}, mem.Entries())
	assert.Same(t, mem, res.Context.Memory())
}

func TestNew_Validation(t *testing.T) {
	_, err := New("", model.NewMockModel("m", "p"))
	assert.Error(t, err)

	_, err = New("a", nil)
	assert.Error(t, err)

	_, err = New("a", model.NewMockModel("m", "p"), func(o *Options) {
		o.Tools = []tool.Tool{echoTool(), echoTool()}
	})

	var regErr *tool.RegistrationError
	assert.ErrorAs(t, err, &regErr)
}
