package prompttool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(t *testing.T, llm model.Model) (*core.ActionContext, *memory.Log) {
	t.Helper()

	reg, err := tool.NewRegistry(tool.NewTerminate())
	require.NoError(t, err)

	mem := memory.New(
		core.Entry{Type: core.EntryUser, Content: "analyze sales.csv"},
		core.Entry{Type: core.EntryAssistant, Content: "thinking"},
	)

	return core.NewActionContext(map[string]any{
		core.PropModel:        llm,
		core.PropMemory:       mem,
		core.PropToolRegistry: reg,
	}), mem
}

func execute(actx *core.ActionContext, tl tool.Tool, args map[string]any) tool.Result {
	return tool.NewExecutor().Execute(context.Background(), actx, tl, args)
}

func TestPromptLLM(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("  four \n"))
	actx, _ := newContext(t, llm)

	res := execute(actx, PromptLLM(), map[string]any{"prompt": "2+2?"})
	require.True(t, res.ToolExecuted, res.Error)
	assert.Equal(t, "four", res.Result)

	msgs := llm.Requests()[0].Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "2+2?"}, msgs[0])
}

func TestPromptExpert_SystemMessage(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("use table tests"))
	actx, _ := newContext(t, llm)

	res := execute(actx, PromptExpert(), map[string]any{
		"description_of_expert": "You are a senior QA engineer.",
		"prompt":                "How should I test the parser?",
	})
	require.True(t, res.ToolExecuted, res.Error)
	assert.Equal(t, "use table tests", res.Result)

	msgs := llm.Requests()[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You are a senior QA engineer.", msgs[0].Content)
	assert.Equal(t, "How should I test the parser?", msgs[1].Content)
}

func TestCreatePlanTool(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("1. validate"))
	actx, mem := newContext(t, llm)

	res := execute(actx, CreatePlanTool(), nil)
	require.True(t, res.ToolExecuted, res.Error)
	assert.Equal(t, "1. validate", res.Result)

	prompt := llm.Requests()[0].Messages[0].Content
	assert.Contains(t, prompt, "create a detailed plan")
	assert.Contains(t, prompt, "- terminate: Terminates the session")
	assert.Contains(t, prompt, "user: analyze sales.csv")
	assert.NotContains(t, prompt, "thinking")

	// the tool reports, it does not write memory
	assert.Equal(t, 2, mem.Len())
}

func TestTrackProgressTool_WithoutRegistry(t *testing.T) {
	llm := model.NewMockModel("mock", "test").Script(model.TextResponse("on track"))
	actx, _ := newContext(t, llm)

	res := execute(actx.Without(core.PropToolRegistry), TrackProgressTool(), nil)
	require.True(t, res.ToolExecuted, res.Error)
	assert.Equal(t, "on track", res.Result)
	assert.Contains(t, llm.Requests()[0].Messages[0].Content, "create a progress report")
}

func TestMissingModel(t *testing.T) {
	for _, tl := range Tools() {
		t.Run(tl.Name(), func(t *testing.T) {
			actx := core.NewActionContext(map[string]any{core.PropMemory: memory.New()})

			res := execute(actx, tl, map[string]any{"prompt": "x", "description_of_expert": "y"})
			assert.False(t, res.ToolExecuted)
			assert.ErrorIs(t, res.Err, core.ErrMissingContextProperty)
		})
	}
}

func TestModelSuppliedModelIsRejected(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	actx, _ := newContext(t, llm)

	res := execute(actx, PromptLLM(), map[string]any{"prompt": "x", "llm": "gpt-4"})
	assert.False(t, res.ToolExecuted)
	assert.ErrorIs(t, res.Err, core.ErrMissingContextProperty)
	assert.Zero(t, llm.Calls())
}

func TestModelFailure(t *testing.T) {
	llm := model.NewMockModel("mock", "test").ScriptError(errors.New("rate limited"))
	actx, _ := newContext(t, llm)

	res := execute(actx, PromptLLM(), map[string]any{"prompt": "x"})
	assert.False(t, res.ToolExecuted)
	assert.ErrorIs(t, res.Err, core.ErrModelFailure)
}

func TestSchemaAndTags(t *testing.T) {
	want := map[string][]string{
		"prompt_llm":     {"prompt"},
		"prompt_expert":  {"description_of_expert", "prompt"},
		"create_plan":    nil,
		"track_progress": nil,
	}

	for _, tl := range Tools() {
		md, err := tool.Describe(tl)
		require.NoError(t, err)

		props := md.Parameters["properties"].(map[string]any)
		assert.Len(t, props, len(want[tl.Name()]), tl.Name())
		assert.Equal(t, []string{"prompts"}, md.Tags, tl.Name())
	}
}
