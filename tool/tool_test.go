package tool

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/agentloop/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool(params ...Parameter) *FunctionTool {
	return New(Config{Name: "echo", Description: "Echo arguments", Parameters: params},
		func(_ context.Context, args Args) (any, error) {
			return args.Public(), nil
		})
}

// -------------------- Metadata Tests --------------------

func TestDescribe_ExcludesInjectedParameters(t *testing.T) {
	tl := echoTool(
		String("file_name", "File to read"),
		Parameter{Name: "action_context"},
		Parameter{Name: "_auth_token", Required: true},
		FromContext("config", "user_config", false),
		Parameter{Name: "verbose", Type: "boolean"},
	)

	md, err := Describe(tl)
	require.NoError(t, err)

	props := md.Parameters["properties"].(map[string]any)
	assert.Len(t, props, 2)
	assert.Contains(t, props, "file_name")
	assert.Contains(t, props, "verbose")
	assert.Equal(t, []string{"file_name"}, md.Parameters["required"])
}

func TestDescribe_TypeDefaultsToString(t *testing.T) {
	md, err := Describe(echoTool(Parameter{Name: "q", Required: true}))
	require.NoError(t, err)

	props := md.Parameters["properties"].(map[string]any)
	assert.Equal(t, "string", props["q"].(map[string]any)["type"])
}

func TestDescribe_DescriptionFallsBackToDoc(t *testing.T) {
	tl := New(Config{Name: "documented", Doc: "Long documentation"}, func(context.Context, Args) (any, error) {
		return nil, nil
	})

	md, err := Describe(tl)
	require.NoError(t, err)
	assert.Equal(t, "Long documentation", md.Description)

	tl = New(Config{Name: "documented", Description: "Override", Doc: "Long documentation"}, func(context.Context, Args) (any, error) {
		return nil, nil
	})

	md, err = Describe(tl)
	require.NoError(t, err)
	assert.Equal(t, "Override", md.Description)
}

func TestDescribe_OptionalAdvertisesDefault(t *testing.T) {
	md, err := Describe(echoTool(Optional("limit", "integer", "Max results", 10)))
	require.NoError(t, err)

	props := md.Parameters["properties"].(map[string]any)
	assert.Equal(t, 10, props["limit"].(map[string]any)["default"])
	assert.NotContains(t, md.Parameters, "required")
}

// -------------------- Registry Tests --------------------

func TestRegistry_RegistrationErrors(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
	}{
		{name: "nil tool", tool: nil},
		{name: "empty name", tool: New(Config{}, func(context.Context, Args) (any, error) { return nil, nil })},
		{name: "missing function", tool: New(Config{Name: "nofn"}, nil)},
		{name: "duplicate parameter", tool: echoTool(String("a", ""), String("a", ""))},
		{name: "context parameter without key", tool: echoTool(Parameter{Name: "_", Source: SourceContext})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.tool)

			var regErr *RegistrationError
			assert.ErrorAs(t, err, &regErr)
		})
	}
}

func TestRegistry_DuplicateNameIsAtomic(t *testing.T) {
	reg, err := NewRegistry(echoTool())
	require.NoError(t, err)

	other := New(Config{Name: "other"}, func(context.Context, Args) (any, error) { return nil, nil })

	err = reg.Register(other, echoTool())

	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	assert.Equal(t, "echo", regErr.Tool)
	assert.Equal(t, []string{"echo"}, reg.Names())
}

func TestRegistry_OrderFilterDefinitions(t *testing.T) {
	noop := func(context.Context, Args) (any, error) { return nil, nil }

	reg, err := NewRegistry(
		New(Config{Name: "b", Tags: []string{"fs"}}, noop),
		New(Config{Name: "a", Tags: []string{"web"}}, noop),
		NewTerminate(),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "a", "terminate"}, reg.Names())
	assert.Equal(t, []string{"b", "terminate"}, reg.Filter("fs", "system").Names())
	assert.Equal(t, 3, reg.Filter().Len())

	defs := reg.Definitions()
	require.Len(t, defs, 3)
	assert.Equal(t, "function", defs[0].Type)
	assert.Equal(t, "b", defs[0].Function.Name)

	md, ok := reg.Metadata("terminate")
	require.True(t, ok)
	assert.True(t, md.Terminal)
}

// -------------------- Binder Tests --------------------

func TestBind_NoInjectedProperties(t *testing.T) {
	supplied := map[string]any{"file_name": "a.txt"}

	args := Bind([]Parameter{String("file_name", "")}, supplied, core.NewActionContext(nil))
	assert.Equal(t, Args{"file_name": "a.txt"}, args)
}

func TestBind_InjectsContext(t *testing.T) {
	actx := core.NewActionContext(map[string]any{"auth_token": "secret", "user_config": "cfg"})
	params := []Parameter{
		String("query", ""),
		Parameter{Name: "action_context"},
		Parameter{Name: "_auth_token"},
		FromContext("config", "user_config", false),
		FromContext("missing", "absent", false),
	}
	supplied := map[string]any{"query": "go"}

	args := Bind(params, supplied, actx)

	assert.Equal(t, "go", args["query"])
	assert.Same(t, actx, args["action_context"])
	assert.Same(t, actx, args.ActionContext())
	assert.Equal(t, "secret", args["_auth_token"])
	assert.Equal(t, "cfg", args["config"])
	assert.NotContains(t, args, "missing")

	// caller input is never mutated
	assert.Equal(t, map[string]any{"query": "go"}, supplied)
}

func TestBind_SuppliedValueWins(t *testing.T) {
	actx := core.NewActionContext(map[string]any{"auth_token": "secret"})

	args := Bind([]Parameter{{Name: "_auth_token"}}, map[string]any{"_auth_token": "explicit"}, actx)
	assert.Equal(t, "explicit", args["_auth_token"])
}

func TestBind_Deterministic(t *testing.T) {
	actx := core.NewActionContext(map[string]any{"auth_token": "secret"})
	params := []Parameter{String("a", ""), {Name: "_auth_token"}, WithActionContext()}
	supplied := map[string]any{"a": 1.0}

	first := Bind(params, supplied, actx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Bind(params, supplied, actx))
	}
}

// -------------------- Executor Tests --------------------

func TestExecutor_Success(t *testing.T) {
	sum := New(Config{
		Name:       "sum",
		Parameters: []Parameter{Param("a", "number", ""), Param("b", "number", "")},
	}, func(_ context.Context, args Args) (any, error) {
		return args.Float("a") + args.Float("b"), nil
	})

	res := NewExecutor().Execute(context.Background(), core.NewActionContext(nil), sum, map[string]any{"a": 2.0, "b": 3.0})
	assert.True(t, res.ToolExecuted)
	assert.Equal(t, 5.0, res.Result)
	assert.Empty(t, res.Error)
}

func TestExecutor_ValidationError(t *testing.T) {
	res := NewExecutor().Execute(context.Background(), nil, echoTool(Param("a", "number", "")), map[string]any{})
	assert.False(t, res.ToolExecuted)

	var toolErr *ToolError
	require.ErrorAs(t, res.Err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

func TestExecutor_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	fail := New(Config{Name: "fail"}, func(context.Context, Args) (any, error) { return nil, boom })

	res := NewExecutor().Execute(context.Background(), nil, fail, nil)
	assert.False(t, res.ToolExecuted)
	assert.Contains(t, res.Error, "boom")
	assert.ErrorIs(t, res.Err, boom)

	var toolErr *ToolError
	require.ErrorAs(t, res.Err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
}

func TestExecutor_CustomToolErrorPassesThrough(t *testing.T) {
	fail := New(Config{Name: "fail"}, func(context.Context, Args) (any, error) {
		return nil, NewToolError("fail", "quota exceeded", "RATE_LIMITED")
	})

	res := NewExecutor().Execute(context.Background(), nil, fail, nil)

	var toolErr *ToolError
	require.ErrorAs(t, res.Err, &toolErr)
	assert.Equal(t, "RATE_LIMITED", toolErr.Code)
}

func TestExecutor_PanicIsRecovered(t *testing.T) {
	panicky := New(Config{Name: "panicky"}, func(context.Context, Args) (any, error) {
		panic("kaboom")
	})

	var res Result

	assert.NotPanics(t, func() {
		res = NewExecutor().Execute(context.Background(), nil, panicky, nil)
	})
	assert.False(t, res.ToolExecuted)
	assert.Contains(t, res.Error, "kaboom")

	var toolErr *ToolError
	require.ErrorAs(t, res.Err, &toolErr)
	assert.Equal(t, CodePanic, toolErr.Code)
}

func TestExecutor_MissingContextIsLazy(t *testing.T) {
	needsToken := echoTool(FromContext("token", "auth_token", true))

	// registration succeeds without the property
	reg, err := NewRegistry(needsToken)
	require.NoError(t, err)

	res := NewExecutor().ExecuteAction(context.Background(), core.NewActionContext(nil), reg, core.Action{ToolName: "echo"})
	assert.False(t, res.ToolExecuted)
	assert.ErrorIs(t, res.Err, core.ErrMissingContextProperty)

	res = NewExecutor().ExecuteAction(context.Background(), core.NewActionContext(map[string]any{"auth_token": "t"}), reg, core.Action{ToolName: "echo"})
	assert.True(t, res.ToolExecuted)
	assert.Equal(t, map[string]any{"token": "t"}, res.Result)
}

func TestExecutor_UnknownTool(t *testing.T) {
	reg, err := NewRegistry()
	require.NoError(t, err)

	res := NewExecutor().ExecuteAction(context.Background(), nil, reg, core.Action{ToolName: "nope"})
	assert.False(t, res.ToolExecuted)
	assert.ErrorIs(t, res.Err, core.ErrUnknownTool)
	assert.Contains(t, res.Error, "nope")
}

func TestExecutor_AppliesDefaults(t *testing.T) {
	res := NewExecutor().Execute(context.Background(), nil, echoTool(Optional("limit", "integer", "", 10)), nil)
	require.True(t, res.ToolExecuted)
	assert.Equal(t, map[string]any{"limit": 10}, res.Result)
}

// -------------------- Typed Tool Tests --------------------

type searchArgs struct {
	Query string `json:"query" jsonschema:"required,description=Search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Max results"`
}

func TestNewTyped(t *testing.T) {
	search, err := NewTyped(Config{
		Name:        "search",
		Description: "Search documents",
		Parameters:  []Parameter{FromContext("token", "auth_token", true)},
	}, func(_ context.Context, in searchArgs, args Args) (any, error) {
		return map[string]any{"query": in.Query, "limit": in.Limit, "token": args.String("token")}, nil
	})
	require.NoError(t, err)

	md, err := Describe(search)
	require.NoError(t, err)

	props := md.Parameters["properties"].(map[string]any)
	assert.Len(t, props, 2)
	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "Search query", props["query"].(map[string]any)["description"])
	assert.Equal(t, []string{"query"}, md.Parameters["required"])

	actx := core.NewActionContext(map[string]any{"auth_token": "t"})
	res := NewExecutor().Execute(context.Background(), actx, search, map[string]any{"query": "go", "limit": 3.0})
	require.True(t, res.ToolExecuted, res.Error)
	assert.Equal(t, map[string]any{"query": "go", "limit": 3, "token": "t"}, res.Result)
}

func TestTerminate(t *testing.T) {
	term := NewTerminate()
	assert.True(t, IsTerminal(term))

	res := NewExecutor().Execute(context.Background(), nil, term, map[string]any{"message": "done"})
	require.True(t, res.ToolExecuted)
	assert.Equal(t, "done", res.Result)
}
