package anthropic

import (
	"testing"

	"github.com/hupe1980/agentloop/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessages_SkipsSystem(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleSystem, Content: "be brief"},
		{Role: model.RoleUser, Content: "hi"},
		{Role: model.RoleAssistant, ToolCalls: []model.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: model.ToolCallFunction{Name: "read_file", Arguments: `{"file_name":"a.txt"}`},
		}}},
		{Role: model.RoleTool, ToolCallID: "call_1", Content: "hello"},
	})

	require.Len(t, msgs, 3)
	assert.Equal(t, "user", string(msgs[0].Role))
	assert.Equal(t, "assistant", string(msgs[1].Role))
	assert.Equal(t, "user", string(msgs[2].Role))
}

func TestBuildTools(t *testing.T) {
	tools := buildTools([]model.ToolDefinition{{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        "read_file",
			Description: "Reads a file",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"file_name": map[string]any{"type": "string"}},
				"required":   []string{"file_name"},
			},
		},
	}})

	require.Len(t, tools, 1)
	require.NotNil(t, tools[0].OfTool)
	assert.Equal(t, "read_file", tools[0].OfTool.Name)
	assert.Equal(t, []string{"file_name"}, tools[0].OfTool.InputSchema.Required)
}
