package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// ErrMalformedAction is returned by Language.Parse when a response announces
// an action that cannot be decoded. The loop treats it as a final answer.
var ErrMalformedAction = errors.New("malformed action")

// Prompt is the language independent input of one model call.
type Prompt struct {
	Instructions string
	Goals        []core.Goal
	Memory       []core.Entry
	Tools        []tool.Metadata
}

// Language turns a Prompt into a model request and a model response into at
// most one Action.
type Language interface {
	// Construct builds the request for one iteration.
	Construct(p Prompt) model.Request
	// Parse returns the action requested by resp, or nil when resp is a
	// final answer.
	Parse(resp model.Response) (*core.Action, error)
}

// FunctionCallingLanguage uses the provider's native tool calling. Only the
// first tool call of a response is executed.
type FunctionCallingLanguage struct{}

var _ Language = FunctionCallingLanguage{}

// Construct implements Language.
func (FunctionCallingLanguage) Construct(p Prompt) model.Request {
	defs := make([]model.ToolDefinition, 0, len(p.Tools))
	for _, md := range p.Tools {
		defs = append(defs, md.Definition())
	}

	return model.Request{
		Messages: append(systemMessages(p.Instructions, p.Goals, ""), memoryMessages(p.Memory)...),
		Tools:    defs,
	}
}

// Parse implements Language.
func (FunctionCallingLanguage) Parse(resp model.Response) (*core.Action, error) {
	if len(resp.ToolCalls) == 0 {
		return nil, nil
	}

	call := resp.ToolCalls[0]

	args := map[string]any{}
	if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return nil, fmt.Errorf("%w: arguments of %s: %w", ErrMalformedAction, call.Function.Name, err)
		}
	}

	if call.Function.Name == "" {
		return nil, fmt.Errorf("%w: tool call without a name", ErrMalformedAction)
	}

	return &core.Action{ToolName: call.Function.Name, Args: args, CallID: call.ID}, nil
}

const actionFormat = "Stop and think step by step. Then respond with exactly one action block:\n\n" +
	"```action\n{\n    \"tool\": \"tool_name\",\n    \"args\": {...fill in arguments...}\n}\n```\n\n" +
	"To give your final answer, respond with plain text and no action block."

// JSONActionLanguage asks for actions as a fenced ```action JSON block in
// the response text. It works with models that have no tool calling.
type JSONActionLanguage struct{}

var _ Language = JSONActionLanguage{}

// Construct implements Language.
func (JSONActionLanguage) Construct(p Prompt) model.Request {
	schemas := make([]map[string]any, 0, len(p.Tools))
	for _, md := range p.Tools {
		schemas = append(schemas, map[string]any{
			"tool_name":   md.Name,
			"description": md.Description,
			"args":        md.Parameters,
		})
	}

	toolText, err := json.MarshalIndent(schemas, "", "    ")
	if err != nil {
		toolText = []byte("[]")
	}

	extra := "Available Tools: " + string(toolText) + "\n\n" + actionFormat

	return model.Request{
		Messages: append(systemMessages(p.Instructions, p.Goals, extra), memoryMessages(p.Memory)...),
	}
}

// Parse implements Language.
func (JSONActionLanguage) Parse(resp model.Response) (*core.Action, error) {
	_, rest, found := strings.Cut(resp.Content, "```action")
	if !found {
		return nil, nil
	}

	block, _, _ := strings.Cut(rest, "```")

	var decoded struct {
		Tool string         `json:"tool"`
		Args map[string]any `json:"args"`
	}

	if err := json.Unmarshal([]byte(strings.TrimSpace(block)), &decoded); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedAction, err)
	}

	if decoded.Tool == "" {
		return nil, fmt.Errorf("%w: missing tool", ErrMalformedAction)
	}

	if decoded.Args == nil {
		decoded.Args = map[string]any{}
	}

	return &core.Action{ToolName: decoded.Tool, Args: decoded.Args}, nil
}

// systemMessages renders the instructions, the goals and extra into one
// system message. Goals are ordered by ascending Priority (1 first); equal
// priorities keep their declaration order.
func systemMessages(instructions string, goals []core.Goal, extra string) []model.Message {
	var parts []string

	if s := strings.TrimSpace(instructions); s != "" {
		parts = append(parts, s)
	}

	if len(goals) > 0 {
		sorted := append([]core.Goal(nil), goals...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

		lines := make([]string, 0, len(sorted))
		for _, g := range sorted {
			lines = append(lines, fmt.Sprintf("%s: %s", g.Name, g.Description))
		}

		parts = append(parts, "Goals:\n"+strings.Join(lines, "\n-------------------\n"))
	}

	if extra != "" {
		parts = append(parts, extra)
	}

	if len(parts) == 0 {
		return nil
	}

	return []model.Message{{Role: model.RoleSystem, Content: strings.Join(parts, "\n\n")}}
}

// memoryMessages maps memory entries to chat messages. Tool results and
// custom tags are presented as user turns; custom tags keep their type as a
// prefix.
func memoryMessages(entries []core.Entry) []model.Message {
	msgs := make([]model.Message, 0, len(entries))

	for _, e := range entries {
		switch e.Type {
		case core.EntrySystem:
			msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: e.Content})
		case core.EntryAssistant:
			msgs = append(msgs, model.Message{Role: model.RoleAssistant, Content: e.Content})
		case core.EntryUser, core.EntryEnvironment, core.EntryError:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: e.Content})
		default:
			msgs = append(msgs, model.Message{Role: model.RoleUser, Content: fmt.Sprintf("[%s] %s", e.Type, e.Content)})
		}
	}

	return msgs
}
