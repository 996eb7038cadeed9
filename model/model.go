package model

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// Message roles understood by every provider adapter.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrNoResponse is returned by Collect when a model closes its channels
// without emitting anything.
var ErrNoResponse = errors.New("model returned no response")

// ToolCall represents a function call request surfaced by a model provider.
// Unified across vendors so downstream logic does not need per-provider branching.
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"` // "function"
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction describes the concrete function target of a tool call.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // JSON encoded arguments
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// Request captures the normalized model input produced by the agent loop.
type Request struct {
	Messages []Message        `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
	Stream   bool             `json:"stream,omitempty"`
}

// System returns the concatenated content of all system messages.
func (r Request) System() string {
	var parts []string

	for _, m := range r.Messages {
		if m.Role == RoleSystem && m.Content != "" {
			parts = append(parts, m.Content)
		}
	}

	return strings.Join(parts, "\n\n")
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"` // Indicates if this is a partial response
	Content      string      `json:"content"`
	ToolCalls    []ToolCall  `json:"tool_calls,omitempty"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", "tool_calls", etc.
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Model is the minimal interface required by the agent loop to drive generation.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Collect drains both channels returned by Generate and yields the final
// (non-partial) response. When only partial chunks arrive their text is
// concatenated. The first error aborts collection.
func Collect(respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final Response
		text  strings.Builder
		got   bool
	)

	for respCh != nil || errCh != nil {
		select {
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}

			if r.Partial {
				text.WriteString(r.Content)
				continue
			}

			final, got = r, true
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}

			if err != nil {
				if respCh != nil {
					go func(ch <-chan Response) {
						for range ch { //nolint:revive // drain so the producer can exit
						}
					}(respCh)
				}

				return Response{}, err
			}
		}
	}

	if got {
		return final, nil
	}

	if text.Len() > 0 {
		return Response{Content: text.String(), FinishReason: "stop"}, nil
	}

	return Response{}, ErrNoResponse
}

// TextResponse builds a final plain text response.
func TextResponse(text string) Response {
	return Response{Content: text, FinishReason: "stop"}
}

// ToolCallResponse builds a final response requesting one tool call.
func ToolCallResponse(id, name string, args map[string]any) Response {
	raw, _ := json.Marshal(args)
	if args == nil {
		raw = []byte("{}")
	}

	return Response{
		ToolCalls: []ToolCall{{
			ID:       id,
			Type:     "function",
			Function: ToolCallFunction{Name: name, Arguments: string(raw)},
		}},
		FinishReason: "tool_calls",
	}
}
