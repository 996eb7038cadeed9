// Package tool implements the tool calling subsystem that lets agents invoke
// named Go functions with schema validated arguments, consistent error
// handling and rich metadata for LLM guidance.
//
// Every tool declares an explicit binding table: each Parameter is either
// public (supplied by the model and advertised in the schema) or injected
// from the ActionContext. The Executor merges both sources, invokes the tool
// and converts every failure into a structured Result so a single tool never
// aborts the agent loop.
package tool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/internal/util"
)

// Tool defines the interface for extending agent capabilities with external functions.
//
// Tool implementations should:
//   - Provide clear, descriptive names and descriptions
//   - Declare every parameter, including injected ones
//   - Handle errors gracefully
//   - Be thread-safe if used concurrently
type Tool interface {
	// Name returns the unique identifier for this tool (snake_case recommended).
	Name() string

	// Description returns a human-readable description of what this tool does.
	// An empty description falls back to the tool's Doc, when it has one.
	Description() string

	// Parameters returns the ordered binding table of the tool.
	Parameters() []Parameter

	// Call executes the tool with the merged (public + injected) arguments.
	Call(ctx context.Context, args Args) (any, error)
}

// Documented is implemented by tools that carry a long form documentation
// string used when Description is empty.
type Documented interface {
	Doc() string
}

// Tagged is implemented by tools that can be selected with Registry.Filter.
type Tagged interface {
	Tags() []string
}

// Terminal is implemented by tools whose successful invocation ends the run.
type Terminal interface {
	Terminal() bool
}

// IsTerminal reports whether t ends the run when invoked successfully.
func IsTerminal(t Tool) bool {
	term, ok := t.(Terminal)
	return ok && term.Terminal()
}

// Source tells the binder where a parameter value comes from.
type Source int

const (
	// SourceModel marks a public parameter supplied by the model.
	SourceModel Source = iota
	// SourceContext marks a parameter resolved from an ActionContext property.
	SourceContext
	// SourceActionContext marks a parameter bound to the ActionContext itself.
	SourceActionContext
)

// String returns the lower case source name.
func (s Source) String() string {
	switch s {
	case SourceModel:
		return "model"
	case SourceContext:
		return "context"
	case SourceActionContext:
		return "action_context"
	default:
		return "unknown"
	}
}

// ActionContextParam is the conventional name of the parameter receiving the
// ActionContext.
const ActionContextParam = "action_context"

// Parameter is one row of a tool's binding table.
type Parameter struct {
	Name        string
	Type        string // JSON schema type; empty means "string"
	Description string
	Required    bool
	// Default is applied by the Executor when an optional public parameter
	// is not supplied.
	Default any
	Source  Source
	// ContextKey is the ActionContext property consulted for SourceContext
	// parameters.
	ContextKey string
}

// Hidden reports whether the parameter is injected rather than advertised.
func (p Parameter) Hidden() bool {
	return p.Source != SourceModel
}

// Normalize classifies parameters declared without an explicit source by
// name: "action_context" binds the ActionContext and a leading underscore
// marks a context property named by the rest of the name.
func Normalize(p Parameter) Parameter {
	if p.Source != SourceModel {
		if p.Source == SourceContext && p.ContextKey == "" {
			p.ContextKey = strings.TrimPrefix(p.Name, "_")
		}

		return p
	}

	switch {
	case p.Name == ActionContextParam:
		p.Source = SourceActionContext
	case strings.HasPrefix(p.Name, "_") && len(p.Name) > 1:
		p.Source = SourceContext
		p.ContextKey = p.Name[1:]
	}

	return p
}

// String declares a required public string parameter.
func String(name, description string) Parameter {
	return Parameter{Name: name, Type: "string", Description: description, Required: true}
}

// Param declares a required public parameter of the given JSON type.
func Param(name, typ, description string) Parameter {
	return Parameter{Name: name, Type: typ, Description: description, Required: true}
}

// Optional declares an optional public parameter with a default value.
func Optional(name, typ, description string, def any) Parameter {
	return Parameter{Name: name, Type: typ, Description: description, Default: def}
}

// FromContext declares a parameter resolved from the ActionContext property key.
func FromContext(name, key string, required bool) Parameter {
	return Parameter{Name: name, Source: SourceContext, ContextKey: key, Required: required}
}

// WithActionContext declares the parameter receiving the ActionContext.
func WithActionContext() Parameter {
	return Parameter{Name: ActionContextParam, Source: SourceActionContext, Required: true}
}

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Error codes carried by ToolError.
const (
	CodeValidation     = "VALIDATION_ERROR"
	CodeExecution      = "EXECUTION_ERROR"
	CodeUnknownTool    = "UNKNOWN_TOOL"
	CodeMissingContext = "MISSING_CONTEXT"
	CodePanic          = "PANIC"
)

// ToolError represents errors that occur during tool execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
	cause   error
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}

	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Unwrap exposes the underlying cause (sentinels from core included).
func (e *ToolError) Unwrap() error { return e.cause }

// WithCause sets the error unwrapped by errors.Is and errors.As.
func (e *ToolError) WithCause(err error) *ToolError {
	e.cause = err
	return e
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// RegistrationError reports a malformed tool rejected by the Registry.
type RegistrationError struct {
	Tool   string
	Reason string
}

func (e *RegistrationError) Error() string {
	if e.Tool == "" {
		return "tool registration failed: " + e.Reason
	}

	return fmt.Sprintf("tool registration failed for %s: %s", e.Tool, e.Reason)
}

// validator is implemented by tools that can detect their own misconfiguration
// (for example a FunctionTool built without a function).
type validator interface {
	validate() error
}

// Validate checks a tool's binding table. It is run by Registry.Register.
func Validate(t Tool) error {
	if t == nil {
		return &RegistrationError{Reason: "tool is nil"}
	}

	name := t.Name()
	if name == "" {
		return &RegistrationError{Reason: "tool name must not be empty"}
	}

	if v, ok := t.(validator); ok {
		if err := v.validate(); err != nil {
			return &RegistrationError{Tool: name, Reason: err.Error()}
		}
	}

	seen := make(map[string]struct{})

	for _, p := range t.Parameters() {
		if p.Name == "" {
			return &RegistrationError{Tool: name, Reason: "parameter name must not be empty"}
		}

		if _, dup := seen[p.Name]; dup {
			return &RegistrationError{Tool: name, Reason: fmt.Sprintf("duplicate parameter %q", p.Name)}
		}

		seen[p.Name] = struct{}{}

		if n := Normalize(p); n.Source == SourceContext && n.ContextKey == "" {
			return &RegistrationError{Tool: name, Reason: fmt.Sprintf("context parameter %q has no key", p.Name)}
		}
	}

	return nil
}

// Args is the merged argument mapping handed to Tool.Call.
type Args map[string]any

// Value returns the raw value for key.
func (a Args) Value(key string) (any, bool) {
	v, ok := a[key]
	return v, ok
}

// String returns the value for key as a string ("" when absent or not a string).
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the value for key as an int, accepting JSON numbers.
func (a Args) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Float returns the value for key as a float64.
func (a Args) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

// Bool returns the value for key as a bool.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// Map returns the value for key as a JSON object.
func (a Args) Map(key string) map[string]any {
	m, _ := a[key].(map[string]any)
	return m
}

// ActionContext returns the bound ActionContext, if the tool declared one.
func (a Args) ActionContext() *core.ActionContext {
	if actx, ok := a[ActionContextParam].(*core.ActionContext); ok {
		return actx
	}

	for _, v := range a {
		if actx, ok := v.(*core.ActionContext); ok {
			return actx
		}
	}

	return nil
}

// Public returns a copy of the arguments without ActionContext bindings.
func (a Args) Public() map[string]any {
	out := make(map[string]any, len(a))
	for k, v := range a {
		if _, ok := v.(*core.ActionContext); ok {
			continue
		}

		out[k] = v
	}

	return out
}
