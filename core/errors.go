package core

import "errors"

var (
	// ErrModelFailure wraps failures of the model collaborator. It is the
	// only error that ends a run early.
	ErrModelFailure = errors.New("model call failed")

	// ErrUnknownTool is reported when the model names a tool that is not
	// registered.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrMissingContextProperty is reported when a required context-sourced
	// tool parameter has no value in the ActionContext.
	ErrMissingContextProperty = errors.New("missing context property")

	// ErrAgentNotFound is reported by AgentRegistry.Lookup.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNoAgentRegistry is reported by delegation tools when the context
	// carries no registry.
	ErrNoAgentRegistry = errors.New("no agent registry in context")
)
