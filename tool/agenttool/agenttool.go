// Package agenttool provides delegation tools that run other agents from the
// ActionContext's agent registry as nested, synchronous sub-runs.
//
// Two delegation modes exist:
//
//   - Isolated (call_agent, call_agent_with_reflection,
//     call_agent_with_selected_context): the child gets a fresh memory and a
//     context holding only the forwarded properties. The agent registry is
//     never forwarded, which bounds recursive delegation.
//   - Shared (hand_off_to_agent): the child appends to the caller's memory.
package agenttool

import (
	"context"
	"fmt"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/tool"
)

// Mode selects how a delegated run relates to the caller's memory.
type Mode int

const (
	// DelegateIsolated runs the child on a fresh memory.
	DelegateIsolated Mode = iota
	// DelegateShared runs the child on the caller's memory.
	DelegateShared
)

// DefaultForwardedProperties are copied into isolated child contexts.
var DefaultForwardedProperties = []string{core.PropAuthToken, core.PropUserConfig}

// Options configure the delegation tools.
type Options struct {
	// ForwardedProperties are the ActionContext keys copied to isolated
	// children. core.PropAgentRegistry is always dropped.
	ForwardedProperties []string
	// Tags are attached to every tool (default "delegation").
	Tags []string
}

func options(optFns []func(o *Options)) Options {
	opts := Options{
		ForwardedProperties: DefaultForwardedProperties,
		Tags:                []string{"delegation"},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// Tools returns every delegation tool.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	return []tool.Tool{
		CallAgent(optFns...),
		HandOff(optFns...),
		CallWithReflection(optFns...),
		CallWithSelectedContext(optFns...),
	}
}

func delegationParams() []tool.Parameter {
	return []tool.Parameter{
		tool.String("agent_name", "Name of the agent to invoke"),
		tool.String("task", "Task the agent should perform"),
		tool.WithActionContext(),
	}
}

// Delegate runs agentName from the registry in actx with the given mode and
// returns the memory the child wrote to.
func Delegate(ctx context.Context, actx *core.ActionContext, mode Mode, agentName, task string, optFns ...func(o *Options)) (core.Memory, error) {
	opts := options(optFns)

	req := core.DelegateRequest{Task: task}

	switch mode {
	case DelegateShared:
		req.Memory = actx.Memory()
		if req.Memory == nil {
			return nil, fmt.Errorf("hand-off to %s: caller has no memory", agentName)
		}

		req.Properties = actx.Without(core.PropMemory).Properties()
	default:
		req.Memory = memory.New()
		req.Properties = actx.Derive(opts.ForwardedProperties...).Without(core.PropAgentRegistry, core.PropMemory).Properties()
	}

	return delegate(ctx, actx, agentName, req)
}

func delegate(ctx context.Context, actx *core.ActionContext, agentName string, req core.DelegateRequest) (core.Memory, error) {
	registry := actx.AgentRegistry()
	if registry == nil {
		return nil, core.ErrNoAgentRegistry
	}

	run, err := registry.Lookup(agentName)
	if err != nil {
		return nil, err
	}

	result, err := run(ctx, req)
	if err != nil {
		return nil, err
	}

	// a RunFunc may report only success; the memory it was given is the result
	if result == nil {
		result = req.Memory
	}

	return result, nil
}

// lastContent returns the content of the final entry of m.
func lastContent(m core.Memory) string {
	if e, ok := memory.Last(m); ok {
		return e.Content
	}

	return "No result"
}

// CallAgent returns the call_agent tool. Failures, an unknown agent
// included, are reported as {success: false, error} results.
func CallAgent(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "call_agent",
		Description: "Invoke another agent to perform a specific task.",
		Parameters:  delegationParams(),
		Tags:        opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		name := args.String("agent_name")

		result, err := Delegate(ctx, args.ActionContext(), DelegateIsolated, name, args.String("task"), optFns...)
		if err != nil {
			return map[string]any{"success": false, "error": err.Error()}, nil
		}

		if result == nil || result.Len() == 0 {
			return map[string]any{"success": false, "error": fmt.Sprintf("agent %s produced no result", name)}, nil
		}

		return map[string]any{
			"success": true,
			"agent":   name,
			"result":  lastContent(result),
		}, nil
	})
}

// HandOff returns the hand_off_to_agent tool: the child continues on the
// caller's memory.
func HandOff(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "hand_off_to_agent",
		Description: "Hand control to another agent, sharing the current memory.",
		Parameters:  delegationParams(),
		Tags:        opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		actx := args.ActionContext()

		result, err := Delegate(ctx, actx, DelegateShared, args.String("agent_name"), args.String("task"), optFns...)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"result":    lastContent(result),
			"memory_id": actx.ID(),
		}, nil
	})
}

// CallWithReflection returns the call_agent_with_reflection tool: the child
// runs isolated and every entry it produced is copied into the caller's
// memory tagged "<agent>_thought".
func CallWithReflection(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "call_agent_with_reflection",
		Description: "Invoke another agent and receive its complete thought process.",
		Parameters:  delegationParams(),
		Tags:        opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		actx := args.ActionContext()
		name := args.String("agent_name")

		result, err := Delegate(ctx, actx, DelegateIsolated, name, args.String("task"), optFns...)
		if err != nil {
			return nil, err
		}

		entries := result.Entries()

		if caller := actx.Memory(); caller != nil {
			thoughts := make([]core.Entry, 0, len(entries))
			for _, e := range entries {
				thoughts = append(thoughts, core.Entry{Type: name + "_thought", Content: e.Content})
			}

			caller.Add(thoughts...)
		}

		return map[string]any{
			"result":         lastContent(result),
			"memories_added": len(entries),
		}, nil
	})
}
