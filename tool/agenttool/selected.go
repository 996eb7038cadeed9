package agenttool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/memory"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// selection is the JSON answer expected from the model when choosing memories.
type selection struct {
	SelectedMemories []string `json:"selected_memories"`
	Reasoning        string   `json:"reasoning"`
}

// CallWithSelectedContext returns the call_agent_with_selected_context tool.
// The model stored under core.PropModel picks the caller memories relevant
// to the task; only those are handed to the isolated child. The selection
// reasoning and the child's entries are appended to the caller's memory.
func CallWithSelectedContext(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "call_agent_with_selected_context",
		Description: "Delegate a task to another agent with selected context.",
		Parameters: append(delegationParams(),
			tool.FromContext("llm", core.PropModel, true),
		),
		Tags: opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		actx := args.ActionContext()
		name, task := args.String("agent_name"), args.String("task")

		llm, ok := args["llm"].(model.Model)
		if !ok {
			return nil, fmt.Errorf("context property %q is not a model", core.PropModel)
		}

		caller := actx.Memory()
		if caller == nil {
			return nil, fmt.Errorf("caller has no memory")
		}

		entries := caller.Entries()

		sel, err := selectMemories(ctx, llm, task, entries)
		if err != nil {
			return nil, err
		}

		chosen := make(map[string]struct{}, len(sel.SelectedMemories))
		for _, id := range sel.SelectedMemories {
			chosen[id] = struct{}{}
		}

		filtered := memory.New()

		for i, e := range entries {
			if _, ok := chosen[memoryID(i)]; ok {
				filtered.Add(e)
			}
		}

		shared := filtered.Len()

		result, err := delegate(ctx, actx, name, core.DelegateRequest{
			Task:       task,
			Memory:     filtered,
			Properties: actx.Derive(opts.ForwardedProperties...).Without(core.PropAgentRegistry, core.PropMemory).Properties(),
		})
		if err != nil {
			return nil, err
		}

		caller.Add(core.Entry{Type: core.EntrySystem, Content: "Memory selection reasoning: " + sel.Reasoning})
		caller.Add(result.Entries()...)

		return map[string]any{
			"result":              lastContent(result),
			"shared_memories":     shared,
			"selection_reasoning": sel.Reasoning,
		}, nil
	})
}

func memoryID(i int) string { return fmt.Sprintf("mem_%d", i) }

func selectMemories(ctx context.Context, llm model.Model, task string, entries []core.Entry) (selection, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Review these memories and select the ones relevant for this task:\n\nTask: %s\n\nAvailable memories:\n", task)

	for i, e := range entries {
		fmt.Fprintf(&b, "Memory %s: %s\n", memoryID(i), e.Content)
	}

	b.WriteString("\nSelect the memories that provide important context for this task and explain your choice. ")
	b.WriteString(`Respond with JSON only: {"selected_memories": ["mem_0"], "reasoning": "..."}`)

	resp, err := model.Collect(llm.Generate(ctx, model.Request{
		Messages: []model.Message{{Role: model.RoleUser, Content: b.String()}},
	}))
	if err != nil {
		return selection{}, fmt.Errorf("%w: %w", core.ErrModelFailure, err)
	}

	var sel selection
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &sel); err != nil {
		return selection{}, fmt.Errorf("memory selection is not valid JSON: %w", err)
	}

	return sel, nil
}

// extractJSON returns the outermost {...} span of s, tolerating prose or code
// fences around the object.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")

	if start < 0 || end < start {
		return s
	}

	return s[start : end+1]
}
