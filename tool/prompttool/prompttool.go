// Package prompttool provides tools that call the run's model: free prompts,
// expert consultations, plans and progress reports. The model, the memory and
// the tool registry are injected from the ActionContext.
//
// The plan and progress prompts are shared with the plan_first and
// progress_tracking capabilities.
package prompttool

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

const planPrompt = `Based on the task and the available tools, create a detailed plan.
Think through this step by step:

1. First, identify the key components of the task
2. Consider which tools are available
3. Break the task into logical steps
4. For each step, specify:
   - What needs to be done
   - Which tool(s) to use
   - What information is needed
   - What the expected outcome is

Write your plan as clear, numbered steps. Each step must be specific and actionable.

Available tools:
%s

Task context from memory:
%s

Create a plan that accomplishes this task efficiently.`

const progressPrompt = `Based on the current task and the available tools, create a progress report.
Think through this step by step:

1. Identify the key components of the task and the intended outcome.
2. Assess the progress made so far based on the available information.
3. Identify any blockers or issues preventing completion.
4. Suggest the next steps to move the task forward efficiently.
5. Recommend tool usage that could help complete the task.

Write your report as clear, structured points.

Available tools:
%s

Task context from memory:
%s

Provide a well organized report on the current progress and next steps.`

// Options configure the prompt tools.
type Options struct {
	// Tags are attached to every tool (default "prompts").
	Tags []string
}

func options(optFns []func(o *Options)) Options {
	opts := Options{Tags: []string{"prompts"}}

	for _, fn := range optFns {
		fn(&opts)
	}

	return opts
}

// Tools returns prompt_llm, prompt_expert, create_plan and track_progress.
func Tools(optFns ...func(o *Options)) []tool.Tool {
	return []tool.Tool{
		PromptLLM(optFns...),
		PromptExpert(optFns...),
		CreatePlanTool(optFns...),
		TrackProgressTool(optFns...),
	}
}

// Prompt sends prompt, optionally preceded by a system message, and returns
// the text answer.
func Prompt(ctx context.Context, llm model.Model, system, prompt string) (string, error) {
	var msgs []model.Message
	if system != "" {
		msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: system})
	}

	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: prompt})

	resp, err := model.Collect(llm.Generate(ctx, model.Request{Messages: msgs}))
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrModelFailure, err)
	}

	return strings.TrimSpace(resp.Content), nil
}

// CreatePlan asks llm for a numbered plan for the task recorded in mem.
func CreatePlan(ctx context.Context, llm model.Model, reg *tool.Registry, mem core.Memory) (string, error) {
	return Prompt(ctx, llm, "", fmt.Sprintf(planPrompt, DescribeTools(reg), TaskContext(mem)))
}

// TrackProgress asks llm for a progress report on the task recorded in mem.
func TrackProgress(ctx context.Context, llm model.Model, reg *tool.Registry, mem core.Memory) (string, error) {
	return Prompt(ctx, llm, "", fmt.Sprintf(progressPrompt, DescribeTools(reg), TaskContext(mem)))
}

// DescribeTools lists "- name: description" lines for reg. A nil registry
// yields "".
func DescribeTools(reg *tool.Registry) string {
	if reg == nil {
		return ""
	}

	lines := make([]string, 0, reg.Len())
	for _, md := range reg.All() {
		lines = append(lines, fmt.Sprintf("- %s: %s", md.Name, md.Description))
	}

	return strings.Join(lines, "\n")
}

// TaskContext renders the user and system entries of mem.
func TaskContext(mem core.Memory) string {
	if mem == nil {
		return ""
	}

	var lines []string

	for _, e := range mem.Entries() {
		if e.Type == core.EntryUser || e.Type == core.EntrySystem {
			lines = append(lines, fmt.Sprintf("%s: %s", e.Type, e.Content))
		}
	}

	return strings.Join(lines, "\n")
}

func llmParam() tool.Parameter {
	return tool.FromContext("llm", core.PropModel, true)
}

// injected returns the value bound to name as T. Context parameters can be
// shadowed by model arguments, which never decode to Go values, so a type
// mismatch is reported as a missing property.
func injected[T any](args tool.Args, name, key string) (T, error) {
	v, ok := args[name].(T)
	if !ok {
		var zero T
		msg := fmt.Sprintf("required context property %q is not set", key)

		return zero, tool.NewToolError("", msg, tool.CodeMissingContext).WithCause(core.ErrMissingContextProperty)
	}

	return v, nil
}

// PromptLLM returns the prompt_llm tool.
func PromptLLM(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "prompt_llm",
		Description: "Send a prompt to the language model and return its answer.",
		Parameters: []tool.Parameter{
			tool.String("prompt", "The prompt to send"),
			llmParam(),
		},
		Tags: opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		llm, err := injected[model.Model](args, "llm", core.PropModel)
		if err != nil {
			return nil, err
		}

		return Prompt(ctx, llm, "", args.String("prompt"))
	})
}

// PromptExpert returns the prompt_expert tool. The expert description
// becomes the system message.
func PromptExpert(optFns ...func(o *Options)) *tool.FunctionTool {
	opts := options(optFns)

	return tool.New(tool.Config{
		Name:        "prompt_expert",
		Description: "Consult an expert persona of the language model.",
		Doc: "The description of the expert sets the role and expertise, e.g. " +
			"\"a QA engineer with twelve years of test design experience\".",
		Parameters: []tool.Parameter{
			tool.String("description_of_expert", "Role and expertise of the expert"),
			tool.String("prompt", "Question or request for the expert"),
			llmParam(),
		},
		Tags: opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		llm, err := injected[model.Model](args, "llm", core.PropModel)
		if err != nil {
			return nil, err
		}

		return Prompt(ctx, llm, args.String("description_of_expert"), args.String("prompt"))
	})
}

func reportParams() []tool.Parameter {
	return []tool.Parameter{
		tool.FromContext("memory", core.PropMemory, true),
		tool.FromContext("action_registry", core.PropToolRegistry, false),
		llmParam(),
	}
}

type reportFunc func(ctx context.Context, llm model.Model, reg *tool.Registry, mem core.Memory) (string, error)

func reportTool(name, description string, opts Options, fn reportFunc) *tool.FunctionTool {
	return tool.New(tool.Config{
		Name:        name,
		Description: description,
		Parameters:  reportParams(),
		Tags:        opts.Tags,
	}, func(ctx context.Context, args tool.Args) (any, error) {
		llm, err := injected[model.Model](args, "llm", core.PropModel)
		if err != nil {
			return nil, err
		}

		mem, err := injected[core.Memory](args, "memory", core.PropMemory)
		if err != nil {
			return nil, err
		}

		reg, _ := args["action_registry"].(*tool.Registry)

		return fn(ctx, llm, reg, mem)
	})
}

// CreatePlanTool returns the create_plan tool.
func CreatePlanTool(optFns ...func(o *Options)) *tool.FunctionTool {
	return reportTool("create_plan",
		"Create a step by step plan for the current task using the available tools.",
		options(optFns), CreatePlan)
}

// TrackProgressTool returns the track_progress tool.
func TrackProgressTool(optFns ...func(o *Options)) *tool.FunctionTool {
	return reportTool("track_progress",
		"Report the progress on the current task and suggest next steps.",
		options(optFns), TrackProgress)
}
