package capability

import (
	"context"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool/prompttool"
)

// PlanFirstOptions configure PlanFirst.
type PlanFirstOptions struct {
	// MemoryType is the entry type of the plan (default "system").
	MemoryType string
	// Model generates the plan. Nil uses the model stored in the run's
	// context under "llm".
	Model model.Model
	// Logger receives capability.plan_first.* events.
	Logger logging.Logger
}

// PlanFirst asks the model for a step by step plan before the first
// iteration and stores it in memory. The plan is generated once per run, even
// when Init runs again for the same run ID.
type PlanFirst struct {
	Base
	opts PlanFirstOptions

	mu      sync.Mutex
	planned map[string]struct{}
}

var _ Capability = (*PlanFirst)(nil)

// NewPlanFirst creates a PlanFirst capability.
func NewPlanFirst(optFns ...func(o *PlanFirstOptions)) *PlanFirst {
	opts := PlanFirstOptions{MemoryType: core.EntrySystem}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	return &PlanFirst{opts: opts, planned: make(map[string]struct{})}
}

// Name implements Capability.
func (c *PlanFirst) Name() string { return "plan_first" }

// Init implements Capability.
func (c *PlanFirst) Init(ctx context.Context, run *core.RunState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, done := c.planned[run.RunID]; done {
		return
	}

	c.planned[run.RunID] = struct{}{}

	m := run.Memory()
	if m == nil {
		return
	}

	llm, err := resolveModel(c.opts.Model, run)
	if err != nil {
		c.opts.Logger.Warn("capability.plan_first.skipped", "error", err.Error())
		return
	}

	plan, err := prompttool.CreatePlan(ctx, llm, toolRegistry(run), m)
	if err != nil {
		c.opts.Logger.Error("capability.plan_first.failed", "error", err.Error())
		return
	}

	m.Add(core.Entry{
		Type:    c.opts.MemoryType,
		Content: "You must follow these instructions carefully to complete the task:\n" + plan,
	})

	c.opts.Logger.Debug("capability.plan_first.created", "run_id", run.RunID)
}

// Terminate implements Capability.
func (c *PlanFirst) Terminate(_ context.Context, run *core.RunState) {
	c.mu.Lock()
	delete(c.planned, run.RunID)
	c.mu.Unlock()
}
