package capability

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool/prompttool"
)

// ProgressTrackingOptions configure ProgressTracking.
type ProgressTrackingOptions struct {
	// MemoryType is the entry type of the report (default "system").
	MemoryType string
	// Frequency reports every Nth iteration (default 1).
	Frequency int
	// Model writes the report. Nil uses the model stored in the run's
	// context under "llm".
	Model model.Model
	// Logger receives capability.progress.* events.
	Logger logging.Logger
}

// ProgressTracking appends a progress report to memory at the end of every
// Nth iteration of a run. Iterations are counted per run ID.
type ProgressTracking struct {
	Base
	opts ProgressTrackingOptions

	mu     sync.Mutex
	counts map[string]int
}

var _ Capability = (*ProgressTracking)(nil)

// NewProgressTracking creates a ProgressTracking capability.
func NewProgressTracking(optFns ...func(o *ProgressTrackingOptions)) *ProgressTracking {
	opts := ProgressTrackingOptions{MemoryType: core.EntrySystem, Frequency: 1}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Frequency < 1 {
		opts.Frequency = 1
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	return &ProgressTracking{opts: opts, counts: make(map[string]int)}
}

// Name implements Capability.
func (c *ProgressTracking) Name() string { return "progress_tracking" }

// EndAgentLoop implements Capability.
func (c *ProgressTracking) EndAgentLoop(ctx context.Context, run *core.RunState, _ Step) {
	c.mu.Lock()
	c.counts[run.RunID]++
	count := c.counts[run.RunID]
	c.mu.Unlock()

	if count%c.opts.Frequency != 0 {
		return
	}

	m := run.Memory()
	if m == nil {
		return
	}

	llm, err := resolveModel(c.opts.Model, run)
	if err != nil {
		c.opts.Logger.Warn("capability.progress.skipped", "error", err.Error())
		return
	}

	report, err := prompttool.TrackProgress(ctx, llm, toolRegistry(run), m)
	if err != nil {
		c.opts.Logger.Error("capability.progress.failed", "error", err.Error())
		return
	}

	m.Add(core.Entry{
		Type:    c.opts.MemoryType,
		Content: fmt.Sprintf("Progress Report (Iteration %d):\n%s", count, report),
	})
}

// Terminate implements Capability.
func (c *ProgressTracking) Terminate(_ context.Context, run *core.RunState) {
	c.mu.Lock()
	delete(c.counts, run.RunID)
	c.mu.Unlock()
}
