package core

import "time"

// RunState identifies one agent run and tracks its progress. The loop owns
// the value and updates Iteration; hooks receive it read-only by convention.
type RunState struct {
	RunID     string
	AgentName string
	Goals     []Goal
	Input     string
	Iteration int
	StartedAt time.Time
	Context   *ActionContext

	// StopReason is set by the loop before the terminate hooks run.
	StopReason string
}

// Memory returns the run's memory (shorthand for Context.Memory()).
func (r *RunState) Memory() Memory {
	if r.Context == nil {
		return nil
	}

	return r.Context.Memory()
}
