package core

import (
	"fmt"
	"sync"
	"time"
)

// Budget enforces the iteration and wall-clock bounds of one run. Limits are
// checked only between iterations; a blocked model or tool call is not
// interrupted.
type Budget struct {
	maxIterations int
	maxDuration   time.Duration
	now           func() time.Time

	mu        sync.Mutex
	count     int
	startedAt time.Time
}

// NewBudget creates a budget. A zero maxIterations or maxDuration disables
// that bound. now defaults to time.Now.
func NewBudget(maxIterations int, maxDuration time.Duration, now func() time.Time) *Budget {
	if now == nil {
		now = time.Now
	}

	return &Budget{
		maxIterations: maxIterations,
		maxDuration:   maxDuration,
		now:           now,
		startedAt:     now(),
	}
}

// Increment records one iteration.
func (b *Budget) Increment() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.count++
}

// Count returns the number of recorded iterations.
func (b *Budget) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.count
}

// Remaining returns how many iterations are left, or -1 when unbounded.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.maxIterations == 0 {
		return -1
	}

	return b.maxIterations - b.count
}

// Elapsed returns the time since the budget was created.
func (b *Budget) Elapsed() time.Duration {
	return b.now().Sub(b.startedAt)
}

// IterationsExhausted reports whether the iteration bound has been reached.
func (b *Budget) IterationsExhausted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.maxIterations > 0 && b.count >= b.maxIterations
}

// DurationExhausted reports whether the wall-clock bound has been reached.
func (b *Budget) DurationExhausted() bool {
	return b.maxDuration > 0 && b.Elapsed() >= b.maxDuration
}

// Notice describes the exhausted bound, or "" when none is.
func (b *Budget) Notice() string {
	switch {
	case b.IterationsExhausted():
		return fmt.Sprintf("stopped after reaching the maximum of %d iterations", b.maxIterations)
	case b.DurationExhausted():
		return fmt.Sprintf("stopped after exceeding the maximum duration of %s", b.maxDuration)
	default:
		return ""
	}
}
