package capability

import (
	"context"
	"fmt"
	"time"
	_ "time/tzdata" // zone names resolve without a system zoneinfo database

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/logging"
	"github.com/hupe1980/agentloop/model"
)

// DefaultTimeZone is used when the run's context has no time_zone property.
const DefaultTimeZone = "America/Chicago"

const (
	humanTimeLayout = "15:04 Monday, January 02, 2006"
	isoTimeLayout   = "2006-01-02T15:04:05-0700"
)

// TimeAwareOptions configure TimeAware.
type TimeAwareOptions struct {
	// DefaultTimeZone applies when the context has no time_zone property.
	DefaultTimeZone string
	// Clock returns the current time (defaults to time.Now).
	Clock func() time.Time
	// Logger receives capability.time_aware.* events.
	Logger logging.Logger
}

// TimeAware tells the model the current date and time. At Init it adds a
// system memory entry; on every prompt it prefixes the first system message
// with the current time.
type TimeAware struct {
	Base
	opts TimeAwareOptions
}

var _ Capability = (*TimeAware)(nil)

// NewTimeAware creates a TimeAware capability.
func NewTimeAware(optFns ...func(o *TimeAwareOptions)) *TimeAware {
	opts := TimeAwareOptions{DefaultTimeZone: DefaultTimeZone, Clock: time.Now}

	for _, fn := range optFns {
		fn(&opts)
	}

	opts.Logger = logging.OrNoOp(opts.Logger)

	return &TimeAware{opts: opts}
}

// Name implements Capability.
func (c *TimeAware) Name() string { return "time_aware" }

// now returns the current time in the run's zone and the zone name.
func (c *TimeAware) now(run *core.RunState) (time.Time, string) {
	name := c.opts.DefaultTimeZone
	if run.Context != nil {
		if tz, ok := run.Context.Get(core.PropTimeZone, "").(string); ok && tz != "" {
			name = tz
		}
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		c.opts.Logger.Warn("capability.time_aware.unknown_zone", "time_zone", name, "error", err.Error())

		loc, name = time.UTC, "UTC"
	}

	return c.opts.Clock().In(loc), name
}

// Init implements Capability.
func (c *TimeAware) Init(_ context.Context, run *core.RunState) {
	m := run.Memory()
	if m == nil {
		return
	}

	now, zone := c.now(run)

	m.Add(core.Entry{
		Type: core.EntrySystem,
		Content: fmt.Sprintf("Right now, it is %s (ISO: %s).\nYou are in the %s timezone.\n"+
			"Please consider the day/time, if relevant, when responding.",
			now.Format(humanTimeLayout), now.Format(isoTimeLayout), zone),
	})
}

// ProcessPrompt implements Capability.
func (c *TimeAware) ProcessPrompt(_ context.Context, run *core.RunState, req model.Request) model.Request {
	now, zone := c.now(run)
	prefix := fmt.Sprintf("Current time: %s (%s)\n\n", now.Format(humanTimeLayout), zone)

	msgs := make([]model.Message, 0, len(req.Messages)+1)

	if len(req.Messages) > 0 && req.Messages[0].Role == model.RoleSystem {
		first := req.Messages[0]
		first.Content = prefix + first.Content
		msgs = append(msgs, first)
		msgs = append(msgs, req.Messages[1:]...)
	} else {
		msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: prefix})
		msgs = append(msgs, req.Messages...)
	}

	req.Messages = msgs

	return req
}
