package capability

import (
	"fmt"

	"github.com/hupe1980/agentloop/core"
	"github.com/hupe1980/agentloop/model"
	"github.com/hupe1980/agentloop/tool"
)

// resolveModel returns fixed when set, else the model stored in the run's
// ActionContext.
func resolveModel(fixed model.Model, run *core.RunState) (model.Model, error) {
	if fixed != nil {
		return fixed, nil
	}

	if run.Context != nil {
		if m, ok := run.Context.Get(core.PropModel, nil).(model.Model); ok {
			return m, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", core.ErrMissingContextProperty, core.PropModel)
}

// toolRegistry returns the run's tool registry or nil.
func toolRegistry(run *core.RunState) *tool.Registry {
	if run.Context == nil {
		return nil
	}

	reg, _ := run.Context.Get(core.PropToolRegistry, nil).(*tool.Registry)

	return reg
}
