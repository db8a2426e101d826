package engine

import (
	"context"
	"errors"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/plan"
)

// dispatch runs one activity on the capability matching its type and
// normalises failures into *core.ExecutionError.
func (c Capabilities) dispatch(ctx context.Context, act *plan.Activity) (string, error) {
	switch act.ActivityType {
	case plan.DelegationAgent:
		if c.Agents == nil {
			return "", core.NewExecutionError(core.KindRemoteAgentUnavailable, "no agent interaction configured", nil)
		}
		out, err := c.Agents.ExecuteTask(ctx, act.Description, act.Skill())
		return out, normalizeError(err, core.KindRemoteAgentError)

	case plan.DirectToolUse:
		if c.Tools == nil {
			return "", core.NewExecutionError(core.KindToolExecutionError, "no tool executor configured", nil)
		}
		out, err := c.Tools.ExecuteTool(ctx, act.Tool(), act.ToolParameters)
		return out, normalizeError(err, core.KindToolExecutionError)

	case plan.DirectTaskExecution:
		if c.Tasks == nil {
			return "", core.NewExecutionError(core.KindTaskExecutionError, "no task executor configured", nil)
		}
		out, err := c.Tasks.ExecuteTasks(ctx, act.Tasks)
		return out, normalizeError(err, core.KindTaskExecutionError)

	default:
		return "", core.NewExecutionError(core.KindTaskExecutionError, "unsupported activity type "+act.ActivityType.String(), nil)
	}
}

func normalizeError(err error, kind core.ExecutionErrorKind) error {
	if err == nil {
		return nil
	}
	if _, ok := core.AsExecutionError(err); ok {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return core.NewExecutionError(core.KindTimeout, err.Error(), err)
	}
	return core.NewExecutionError(kind, err.Error(), err)
}
