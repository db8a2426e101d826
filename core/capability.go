package core

import "context"

// AgentInteraction delegates a task to an agent (remote or model backed).
// Retry, backoff and per-call timeouts are the implementation's concern; the
// caller only observes eventual success or failure.
type AgentInteraction interface {
	ExecuteTask(ctx context.Context, description, skill string) (string, error)
}

// ToolExecutor runs the named tool with opaque parameters.
type ToolExecutor interface {
	ExecuteTool(ctx context.Context, name string, params Value) (string, error)
}

// TaskExecutor runs an ordered sequence of task specs.
type TaskExecutor interface {
	ExecuteTasks(ctx context.Context, tasks []TaskSpec) (string, error)
}

// AgentInteractionFunc adapts a function to AgentInteraction.
type AgentInteractionFunc func(ctx context.Context, description, skill string) (string, error)

// ExecuteTask implements AgentInteraction.
func (f AgentInteractionFunc) ExecuteTask(ctx context.Context, description, skill string) (string, error) {
	return f(ctx, description, skill)
}

// ToolExecutorFunc adapts a function to ToolExecutor.
type ToolExecutorFunc func(ctx context.Context, name string, params Value) (string, error)

// ExecuteTool implements ToolExecutor.
func (f ToolExecutorFunc) ExecuteTool(ctx context.Context, name string, params Value) (string, error) {
	return f(ctx, name, params)
}

// TaskExecutorFunc adapts a function to TaskExecutor.
type TaskExecutorFunc func(ctx context.Context, tasks []TaskSpec) (string, error)

// ExecuteTasks implements TaskExecutor.
func (f TaskExecutorFunc) ExecuteTasks(ctx context.Context, tasks []TaskSpec) (string, error) {
	return f(ctx, tasks)
}

// ActivityInfo describes the activity a capability call is made for. The
// coordinator attaches it to the context of every dispatch.
type ActivityInfo struct {
	PlanName        string
	RunID           string
	ActivityID      string
	AgentPreference string
	AgentContext    Value
}

type activityKey struct{}

// WithActivity returns a copy of ctx carrying info.
func WithActivity(ctx context.Context, info ActivityInfo) context.Context {
	return context.WithValue(ctx, activityKey{}, info)
}

// ActivityFromContext returns the ActivityInfo attached by WithActivity.
func ActivityFromContext(ctx context.Context) (ActivityInfo, bool) {
	info, ok := ctx.Value(activityKey{}).(ActivityInfo)
	return info, ok
}
