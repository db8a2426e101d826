package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// RegistryOptions configures a Registry.
type RegistryOptions struct {
	// Logger provides structured logging. Defaults to NoOp logger.
	Logger logging.Logger
}

// Registry holds named tools and executes them for DirectToolUse
// activities. It implements core.ToolExecutor and is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(optFns ...func(o *RegistryOptions)) *Registry {
	opts := RegistryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Registry{
		tools:  make(map[string]Tool),
		logger: opts.Logger,
	}
}

// Register adds tools by name. A tool with the same name is replaced.
func (r *Registry) Register(tools ...Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteTool implements core.ToolExecutor. params must be an object or nil.
// String results are returned as is, anything else is JSON encoded. Failures
// are returned as *core.ExecutionError wrapping a *ToolError.
func (r *Registry) ExecuteTool(ctx context.Context, name string, params core.Value) (string, error) {
	start := time.Now()
	activity := ""
	if info, ok := core.ActivityFromContext(ctx); ok {
		activity = info.ActivityID
	}

	r.logger.Debug("tool.call.start", "tool", name, "activity", activity)

	t, ok := r.Get(name)
	if !ok {
		return "", r.fail(ctx, name, NewToolError(name, "tool is not registered", CodeNotFound))
	}

	args, ok := core.AsObject(params)
	if !ok {
		return "", r.fail(ctx, name, &ToolError{
			Tool:    name,
			Message: fmt.Sprintf("parameters must be an object, got %T", params),
			Code:    CodeValidation,
		})
	}

	result, err := t.Call(ctx, args)
	if err != nil {
		var toolErr *ToolError
		if !errors.As(err, &toolErr) {
			toolErr = &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Err: err}
		}
		return "", r.fail(ctx, name, toolErr)
	}

	out, err := format(result)
	if err != nil {
		return "", r.fail(ctx, name, &ToolError{Tool: name, Message: err.Error(), Code: CodeExecution, Err: err})
	}

	r.logger.Info("tool.call.success", "tool", name, "activity", activity, "duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

func (r *Registry) fail(ctx context.Context, name string, toolErr *ToolError) error {
	r.logger.Warn("tool.call.error", "tool", name, "code", toolErr.Code, "error", toolErr.Message)

	kind := core.KindToolExecutionError
	if errors.Is(toolErr, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		kind = core.KindTimeout
	}
	return core.NewExecutionError(kind, toolErr.Error(), toolErr)
}

func format(result any) (string, error) {
	switch v := result.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	b, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(b), nil
}
