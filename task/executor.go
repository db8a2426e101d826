package task

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// ErrUnknownTask is wrapped by failures caused by an unregistered task name.
var ErrUnknownTask = errors.New("unknown task")

// Handler runs a single task. previous is the output of the preceding task
// of the same activity, or empty for the first one.
type Handler func(ctx context.Context, params core.Value, previous string) (string, error)

// Options configures an Executor.
type Options struct {
	// DefaultTask is used for task specs without task_to_use. Empty means such
	// specs fail.
	DefaultTask string

	// Logger provides structured logging. Defaults to NoOp logger.
	Logger logging.Logger
}

// Executor implements core.TaskExecutor over a set of named handlers. It is
// safe for concurrent use.
type Executor struct {
	mu          sync.RWMutex
	handlers    map[string]Handler
	defaultTask string
	logger      logging.Logger
}

// NewExecutor creates an executor with no handlers.
func NewExecutor(optFns ...func(o *Options)) *Executor {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Executor{
		handlers:    make(map[string]Handler),
		defaultTask: opts.DefaultTask,
		logger:      opts.Logger,
	}
}

// Register adds or replaces the handler for name.
func (e *Executor) Register(name string, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[name] = h
}

// Names returns the registered task names in sorted order.
func (e *Executor) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.handlers))
	for name := range e.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteTasks implements core.TaskExecutor. It stops at the first failing
// task and returns a TaskExecutionError naming the task's position. An empty
// task list yields the empty string.
func (e *Executor) ExecuteTasks(ctx context.Context, tasks []core.TaskSpec) (string, error) {
	output := ""

	for i, spec := range tasks {
		if err := ctx.Err(); err != nil {
			return "", e.fail(i, spec.Name(), err)
		}

		name := spec.Name()
		if name == "" {
			name = e.defaultTask
		}

		h, ok := e.handler(name)
		if !ok {
			return "", e.fail(i, name, fmt.Errorf("%w %q", ErrUnknownTask, name))
		}

		start := time.Now()
		out, err := h(ctx, spec.TaskParameters, output)
		if err != nil {
			return "", e.fail(i, name, err)
		}

		e.logger.Debug("task.run.success", "task", name, "index", i, "duration_ms", time.Since(start).Milliseconds())
		output = out
	}

	return output, nil
}

func (e *Executor) handler(name string) (Handler, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	h, ok := e.handlers[name]
	return h, ok
}

func (e *Executor) fail(index int, name string, err error) error {
	e.logger.Warn("task.run.error", "task", name, "index", index, "error", err)

	kind := core.KindTaskExecutionError
	if errors.Is(err, context.DeadlineExceeded) {
		kind = core.KindTimeout
	}
	return core.NewExecutionError(kind, fmt.Sprintf("task %d (%s): %v", index, name, err), err)
}
