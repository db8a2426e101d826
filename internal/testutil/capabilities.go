package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/planmesh/core"
)

// FakeCapabilities scripts capability results per activity id. Every call,
// whatever its capability, is answered from the script of the activity found
// in the call's context. Unscripted activities return "out-<id>".
type FakeCapabilities struct {
	mu      sync.Mutex
	outputs map[string]string
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   []string
	started chan string
}

// NewFakeCapabilities returns an empty script.
func NewFakeCapabilities() *FakeCapabilities {
	return &FakeCapabilities{
		outputs: map[string]string{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 64),
	}
}

// Returns makes activity id succeed with out (chainable).
func (f *FakeCapabilities) Returns(id, out string) *FakeCapabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[id] = out
	return f
}

// Fails makes activity id fail with err (chainable).
func (f *FakeCapabilities) Fails(id string, err error) *FakeCapabilities {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[id] = err
	return f
}

// Block makes calls for activity id wait until the returned release function
// is called or the call's context is done.
func (f *FakeCapabilities) Block(id string) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[id] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Started reports activity ids as their calls begin.
func (f *FakeCapabilities) Started() <-chan string { return f.started }

// Calls returns the activity ids called so far, in call order.
func (f *FakeCapabilities) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Agent returns the script as AgentInteraction.
func (f *FakeCapabilities) Agent() core.AgentInteraction {
	return core.AgentInteractionFunc(func(ctx context.Context, _, _ string) (string, error) {
		return f.call(ctx)
	})
}

// Tools returns the script as ToolExecutor.
func (f *FakeCapabilities) Tools() core.ToolExecutor {
	return core.ToolExecutorFunc(func(ctx context.Context, _ string, _ core.Value) (string, error) {
		return f.call(ctx)
	})
}

// Tasks returns the script as TaskExecutor.
func (f *FakeCapabilities) Tasks() core.TaskExecutor {
	return core.TaskExecutorFunc(func(ctx context.Context, _ []core.TaskSpec) (string, error) {
		return f.call(ctx)
	})
}

func (f *FakeCapabilities) call(ctx context.Context) (string, error) {
	info, _ := core.ActivityFromContext(ctx)
	id := info.ActivityID

	f.mu.Lock()
	f.calls = append(f.calls, id)
	out, hasOut := f.outputs[id]
	err := f.errs[id]
	gate := f.gates[id]
	f.mu.Unlock()

	select {
	case f.started <- id:
	default:
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if err != nil {
		return "", err
	}
	if !hasOut {
		out = "out-" + id
	}
	return out, nil
}
