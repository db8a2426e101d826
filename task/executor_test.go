package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

// Interface compliance (compile-time assertion)
var _ core.TaskExecutor = (*Executor)(nil)

func spec(name string, params core.Value) core.TaskSpec {
	return core.TaskSpec{TaskToUse: &name, TaskParameters: params}
}

func TestExecutor_Sequential(t *testing.T) {
	e := NewExecutor()
	RegisterBuiltins(e)
	assert.Equal(t, []string{"echo", "template", "transform"}, e.Names())

	out, err := e.ExecuteTasks(context.Background(), []core.TaskSpec{
		spec("echo", map[string]any{"text": "  world "}),
		spec("transform", map[string]any{"op": "trim"}),
		spec("template", map[string]any{"template": "{{.greeting}} {{.previous}}", "values": map[string]any{"greeting": "hello"}}),
		spec("transform", map[string]any{"op": "upper"}),
	})
	require.NoError(t, err)
	assert.Equal(t, "HELLO WORLD", out)
}

func TestExecutor_Empty(t *testing.T) {
	out, err := NewExecutor().ExecuteTasks(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExecutor_StopsOnFirstError(t *testing.T) {
	e := NewExecutor()
	boom := errors.New("boom")
	ran := false
	e.Register("fail", func(context.Context, core.Value, string) (string, error) { return "", boom })
	e.Register("after", func(context.Context, core.Value, string) (string, error) {
		ran = true
		return "", nil
	})

	_, err := e.ExecuteTasks(context.Background(), []core.TaskSpec{spec("fail", nil), spec("after", nil)})
	assert.ErrorIs(t, err, core.ErrTaskExecution)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "task 0 (fail)")
	assert.False(t, ran)
}

func TestExecutor_UnknownTask(t *testing.T) {
	_, err := NewExecutor().ExecuteTasks(context.Background(), []core.TaskSpec{spec("nope", nil)})
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.ErrorIs(t, err, core.ErrTaskExecution)

	_, err = NewExecutor().ExecuteTasks(context.Background(), []core.TaskSpec{{}})
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestExecutor_DefaultTask(t *testing.T) {
	e := NewExecutor(func(o *Options) { o.DefaultTask = "echo" })
	RegisterBuiltins(e)

	out, err := e.ExecuteTasks(context.Background(), []core.TaskSpec{{TaskParameters: map[string]any{"text": "hi"}}})
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestExecutor_Timeout(t *testing.T) {
	e := NewExecutor()
	e.Register("slow", func(ctx context.Context, _ core.Value, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := e.ExecuteTasks(ctx, []core.TaskSpec{spec("slow", nil)})
	assert.ErrorIs(t, err, core.ErrTimeout)
}

func TestHandlers(t *testing.T) {
	ctx := context.Background()

	out, err := Echo(ctx, nil, "prev")
	require.NoError(t, err)
	assert.Equal(t, "prev", out)

	_, err = Template(ctx, map[string]any{}, "")
	assert.Error(t, err)

	out, err = Transform(ctx, map[string]any{"op": "json"}, `say "hi"`)
	require.NoError(t, err)
	assert.Equal(t, `"say \"hi\""`, out)

	_, err = Transform(ctx, map[string]any{"op": "reverse"}, "x")
	assert.Error(t, err)
}
