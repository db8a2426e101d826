package tool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
)

// Interface compliance (compile-time assertions)
var (
	_ core.ToolExecutor = (*Registry)(nil)
	_ Tool              = (*FunctionTool)(nil)
)

func sumTool() *FunctionTool {
	return NewFunctionTool("sum", "Add numbers", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "number"},
			"b": map[string]any{"type": "number"},
		},
		"required": []string{"a", "b"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["a"].(float64) + args["b"].(float64), nil
	})
}

// -------------------- FunctionTool Tests --------------------

func TestFunctionTool_Success(t *testing.T) {
	result, err := sumTool().Call(context.Background(), map[string]any{"a": 2.0, "b": 3.0})
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestFunctionTool_ValidationError(t *testing.T) {
	_, err := sumTool().Call(context.Background(), map[string]any{"a": 1.0})

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "b", vErr.Field)
}

func TestFunctionTool_ExecutionError(t *testing.T) {
	boom := errors.New("boom")
	execTool := NewFunctionTool("fail", "Fails", map[string]any{}, func(context.Context, map[string]any) (any, error) {
		return nil, boom
	})

	_, err := execTool.Call(context.Background(), map[string]any{})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeExecution, toolErr.Code)
	assert.ErrorIs(t, err, boom)
}

func TestFunctionTool_CustomErrorForwarded(t *testing.T) {
	custom := NewToolError("quota", "limit reached", "RATE_LIMITED")
	quota := NewFunctionTool("quota", "Fails", map[string]any{}, func(context.Context, map[string]any) (any, error) {
		return nil, custom
	})

	_, err := quota.Call(context.Background(), nil)
	assert.Same(t, custom, err)
	assert.Equal(t, "tool error [RATE_LIMITED] in quota: limit reached", err.Error())
}

func TestNewTypedTool(t *testing.T) {
	type args struct {
		City  string `json:"city" description:"City name"`
		Units string `json:"units,omitempty" enum:"metric,imperial"`
	}
	weather := NewTypedTool("weather", "Weather", func(_ context.Context, a args) (any, error) {
		return "sunny in " + a.City + " (" + a.Units + ")", nil
	})

	assert.Equal(t, []string{"city"}, weather.Parameters()["required"])

	out, err := weather.Call(context.Background(), map[string]any{"city": "Oslo", "units": "metric"})
	require.NoError(t, err)
	assert.Equal(t, "sunny in Oslo (metric)", out)

	var toolErr *ToolError

	_, err = weather.Call(context.Background(), map[string]any{})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)

	_, err = weather.Call(context.Background(), map[string]any{"city": "Oslo", "units": "kelvin"})
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}

// -------------------- Registry Tests --------------------

func TestRegistry_ExecuteTool(t *testing.T) {
	r := NewRegistry()
	r.Register(sumTool(), NewEchoTool())
	assert.Equal(t, []string{"echo", "sum"}, r.Names())

	out, err := r.ExecuteTool(context.Background(), "sum", map[string]any{"a": 2.0, "b": 3.5})
	require.NoError(t, err)
	assert.Equal(t, "5.5", out)

	out, err = r.ExecuteTool(context.Background(), "echo", map[string]any{"text": "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hello", out)

	out, err = r.ExecuteTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
}

func TestRegistry_Errors(t *testing.T) {
	r := NewRegistry()
	r.Register(sumTool())

	tests := []struct {
		name   string
		tool   string
		params core.Value
		code   string
	}{
		{"unknown tool", "missing", nil, CodeNotFound},
		{"non object parameters", "sum", []any{1.0}, CodeValidation},
		{"invalid parameters", "sum", map[string]any{"a": "x", "b": 1.0}, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.ExecuteTool(context.Background(), tt.tool, tt.params)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrToolExecution)

			var toolErr *ToolError
			require.ErrorAs(t, err, &toolErr)
			assert.Equal(t, tt.code, toolErr.Code)
		})
	}
}

func TestRegistry_Timeout(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFunctionTool("slow", "Slow", map[string]any{}, func(ctx context.Context, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := r.ExecuteTool(ctx, "slow", nil)
	assert.ErrorIs(t, err, core.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_ConcurrentUse(t *testing.T) {
	r := NewRegistry()
	r.Register(NewEchoTool())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register(sumTool())
			_, err := r.ExecuteTool(context.Background(), "echo", map[string]any{"text": "x"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

// -------------------- Builtin Tests --------------------

func TestTemplateTool(t *testing.T) {
	r := NewRegistry()
	r.Register(Builtins()...)

	out, err := r.ExecuteTool(context.Background(), "template", map[string]any{
		"template": "Hello {{.name}}",
		"values":   map[string]any{"name": "Ada"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello Ada", out)

	schema := NewTemplateTool().Parameters()
	assert.Equal(t, []string{"template"}, schema["required"])
	assert.Contains(t, schema["properties"], "values")

	_, err = r.ExecuteTool(context.Background(), "template", map[string]any{"values": map[string]any{}})
	assert.Error(t, err)
}

func TestClockTool(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := NewClockTool(func() time.Time { return fixed })

	out, err := clock.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T12:00:00Z", out)

	out, err = clock.Call(context.Background(), map[string]any{"format": "date"})
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01", out)

	out, err = clock.Call(context.Background(), map[string]any{"format": "unix"})
	require.NoError(t, err)
	assert.Equal(t, "1714564800", out)

	schema := clock.Parameters()
	assert.NotContains(t, schema, "required")
	format := schema["properties"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, []any{"rfc3339", "date", "unix"}, format["enum"])

	_, err = clock.Call(context.Background(), map[string]any{"format": "weekday"})
	assert.Error(t, err)

	_, err = clock.Call(context.Background(), map[string]any{"timezone": "Mars/Olympus"})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeValidation, toolErr.Code)
}
