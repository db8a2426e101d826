package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/model"
)

// MockModelImpl for testing LLM functionality
type MockModelImpl struct{ mock.Mock }

func (m *MockModelImpl) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	args := m.Called(ctx, req)

	respCh := make(chan model.Response, 1)
	errCh := make(chan error, 1)

	if err := args.Error(1); err != nil {
		errCh <- err
	} else {
		respCh <- model.Response{Text: args.String(0), FinishReason: "stop", Usage: &model.TokenUsage{TotalTokens: 5}}
	}

	close(respCh)
	close(errCh)

	return respCh, errCh
}

func (m *MockModelImpl) Info() model.Info {
	return model.Info{Name: "mock", Provider: "test"}
}

func TestModelInteraction_ExecuteTask(t *testing.T) {
	llm := &MockModelImpl{}
	llm.On("Generate", mock.Anything, mock.MatchedBy(func(req model.Request) bool {
		return len(req.Messages) == 1 &&
			req.Messages[0].Content == "Summarize: quarterly numbers" &&
			req.Instructions == "writer handles summarize for plan report"
	})).Return("  short summary \n", nil)

	a := NewModelInteraction("writer", llm, func(o *ModelInteractionOptions) {
		o.Instruction = NewInstructionFromText("{{.agent}} handles {{.skill}} for plan {{.plan}}")
		o.Prompt = "Summarize: {{.description}}"
		o.Skills = []string{"summarize", "translate"}
	})

	ctx := core.WithActivity(context.Background(), core.ActivityInfo{PlanName: "report", ActivityID: "A"})
	out, err := a.ExecuteTask(ctx, "quarterly numbers", "summarize")
	require.NoError(t, err)
	assert.Equal(t, "short summary", out)
	llm.AssertExpectations(t)
}

func TestModelInteraction_DefaultInstruction(t *testing.T) {
	llm := model.NewMockModel("mock")
	a := NewModelInteraction("helper", llm)

	out, err := a.ExecuteTask(context.Background(), "say hi", "greet")
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: say hi", out)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Instructions, "You are helper")
	assert.Contains(t, reqs[0].Instructions, `"greet" skill`)

	_, err = a.ExecuteTask(context.Background(), "again", "")
	require.NoError(t, err)
	assert.NotContains(t, llm.Requests()[1].Instructions, "skill")
}

func TestModelInteraction_Errors(t *testing.T) {
	t.Run("model error", func(t *testing.T) {
		llm := &MockModelImpl{}
		llm.On("Generate", mock.Anything, mock.Anything).Return("", errors.New("rate limited"))

		_, err := NewModelInteraction("a", llm).ExecuteTask(context.Background(), "x", "")
		assert.ErrorIs(t, err, core.ErrRemoteAgentError)
		assert.ErrorContains(t, err, "rate limited")
	})

	t.Run("timeout", func(t *testing.T) {
		llm := &MockModelImpl{}
		llm.On("Generate", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded)

		a := NewModelInteraction("a", llm, func(o *ModelInteractionOptions) { o.Timeout = time.Second })
		_, err := a.ExecuteTask(context.Background(), "x", "")
		assert.ErrorIs(t, err, core.ErrTimeout)
	})

	t.Run("provider error", func(t *testing.T) {
		boom := errors.New("no instruction")
		a := NewModelInteraction("a", &MockModelImpl{}, func(o *ModelInteractionOptions) {
			o.Instruction = NewInstructionFromFunc(func(context.Context, TaskInput) (string, error) { return "", boom })
		})
		_, err := a.ExecuteTask(context.Background(), "x", "")
		assert.ErrorIs(t, err, boom)
	})
}

func TestModelInteraction_Skills(t *testing.T) {
	a := NewModelInteraction("a", &MockModelImpl{}, func(o *ModelInteractionOptions) {
		o.Skills = []string{"translate-de", "summarize"}
	})

	assert.Equal(t, "a", a.ID())
	assert.True(t, a.HasSkill("translate"))
	assert.True(t, a.HasSkill("summarize"))
	assert.False(t, a.HasSkill("code"))
	assert.Equal(t, []string{"translate-de", "summarize"}, a.Skills())
}

func TestModelInteraction_Limiter(t *testing.T) {
	limiter := NewCallLimiter(2)
	llm := model.NewMockModel("mock")
	opt := func(o *ModelInteractionOptions) { o.Limiter = limiter }

	a := NewModelInteraction("a", llm, opt)
	b := NewModelInteraction("b", llm, opt)

	_, err := a.ExecuteTask(context.Background(), "one", "")
	require.NoError(t, err)
	_, err = b.ExecuteTask(context.Background(), "two", "")
	require.NoError(t, err)

	_, err = a.ExecuteTask(context.Background(), "three", "")
	assert.ErrorIs(t, err, ErrCallBudgetExhausted)
	assert.ErrorIs(t, err, core.ErrRemoteAgentError)
	assert.Len(t, llm.Requests(), 2)
	assert.Equal(t, 0, limiter.Remaining())
}

func TestCallLimiter(t *testing.T) {
	unlimited := NewCallLimiter(0)
	for i := 0; i < 5; i++ {
		require.NoError(t, unlimited.Acquire())
	}
	assert.Equal(t, 5, unlimited.Count())
	assert.Equal(t, -1, unlimited.Remaining())

	one := NewCallLimiter(1)
	require.NoError(t, one.Acquire())
	assert.Error(t, one.Acquire())
	assert.Equal(t, 1, one.Count())
}
