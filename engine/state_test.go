package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Idle, Initializing, true},
		{Idle, ExecutingStep, false},
		{Initializing, ExecutingStep, true},
		{ExecutingStep, AwaitingAgentResponse, true},
		{ExecutingStep, ProcessingAgentResponse, true},
		{AwaitingAgentResponse, ProcessingAgentResponse, true},
		{ProcessingAgentResponse, DecidingNextStep, true},
		{ProcessingAgentResponse, Completed, false},
		{DecidingNextStep, ExecutingStep, true},
		{DecidingNextStep, Completed, true},
		{ExecutingStep, Paused, true},
		{AwaitingAgentResponse, Failed, true},
		{Paused, AwaitingAgentResponse, true},
		{Paused, Failed, true},
		{Paused, Completed, false},
		{Idle, Paused, false},
		{Completed, ExecutingStep, false},
		{Failed, Initializing, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestState_Classification(t *testing.T) {
	assert.True(t, Completed.Terminal())
	assert.True(t, Failed.Terminal())
	assert.False(t, Paused.Terminal())

	assert.True(t, DecidingNextStep.Active())
	assert.False(t, Idle.Active())
	assert.False(t, Paused.Active())
	assert.Equal(t, "State(42)", State(42).String())
}

func TestPlanState_String(t *testing.T) {
	assert.Equal(t, "Completed", PlanState{State: Completed}.String())
	assert.Equal(t, "Failed(cancelled)", FailedState("cancelled").String())

	b, err := json.Marshal(struct {
		S PlanState `json:"s"`
	}{FailedState("boom")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"s":"Failed(boom)"}`, string(b))
}

func TestPlanError(t *testing.T) {
	assert.Equal(t, "cancelled", (&PlanError{Kind: KindCancelled}).Error())
	assert.ErrorIs(t, &PlanError{Kind: KindEmptyFrontier}, ErrEmptyFrontier)
	assert.NotErrorIs(t, &PlanError{Kind: KindEmptyFrontier}, ErrCancelled)
}
