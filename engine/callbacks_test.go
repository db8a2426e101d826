package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallbackManager_Order(t *testing.T) {
	cm := NewCallbackManager()
	var calls []string

	for _, name := range []string{"first", "second"} {
		name := name
		cm.RegisterCallback(NewFunctionCallback(CallbackOnStateChange, func(_ context.Context, cc *CallbackContext) error {
			calls = append(calls, name+":"+string(cc.CallbackType))
			return nil
		}))
	}

	require.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackOnStateChange, &CallbackContext{}))
	assert.Equal(t, []string{"first:on_state_change", "second:on_state_change"}, calls)

	// other types are not triggered
	require.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackOnError, &CallbackContext{}))
	assert.Len(t, calls, 2)
}

func TestCallbackManager_StopsOnError(t *testing.T) {
	cm := NewCallbackManager()
	boom := errors.New("boom")
	called := false

	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeActivity, func(context.Context, *CallbackContext) error { return boom }))
	cm.RegisterCallback(NewFunctionCallback(CallbackBeforeActivity, func(context.Context, *CallbackContext) error {
		called = true
		return nil
	}))

	err := cm.ExecuteCallbacks(context.Background(), CallbackBeforeActivity, &CallbackContext{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, called)
}

func TestCallbackManager_Nil(t *testing.T) {
	var cm *CallbackManager
	assert.NoError(t, cm.ExecuteCallbacks(context.Background(), CallbackOnError, &CallbackContext{}))
}

func TestLoggingCallback(t *testing.T) {
	var messages []string
	cb := NewLoggingCallback(CallbackOnError, func(m string) { messages = append(messages, m) })
	assert.Equal(t, CallbackOnError, cb.Type())

	err := cb.Execute(context.Background(), &CallbackContext{
		PlanName:   "demo",
		RunID:      "r1",
		ActivityID: "A",
		State:      FailedState("x"),
		Err:        errors.New("boom"),
	})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "plan=demo")
	assert.Contains(t, messages[0], "activity=A")
	assert.Contains(t, messages[0], "error=boom")
}
