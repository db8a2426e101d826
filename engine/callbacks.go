package engine

import (
	"context"
	"fmt"
	"sync"
)

// CallbackType defines the specific lifecycle points where callbacks can be executed.
//
// Callbacks provide a flexible mechanism for hooking into plan execution
// without modifying the coordinator. Available callback types:
//   - BeforeActivity/AfterActivity: around the dispatch of a single activity
//   - OnError: when an activity fails
//   - OnStateChange: after every plan state transition
//
// BeforeActivity and AfterActivity run on the worker executing the activity;
// an error returned from them fails that activity. OnError and OnStateChange
// run on the coordinator and their errors are only logged.
type CallbackType string

const (
	// CallbackBeforeActivity is triggered before an activity is dispatched.
	CallbackBeforeActivity CallbackType = "before_activity"

	// CallbackAfterActivity is triggered after an activity returned successfully.
	CallbackAfterActivity CallbackType = "after_activity"

	// CallbackOnError is triggered when an activity fails.
	CallbackOnError CallbackType = "on_error"

	// CallbackOnStateChange is triggered after every plan state transition.
	CallbackOnStateChange CallbackType = "on_state_change"
)

// CallbackContext carries the information a callback may inspect.
type CallbackContext struct {
	RunID        string
	PlanName     string
	ActivityID   string
	ActivityType string
	State        PlanState
	Output       string
	Err          error
	CallbackType CallbackType
	Metadata     map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast since they run synchronously, and safe for
// concurrent use since activity callbacks run on several workers at once.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackBeforeActivity,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("dispatching %s", cc.ActivityID)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager is a registry of callbacks keyed by type. Callbacks of a
// type run in registration order and the first error stops the chain. It is
// safe for concurrent registration and execution.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

// NewCallbackManager creates an empty callback manager.
func NewCallbackManager() *CallbackManager {
	return &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// ExecuteCallbacks executes all registered callbacks for the specified type.
// A nil manager executes nothing.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	if cm == nil {
		return nil
	}

	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// LoggingCallback forwards lifecycle events to a message sink.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnStateChange, func(message string) {
//	    log.Printf("[ENGINE] %s", message)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}
	message := fmt.Sprintf("[%s] plan=%s run=%s state=%s activity=%s",
		c.callbackType, callbackCtx.PlanName, callbackCtx.RunID, callbackCtx.State, callbackCtx.ActivityID)
	if callbackCtx.Err != nil {
		message += " error=" + callbackCtx.Err.Error()
	}
	c.logger(message)
	return nil
}
