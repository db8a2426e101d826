package core

import (
	"errors"
	"fmt"
)

// ExecutionErrorKind classifies a single activity failure.
type ExecutionErrorKind string

const (
	KindRemoteAgentUnavailable ExecutionErrorKind = "RemoteAgentUnavailable"
	KindRemoteAgentError       ExecutionErrorKind = "RemoteAgentError"
	KindToolExecutionError     ExecutionErrorKind = "ToolExecutionError"
	KindTaskExecutionError     ExecutionErrorKind = "TaskExecutionError"
	KindTimeout                ExecutionErrorKind = "Timeout"
)

// Sentinels matched by errors.Is against any *ExecutionError of that kind.
var (
	ErrRemoteAgentUnavailable = errors.New("remote agent unavailable")
	ErrRemoteAgentError       = errors.New("remote agent error")
	ErrToolExecution          = errors.New("tool execution error")
	ErrTaskExecution          = errors.New("task execution error")
	ErrTimeout                = errors.New("timeout")
)

// ExecutionError is raised by a capability for a single activity.
type ExecutionError struct {
	Kind    ExecutionErrorKind
	Message string
	Err     error
}

// NewExecutionError builds an ExecutionError. cause may be nil.
func NewExecutionError(kind ExecutionErrorKind, message string, cause error) *ExecutionError {
	return &ExecutionError{Kind: kind, Message: message, Err: cause}
}

func (e *ExecutionError) Error() string {
	base := e.Kind.sentinel().Error()
	if e.Message == "" {
		return base
	}
	return fmt.Sprintf("%s: %s", base, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *ExecutionError) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e.Kind.
func (e *ExecutionError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

func (k ExecutionErrorKind) sentinel() error {
	switch k {
	case KindRemoteAgentUnavailable:
		return ErrRemoteAgentUnavailable
	case KindRemoteAgentError:
		return ErrRemoteAgentError
	case KindToolExecutionError:
		return ErrToolExecution
	case KindTaskExecutionError:
		return ErrTaskExecution
	case KindTimeout:
		return ErrTimeout
	default:
		return errors.New(string(k))
	}
}

// AsExecutionError extracts an *ExecutionError from err's chain.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee, true
	}
	return nil, false
}
