package plan

import (
	"errors"
	"fmt"
)

// CompileErrorKind classifies a compilation failure.
type CompileErrorKind string

const (
	KindCycleDetected        CompileErrorKind = "CycleDetected"
	KindUnknownDependency    CompileErrorKind = "UnknownDependency"
	KindDuplicateNodeID      CompileErrorKind = "DuplicateNodeId"
	KindMissingRequiredField CompileErrorKind = "MissingRequiredField"
)

// Sentinels matched by errors.Is against a *CompileError of that kind.
var (
	ErrCycleDetected        = errors.New("cycle detected")
	ErrUnknownDependency    = errors.New("unknown dependency")
	ErrDuplicateNodeID      = errors.New("duplicate node id")
	ErrMissingRequiredField = errors.New("missing required field")
)

// CompileError reports why a plan document could not be compiled. No partial
// graph is produced alongside it.
type CompileError struct {
	Kind   CompileErrorKind
	NodeID string
	Detail string
}

func (e *CompileError) Error() string {
	msg := e.sentinel().Error()
	if e.NodeID != "" {
		msg = fmt.Sprintf("%s at activity %q", msg, e.NodeID)
	}
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	return "compile plan: " + msg
}

// Is matches the sentinel of e.Kind.
func (e *CompileError) Is(target error) bool { return target == e.sentinel() }

func (e *CompileError) sentinel() error {
	switch e.Kind {
	case KindCycleDetected:
		return ErrCycleDetected
	case KindUnknownDependency:
		return ErrUnknownDependency
	case KindDuplicateNodeID:
		return ErrDuplicateNodeID
	default:
		return ErrMissingRequiredField
	}
}
