package engine

import (
	"errors"
	"fmt"
)

// PlanErrorKind classifies a plan level failure.
type PlanErrorKind string

const (
	KindEmptyFrontier       PlanErrorKind = "EmptyFrontier"
	KindCancelled           PlanErrorKind = "Cancelled"
	KindNodeExecutionFailed PlanErrorKind = "NodeExecutionFailed"
)

// Sentinels matched by errors.Is against a *PlanError of that kind.
var (
	ErrEmptyFrontier       = errors.New("empty frontier")
	ErrCancelled           = errors.New("cancelled")
	ErrNodeExecutionFailed = errors.New("node execution failed")
)

// Errors returned for misuse of a coordinator or engine.
var (
	ErrAlreadyStarted = errors.New("plan run already started")
	ErrNotActive      = errors.New("plan run is not active")
	ErrNotPaused      = errors.New("plan run is not paused")
	ErrRunNotFound    = errors.New("plan run not found")
	ErrNilGraph       = errors.New("plan graph is nil")
	ErrTooManyRuns    = errors.New("too many concurrent plan runs")
)

// PlanError reports why a run ended in Failed.
type PlanError struct {
	Kind   PlanErrorKind
	NodeID string
	Err    error
}

func (e *PlanError) Error() string {
	switch e.Kind {
	case KindCancelled:
		return "cancelled"
	case KindEmptyFrontier:
		return "empty frontier: plan has no activity without dependencies"
	default:
		return fmt.Sprintf("activity %q failed: %v", e.NodeID, e.Err)
	}
}

// Unwrap exposes the underlying ExecutionError of a NodeExecutionFailed.
func (e *PlanError) Unwrap() error { return e.Err }

// Is matches the sentinel of e.Kind.
func (e *PlanError) Is(target error) bool {
	switch e.Kind {
	case KindCancelled:
		return target == ErrCancelled
	case KindEmptyFrontier:
		return target == ErrEmptyFrontier
	default:
		return target == ErrNodeExecutionFailed
	}
}
