package engine

import "fmt"

// State enumerates the phases of a plan run.
type State int

const (
	Idle State = iota
	Initializing
	ExecutingStep
	AwaitingAgentResponse
	ProcessingAgentResponse
	DecidingNextStep
	Paused
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:                    "Idle",
	Initializing:            "Initializing",
	ExecutingStep:           "ExecutingStep",
	AwaitingAgentResponse:   "AwaitingAgentResponse",
	ProcessingAgentResponse: "ProcessingAgentResponse",
	DecidingNextStep:        "DecidingNextStep",
	Paused:                  "Paused",
	Completed:               "Completed",
	Failed:                  "Failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether s is Completed or Failed.
func (s State) Terminal() bool { return s == Completed || s == Failed }

// Active reports whether s is a running, unpaused state.
func (s State) Active() bool {
	switch s {
	case Initializing, ExecutingStep, AwaitingAgentResponse, ProcessingAgentResponse, DecidingNextStep:
		return true
	}
	return false
}

// PlanState is a State plus the failure reason for Failed.
type PlanState struct {
	State  State  `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// FailedState returns Failed(reason).
func FailedState(reason string) PlanState { return PlanState{State: Failed, Reason: reason} }

func (p PlanState) String() string {
	if p.State == Failed {
		return fmt.Sprintf("Failed(%s)", p.Reason)
	}
	return p.State.String()
}

// MarshalText renders the state name, including the reason for Failed.
func (p PlanState) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

var transitions = map[State][]State{
	Idle:                    {Initializing, Failed},
	Initializing:            {ExecutingStep, Failed},
	ExecutingStep:           {AwaitingAgentResponse, ProcessingAgentResponse},
	AwaitingAgentResponse:   {ProcessingAgentResponse, ExecutingStep},
	ProcessingAgentResponse: {DecidingNextStep},
	DecidingNextStep:        {ExecutingStep, Completed},
}

// CanTransition reports whether the state machine permits from -> to. Any
// active state may additionally move to Paused or Failed, and Paused may
// return to the state it left (checked by the coordinator) or fail.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if from.Active() && (to == Paused || to == Failed) {
		return true
	}
	if from == Paused {
		return to == Failed || to.Active()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
