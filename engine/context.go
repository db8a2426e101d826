package engine

import (
	"maps"
	"time"

	"github.com/hupe1980/planmesh/plan"
)

// PlanContext is the mutable run-time state of one plan execution. Only the
// owning Coordinator writes to it.
type PlanContext struct {
	PlanState         PlanState
	Graph             *plan.Graph
	CurrentStepID     *string
	ActivitiesOutcome map[string]string
	FinalOutcome      string
	UserQuery         string
	History           []Transition
}

// Transition records one state change.
type Transition struct {
	From   PlanState `json:"from"`
	To     PlanState `json:"to"`
	StepID string    `json:"step_id,omitempty"`
	At     time.Time `json:"at"`
}

// Snapshot is a read-only copy of a PlanContext.
type Snapshot struct {
	RunID             string            `json:"run_id"`
	RequestID         string            `json:"request_id"`
	ConversationID    string            `json:"conversation_id"`
	PlanName          string            `json:"plan_name"`
	PlanState         PlanState         `json:"plan_state"`
	CurrentStepID     *string           `json:"current_step_id,omitempty"`
	ActivitiesOutcome map[string]string `json:"activities_outcome"`
	FinalOutcome      string            `json:"final_outcome"`
	UserQuery         string            `json:"user_query"`
	History           []Transition      `json:"history"`
	StartedAt         time.Time         `json:"started_at"`
	FinishedAt        time.Time         `json:"finished_at"`
}

// States returns the sequence of states the run went through, starting with
// the initial one.
func (s Snapshot) States() []State {
	if len(s.History) == 0 {
		return []State{s.PlanState.State}
	}
	states := make([]State, 0, len(s.History)+1)
	states = append(states, s.History[0].From.State)
	for _, t := range s.History {
		states = append(states, t.To.State)
	}
	return states
}

func (p *PlanContext) snapshot() Snapshot {
	snap := Snapshot{
		PlanState:         p.PlanState,
		ActivitiesOutcome: maps.Clone(p.ActivitiesOutcome),
		FinalOutcome:      p.FinalOutcome,
		UserQuery:         p.UserQuery,
		History:           append([]Transition(nil), p.History...),
	}
	if p.Graph != nil {
		snap.PlanName = p.Graph.PlanName
	}
	if p.CurrentStepID != nil {
		id := *p.CurrentStepID
		snap.CurrentStepID = &id
	}
	if snap.ActivitiesOutcome == nil {
		snap.ActivitiesOutcome = map[string]string{}
	}
	return snap
}
