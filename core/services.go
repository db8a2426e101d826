package core

import (
	"context"
	"time"
)

// Role identifies the author of a memory entry.
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
)

// MemoryEntry is a single conversation log record.
type MemoryEntry struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           Role      `json:"role"`
	Text           string    `json:"text"`
	AgentName      string    `json:"agent_name,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// MemoryService records conversation turns. agentName may be empty.
type MemoryService interface {
	Log(ctx context.Context, conversationID string, role Role, text, agentName string) error
}

// EvaluationLogData is submitted to an EvaluationService once a plan run
// completes.
type EvaluationLogData struct {
	AgentID           string            `json:"agent_id"`
	RequestID         string            `json:"request_id"`
	ConversationID    string            `json:"conversation_id"`
	StepID            *string           `json:"step_id,omitempty"`
	OriginalUserQuery string            `json:"original_user_query"`
	AgentInput        string            `json:"agent_input"`
	ActivitiesOutcome map[string]string `json:"activities_outcome"`
	AgentOutput       string            `json:"agent_output"`
	ContextSnapshot   *string           `json:"context_snapshot,omitempty"`
	SuccessCriteria   *string           `json:"success_criteria,omitempty"`
}

// JudgeEvaluation is the structured verdict of an evaluation.
type JudgeEvaluation struct {
	Rating              string  `json:"rating"`
	Score               uint8   `json:"score"`
	Feedback            string  `json:"feedback"`
	SuggestedCorrection *string `json:"suggested_correction,omitempty"`
}

// EvaluationService judges the output of a finished plan run.
type EvaluationService interface {
	LogEvaluation(ctx context.Context, data EvaluationLogData) (*JudgeEvaluation, error)
}
