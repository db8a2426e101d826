package engine

// ExecutionResult is what a finished run yields to its caller. For a failed
// run Output holds the failure reason.
type ExecutionResult struct {
	RequestID      string `json:"request_id"`
	ConversationID string `json:"conversation_id"`
	Success        bool   `json:"success"`
	Output         string `json:"output"`
}
