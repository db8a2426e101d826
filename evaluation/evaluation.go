// Package evaluation judges finished plan runs with a language model.
//
// Judge implements core.EvaluationService. It sends the run's log data to
// the model, asks for a JSON verdict and keeps every evaluated record in
// memory for later inspection.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
)

// ErrInvalidVerdict is returned when the model's reply is not a usable verdict.
var ErrInvalidVerdict = errors.New("invalid judge verdict")

// DefaultInstruction asks the model for a JSON verdict.
const DefaultInstruction = `You are an impartial judge evaluating the output of an AI agent.
You receive the user's query, the outcome of every activity the agent ran and
the agent's final output. If success criteria are given, judge against them.

Respond with a single JSON object and nothing else:
{"rating": "<Excellent|Good|Fair|Poor>", "score": <0-10>, "feedback": "<short explanation>", "suggested_correction": "<optional corrected output or null>"}`

// MaxScore is the highest score a verdict may carry.
const MaxScore = 10

// Record is an evaluated run.
type Record struct {
	core.EvaluationLogData
	Evaluation core.JudgeEvaluation `json:"evaluation"`
	Timestamp  time.Time            `json:"timestamp"`
}

// JudgeOptions configures a Judge.
type JudgeOptions struct {
	Instruction string
	Logger      logging.Logger
}

// Judge is an LLM-backed EvaluationService.
type Judge struct {
	llm         model.Model
	instruction string
	logger      logging.Logger
	now         func() time.Time

	mu      sync.RWMutex
	records []Record
}

var _ core.EvaluationService = (*Judge)(nil)

// NewJudge creates a judge backed by llm.
func NewJudge(llm model.Model, optFns ...func(o *JudgeOptions)) *Judge {
	opts := JudgeOptions{
		Instruction: DefaultInstruction,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Judge{
		llm:         llm,
		instruction: opts.Instruction,
		logger:      opts.Logger,
		now:         time.Now,
	}
}

// LogEvaluation implements core.EvaluationService.
func (j *Judge) LogEvaluation(ctx context.Context, data core.EvaluationLogData) (*core.JudgeEvaluation, error) {
	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal evaluation data: %w", err)
	}

	res, err := model.Collect(ctx, j.llm, model.Request{
		Instructions: j.instruction,
		Messages:     []model.Message{model.UserMessage(string(payload))},
	})
	if err != nil {
		return nil, fmt.Errorf("judge model: %w", err)
	}

	verdict, err := parseVerdict(res.Text)
	if err != nil {
		j.logger.Warn("evaluation.verdict.invalid", "request_id", data.RequestID, "error", err)
		return nil, err
	}

	j.mu.Lock()
	j.records = append(j.records, Record{EvaluationLogData: data, Evaluation: *verdict, Timestamp: j.now()})
	j.mu.Unlock()

	j.logger.Info("evaluation.verdict",
		"agent", data.AgentID, "request_id", data.RequestID, "rating", verdict.Rating, "score", verdict.Score)

	return verdict, nil
}

// Records returns all evaluated runs in evaluation order.
func (j *Judge) Records() []Record {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return append([]Record(nil), j.records...)
}

func parseVerdict(text string) (*core.JudgeEvaluation, error) {
	raw := util.ExtractJSON(text)
	if raw == "" {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrInvalidVerdict)
	}

	var verdict core.JudgeEvaluation
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVerdict, err)
	}
	if verdict.Rating == "" {
		return nil, fmt.Errorf("%w: missing rating", ErrInvalidVerdict)
	}
	if verdict.Score > MaxScore {
		return nil, fmt.Errorf("%w: score %d out of range", ErrInvalidVerdict, verdict.Score)
	}
	return &verdict, nil
}
