package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/model"
)

// DefaultInstruction is used when no instruction is configured.
const DefaultInstruction = `You are {{.agent}}, an agent in a multi-step plan.
{{if .skill}}Apply your "{{.skill}}" skill to the task.
{{end}}Answer with the result only.`

// ModelInteractionOptions configures a ModelInteraction.
type ModelInteractionOptions struct {
	Instruction Instruction

	// Prompt is the template for the user message. Defaults to the task
	// description.
	Prompt string

	// Skills advertised for routing.
	Skills []string

	EnableStreaming bool

	// Timeout bounds a single task. Zero means no limit beyond the caller's.
	Timeout time.Duration

	// Limiter caps model calls. Optional.
	Limiter *CallLimiter

	Logger logging.Logger
}

// ModelInteraction is a local agent answering delegations with a language
// model.
type ModelInteraction struct {
	id          string
	llm         model.Model
	instruction Instruction
	prompt      string
	skills      []string
	streaming   bool
	timeout     time.Duration
	limiter     *CallLimiter
	logger      logging.Logger
}

var _ core.AgentInteraction = (*ModelInteraction)(nil)

// NewModelInteraction creates an agent named id backed by llm.
func NewModelInteraction(id string, llm model.Model, optFns ...func(o *ModelInteractionOptions)) *ModelInteraction {
	opts := ModelInteractionOptions{
		Prompt: "{{.description}}",
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	instruction := opts.Instruction
	if instruction.IsStatic() && instruction.text == "" {
		instruction = NewInstructionFromText(DefaultInstruction)
	}

	return &ModelInteraction{
		id:          id,
		llm:         llm,
		instruction: instruction,
		prompt:      opts.Prompt,
		skills:      opts.Skills,
		streaming:   opts.EnableStreaming,
		timeout:     opts.Timeout,
		limiter:     opts.Limiter,
		logger:      opts.Logger,
	}
}

// ID returns the agent id.
func (a *ModelInteraction) ID() string { return a.id }

// Skills returns the advertised skills.
func (a *ModelInteraction) Skills() []string { return append([]string(nil), a.skills...) }

// HasSkill reports whether an advertised skill contains skill.
func (a *ModelInteraction) HasSkill(skill string) bool {
	for _, s := range a.skills {
		if strings.Contains(s, skill) {
			return true
		}
	}
	return false
}

// ExecuteTask implements core.AgentInteraction.
func (a *ModelInteraction) ExecuteTask(ctx context.Context, description, skill string) (string, error) {
	in := TaskInput{Agent: a.id, Description: description, Skill: skill}
	if info, ok := core.ActivityFromContext(ctx); ok {
		in.Activity = info
	}

	instructions, err := a.instruction.Resolve(ctx, in)
	if err != nil {
		return "", core.NewExecutionError(core.KindRemoteAgentError,
			fmt.Sprintf("agent %s: instruction", a.id), err)
	}

	prompt, err := util.RenderTemplate(a.prompt, in.vars())
	if err != nil {
		return "", core.NewExecutionError(core.KindRemoteAgentError,
			fmt.Sprintf("agent %s: prompt", a.id), err)
	}

	if a.limiter != nil {
		if err := a.limiter.Acquire(); err != nil {
			return "", core.NewExecutionError(core.KindRemoteAgentError, fmt.Sprintf("agent %s", a.id), err)
		}
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := model.Collect(ctx, a.llm, model.Request{
		Instructions: instructions,
		Messages:     []model.Message{model.UserMessage(prompt)},
		Stream:       a.streaming,
	})

	tokens := 0
	if res != nil && res.Usage != nil {
		tokens = res.Usage.TotalTokens
	}
	if l, ok := a.logger.(*logging.PlanMeshLogger); ok {
		l.LogLLMCall(a.llm.Info().Name, tokens, time.Since(start), err == nil, err)
	} else {
		a.logger.Debug("agent.model.call", "agent", a.id, "model", a.llm.Info().Name, "tokens", tokens, "error", err)
	}

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", core.NewExecutionError(core.KindTimeout, fmt.Sprintf("agent %s", a.id), err)
		}
		return "", core.NewExecutionError(core.KindRemoteAgentError, fmt.Sprintf("agent %s", a.id), err)
	}

	return strings.TrimSpace(res.Text), nil
}
