package agent

import (
	"context"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
)

// TaskInput is the data an instruction is rendered from.
type TaskInput struct {
	Agent       string
	Description string
	Skill       string
	Activity    core.ActivityInfo
}

func (in TaskInput) vars() map[string]any {
	return map[string]any{
		"agent":       in.Agent,
		"description": in.Description,
		"skill":       in.Skill,
		"activity":    in.Activity.ActivityID,
		"plan":        in.Activity.PlanName,
		"context":     in.Activity.AgentContext,
	}
}

// Provider supplies dynamic instruction text at runtime.
type Provider interface {
	Instruction(ctx context.Context, in TaskInput) (string, error)
}

// Func is a functional adapter to allow ordinary functions to be used as Providers.
type Func func(ctx context.Context, in TaskInput) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(ctx context.Context, in TaskInput) (string, error) { return f(ctx, in) }

// Instruction represents either a static template or a dynamic provider.
//
// Static text is a text/template rendered with the fields agent,
// description, skill, activity, plan and context.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static template.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(ctx context.Context, in TaskInput) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// IsStatic returns true if the instruction is backed by a static template.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(ctx context.Context, in TaskInput) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(ctx, in)
	}
	return util.RenderTemplate(i.text, in.vars())
}
