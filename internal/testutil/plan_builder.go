package testutil

import (
	"testing"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/plan"
)

// PlanBuilder helps construct plan documents with fluent chaining for tests.
// Example:
//
//	doc := NewPlanBuilder("demo").Tool("A", "echo").Task("B", DepIf("A", "hello")).Build()
type PlanBuilder struct {
	doc plan.Document
}

// NewPlanBuilder creates a new builder for a plan with the given name.
func NewPlanBuilder(name string) *PlanBuilder {
	return &PlanBuilder{doc: plan.Document{PlanName: name}}
}

// Tool appends a DirectToolUse activity calling tool (chainable).
func (b *PlanBuilder) Tool(id, tool string, deps ...plan.DependencyInput) *PlanBuilder {
	return b.add(plan.ActivityInput{
		ActivityType: plan.DirectToolUse,
		ID:           id,
		Description:  "use " + tool,
		Tools:        []plan.ToolConfigInput{{ToolToUse: &tool}},
		Dependencies: deps,
	})
}

// Task appends a DirectTaskExecution activity running one "echo" task (chainable).
func (b *PlanBuilder) Task(id string, deps ...plan.DependencyInput) *PlanBuilder {
	name := "echo"
	return b.add(plan.ActivityInput{
		ActivityType: plan.DirectTaskExecution,
		ID:           id,
		Description:  "run tasks of " + id,
		Tasks:        []core.TaskSpec{{TaskToUse: &name, TaskParameters: map[string]any{"text": id}}},
		Dependencies: deps,
	})
}

// Delegate appends a DelegationAgent activity asking for skill (chainable).
func (b *PlanBuilder) Delegate(id, skill string, deps ...plan.DependencyInput) *PlanBuilder {
	return b.add(plan.ActivityInput{
		ActivityType: plan.DelegationAgent,
		ID:           id,
		Description:  "delegate " + id,
		Agent:        &plan.AgentConfigInput{SkillToUse: &skill},
		Dependencies: deps,
	})
}

// Activity appends a fully specified activity (chainable).
func (b *PlanBuilder) Activity(in plan.ActivityInput) *PlanBuilder {
	return b.add(in)
}

// Build returns the document. The builder must not be reused afterwards.
func (b *PlanBuilder) Build() *plan.Document {
	return &b.doc
}

// Compile builds and compiles the document, failing the test on error.
func (b *PlanBuilder) Compile(t testing.TB) *plan.Graph {
	t.Helper()
	g, err := plan.Compile(b.Build())
	if err != nil {
		t.Fatalf("compile plan: %v", err)
	}
	return g
}

func (b *PlanBuilder) add(in plan.ActivityInput) *PlanBuilder {
	b.doc.Activities = append(b.doc.Activities, in)
	return b
}

// Dep returns an unconditional dependency on source.
func Dep(source string) plan.DependencyInput {
	return plan.DependencyInput{Source: source}
}

// DepIf returns a dependency on source gated by condition.
func DepIf(source, condition string) plan.DependencyInput {
	return plan.DependencyInput{Source: source, Condition: &condition}
}
