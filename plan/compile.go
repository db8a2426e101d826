package plan

import (
	"fmt"
	"slices"
)

// Compile validates doc and builds its Graph. Validation fails closed, in
// this order: missing required fields, duplicate activity ids, dependencies
// on undeclared activities, dependency cycles.
func Compile(doc *Document) (*Graph, error) {
	if doc == nil || doc.PlanName == "" {
		return nil, &CompileError{Kind: KindMissingRequiredField, Detail: "plan_name"}
	}

	nodes, declared, err := createNodes(doc)
	if err != nil {
		return nil, err
	}

	edges, err := linkNodes(doc, nodes)
	if err != nil {
		return nil, err
	}

	g := newGraph(doc.PlanName, nodes, edges)

	order, err := g.topologicalOrder(declared)
	if err != nil {
		return nil, err
	}
	g.setOrder(order)

	return g, nil
}

// createNodes flattens every ActivityInput into an Activity node and returns
// the ids in declaration order.
func createNodes(doc *Document) (map[string]*Node, []string, error) {
	nodes := make(map[string]*Node, len(doc.Activities))
	declared := make([]string, 0, len(doc.Activities))

	for i, in := range doc.Activities {
		if in.ID == "" {
			return nil, nil, &CompileError{Kind: KindMissingRequiredField, Detail: fmt.Sprintf("activities[%d].id", i)}
		}
		if !in.ActivityType.Valid() {
			return nil, nil, &CompileError{Kind: KindMissingRequiredField, NodeID: in.ID, Detail: "activity_type"}
		}
		for j, dep := range in.Dependencies {
			if dep.Source == "" {
				return nil, nil, &CompileError{
					Kind:   KindMissingRequiredField,
					NodeID: in.ID,
					Detail: fmt.Sprintf("dependencies[%d].source", j),
				}
			}
		}
		if _, dup := nodes[in.ID]; dup {
			return nil, nil, &CompileError{Kind: KindDuplicateNodeID, NodeID: in.ID}
		}

		nodes[in.ID] = &Node{ID: in.ID, Kind: NodeActivity, Activity: flatten(in)}
		declared = append(declared, in.ID)
	}

	return nodes, declared, nil
}

func flatten(in ActivityInput) *Activity {
	act := &Activity{
		ID:              in.ID,
		Description:     in.Description,
		ActivityType:    in.ActivityType,
		Type:            in.Type,
		Tasks:           slices.Clone(in.Tasks),
		ExpectedOutcome: in.ExpectedOutcome,
	}

	if in.Agent != nil {
		act.SkillToUse = in.Agent.SkillToUse
		act.AssignedAgentIDPreference = in.Agent.AssignedAgentIDPreference
		act.AgentContext = in.Agent.AgentContext
	}

	if len(in.Tools) > 0 {
		act.ToolToUse = in.Tools[0].ToolToUse
		act.ToolParameters = in.Tools[0].ToolParameters
	}

	act.Dependencies = make([]Dependency, len(in.Dependencies))
	for i, dep := range in.Dependencies {
		act.Dependencies[i] = Dependency(dep)
	}

	return act
}

// linkNodes emits one Edge per declared dependency.
func linkNodes(doc *Document, nodes map[string]*Node) ([]Edge, error) {
	var edges []Edge
	for _, in := range doc.Activities {
		for _, dep := range in.Dependencies {
			if _, ok := nodes[dep.Source]; !ok {
				return nil, &CompileError{
					Kind:   KindUnknownDependency,
					NodeID: in.ID,
					Detail: fmt.Sprintf("source %q is not a declared activity", dep.Source),
				}
			}
			edges = append(edges, Edge{Source: dep.Source, Target: in.ID, Condition: dep.Condition})
		}
	}
	return edges, nil
}

// topologicalOrder runs Kahn's algorithm, breaking ties by declaration order.
// Nodes left over once no zero in-degree node remains sit on a cycle or
// downstream of one.
func (g *Graph) topologicalOrder(declared []string) ([]string, error) {
	rank := make(map[string]int, len(declared))
	inDegree := make(map[string]int, len(declared))
	for i, id := range declared {
		rank[id] = i
		inDegree[id] = len(g.inbound[id])
	}

	var ready []int
	for i, id := range declared {
		if inDegree[id] == 0 {
			ready = append(ready, i)
		}
	}

	order := make([]string, 0, len(declared))
	for len(ready) > 0 {
		id := declared[ready[0]]
		ready = ready[1:]
		order = append(order, id)

		for _, e := range g.outbound[id] {
			inDegree[e.Target]--
			if inDegree[e.Target] == 0 {
				r := rank[e.Target]
				pos, _ := slices.BinarySearch(ready, r)
				ready = slices.Insert(ready, pos, r)
			}
		}
	}

	if len(order) < len(declared) {
		var stuck []string
		for _, id := range declared {
			if inDegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, &CompileError{
			Kind:   KindCycleDetected,
			Detail: fmt.Sprintf("involving %v", stuck),
		}
	}

	return order, nil
}
