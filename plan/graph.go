package plan

import (
	"errors"
	"slices"

	"github.com/hupe1980/planmesh/core"
)

// ErrOutputAlreadySet is returned when an activity output is written twice.
var ErrOutputAlreadySet = errors.New("activity output already set")

// Edge is a directed precedence relation, optionally gated by a condition on
// the source's outcome.
type Edge struct {
	Source    string  `json:"source"`
	Target    string  `json:"target"`
	Condition *string `json:"condition,omitempty"`
}

// Dependency is the declared form of an inbound edge.
type Dependency struct {
	Source    string  `json:"source"`
	Condition *string `json:"condition,omitempty"`
}

// NodeKind tags the payload of a Node.
type NodeKind int

// NodeActivity is the only node kind.
const NodeActivity NodeKind = iota

// Node is a vertex of the graph.
type Node struct {
	ID       string
	Kind     NodeKind
	Activity *Activity
}

// Activity is the flattened, executable form of an ActivityInput.
type Activity struct {
	ID                        string
	Description               string
	ActivityType              ActivityType
	Type                      string
	SkillToUse                *string
	AssignedAgentIDPreference *string
	AgentContext              core.Value
	ToolToUse                 *string
	ToolParameters            core.Value
	Tasks                     []core.TaskSpec
	Dependencies              []Dependency
	ExpectedOutcome           string

	output *string
}

// Output returns the recorded activity output.
func (a *Activity) Output() (string, bool) {
	if a.output == nil {
		return "", false
	}
	return *a.output, true
}

// SetOutput records the activity output. It fails if an output was already
// recorded.
func (a *Activity) SetOutput(out string) error {
	if a.output != nil {
		return ErrOutputAlreadySet
	}
	a.output = &out
	return nil
}

// Skill returns SkillToUse or the empty string.
func (a *Activity) Skill() string { return deref(a.SkillToUse) }

// Tool returns ToolToUse or the empty string.
func (a *Activity) Tool() string { return deref(a.ToolToUse) }

// AgentPreference returns AssignedAgentIDPreference or the empty string.
func (a *Activity) AgentPreference() string { return deref(a.AssignedAgentIDPreference) }

func (a *Activity) clone() *Activity {
	cp := *a
	cp.Tasks = slices.Clone(a.Tasks)
	cp.Dependencies = slices.Clone(a.Dependencies)
	cp.output = nil
	return &cp
}

// Graph is the compiled dependency structure of a plan. Its structure is
// immutable; only activity outputs are populated during a run.
type Graph struct {
	PlanName string
	Nodes    map[string]*Node
	Edges    []Edge

	order    []string
	index    map[string]int
	inbound  map[string][]Edge
	outbound map[string][]Edge
}

func newGraph(planName string, nodes map[string]*Node, edges []Edge) *Graph {
	g := &Graph{
		PlanName: planName,
		Nodes:    nodes,
		Edges:    edges,
		index:    make(map[string]int, len(nodes)),
		inbound:  make(map[string][]Edge, len(nodes)),
		outbound: make(map[string][]Edge, len(nodes)),
	}
	for _, e := range edges {
		g.inbound[e.Target] = append(g.inbound[e.Target], e)
		g.outbound[e.Source] = append(g.outbound[e.Source], e)
	}
	return g
}

func (g *Graph) setOrder(order []string) {
	g.order = order
	for i, id := range order {
		g.index[id] = i
	}
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.Nodes) }

// Order returns the node ids in topological order.
func (g *Graph) Order() []string { return slices.Clone(g.order) }

// Position returns the topological index of id, or -1.
func (g *Graph) Position(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Activity returns the activity of node id, or nil.
func (g *Graph) Activity(id string) *Activity {
	n, ok := g.Nodes[id]
	if !ok {
		return nil
	}
	return n.Activity
}

// Inbound returns the edges targeting id.
func (g *Graph) Inbound(id string) []Edge { return g.inbound[id] }

// Outbound returns the edges leaving id.
func (g *Graph) Outbound(id string) []Edge { return g.outbound[id] }

// Sinks returns the nodes without outgoing edges in topological order.
func (g *Graph) Sinks() []string {
	var sinks []string
	for _, id := range g.order {
		if len(g.outbound[id]) == 0 {
			sinks = append(sinks, id)
		}
	}
	return sinks
}

// Clone returns a structurally identical graph with no recorded outputs.
func (g *Graph) Clone() *Graph {
	nodes := make(map[string]*Node, len(g.Nodes))
	for id, n := range g.Nodes {
		nodes[id] = &Node{ID: n.ID, Kind: n.Kind, Activity: n.Activity.clone()}
	}
	cp := newGraph(g.PlanName, nodes, slices.Clone(g.Edges))
	cp.setOrder(slices.Clone(g.order))
	return cp
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
