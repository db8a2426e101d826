package plan

// Resolver computes execution frontiers over a Graph. It holds no run state
// and is safe for concurrent use.
type Resolver struct {
	graph *Graph
}

// NewResolver returns a Resolver for g.
func NewResolver(g *Graph) *Resolver {
	return &Resolver{graph: g}
}

// Frontier returns the ids of nodes that have not executed, are not in
// flight, and whose every inbound edge has an executed source satisfying the
// edge condition. Ids are returned in topological order.
func (r *Resolver) Frontier(outcomes map[string]string, inFlight map[string]bool) []string {
	var frontier []string
	for _, id := range r.graph.order {
		if _, done := outcomes[id]; done || inFlight[id] {
			continue
		}
		if r.eligible(id, outcomes) {
			frontier = append(frontier, id)
		}
	}
	return frontier
}

func (r *Resolver) eligible(id string, outcomes map[string]string) bool {
	for _, e := range r.graph.inbound[id] {
		out, ok := outcomes[e.Source]
		if !ok || !Evaluate(out, e.Condition) {
			return false
		}
	}
	return true
}

// Unreached returns, in topological order, the nodes that have not executed.
// Once the frontier is empty and nothing is in flight these are permanently
// excluded.
func (r *Resolver) Unreached(outcomes map[string]string) []string {
	var ids []string
	for _, id := range r.graph.order {
		if _, done := outcomes[id]; !done {
			ids = append(ids, id)
		}
	}
	return ids
}
