package engine

import (
	"fmt"
	"strings"

	"github.com/hupe1980/planmesh/plan"
)

// AggregationPolicy selects how the outputs of several terminal activities
// are combined into the final outcome.
type AggregationPolicy int

const (
	// AggregateConcatenate joins terminal outputs in topological order.
	AggregateConcatenate AggregationPolicy = iota
	// AggregateLastTopological keeps the output of the terminal activity
	// that comes last in topological order.
	AggregateLastTopological
)

func (p AggregationPolicy) String() string {
	switch p {
	case AggregateConcatenate:
		return "concatenate"
	case AggregateLastTopological:
		return "last"
	default:
		return fmt.Sprintf("AggregationPolicy(%d)", int(p))
	}
}

// ParseAggregationPolicy maps "concatenate" or "last" to a policy.
func ParseAggregationPolicy(s string) (AggregationPolicy, error) {
	switch strings.ToLower(s) {
	case "", "concatenate", "concat":
		return AggregateConcatenate, nil
	case "last", "last_topological":
		return AggregateLastTopological, nil
	default:
		return AggregateConcatenate, fmt.Errorf("unknown aggregation policy %q", s)
	}
}

// Aggregator derives the final outcome of a completed run.
type Aggregator struct {
	Policy    AggregationPolicy
	Separator string
}

// Terminals returns, in topological order, the executed activities that
// contribute to the final outcome: executed nodes without outgoing edges. If
// none of those executed because their branches were excluded, it falls back
// to executed nodes none of whose successors executed.
func (a Aggregator) Terminals(g *plan.Graph, outcomes map[string]string) []string {
	var terminals []string
	for _, id := range g.Sinks() {
		if _, ok := outcomes[id]; ok {
			terminals = append(terminals, id)
		}
	}
	if len(terminals) > 0 {
		return terminals
	}

	for _, id := range g.Order() {
		if _, ok := outcomes[id]; !ok {
			continue
		}
		leaf := true
		for _, e := range g.Outbound(id) {
			if _, ok := outcomes[e.Target]; ok {
				leaf = false
				break
			}
		}
		if leaf {
			terminals = append(terminals, id)
		}
	}
	return terminals
}

// Aggregate returns the final outcome for outcomes recorded on g.
func (a Aggregator) Aggregate(g *plan.Graph, outcomes map[string]string) string {
	terminals := a.Terminals(g, outcomes)
	switch len(terminals) {
	case 0:
		return ""
	case 1:
		return outcomes[terminals[0]]
	}

	if a.Policy == AggregateLastTopological {
		return outcomes[terminals[len(terminals)-1]]
	}

	parts := make([]string, len(terminals))
	for i, id := range terminals {
		parts[i] = outcomes[id]
	}
	return strings.Join(parts, a.Separator)
}
