// Package engine executes compiled plans.
//
// A Coordinator drives one plan.Graph through the plan state machine:
//
//	Idle → Initializing → ExecutingStep → [AwaitingAgentResponse] →
//	ProcessingAgentResponse → DecidingNextStep → ExecutingStep | Completed
//
// Any active state may move to Paused (and back on resume) or to
// Failed(reason). Completed and Failed are terminal.
//
// # Scheduling
//
// The coordinator repeatedly asks a plan.Resolver for the frontier, the
// activities whose dependencies executed and whose edge conditions hold, and
// hands them to a bounded worker pool (Config.Workers). Each worker runs one
// activity end-to-end on the matching capability:
//
//   - DelegationAgent     → core.AgentInteraction
//   - DirectToolUse       → core.ToolExecutor
//   - DirectTaskExecution → core.TaskExecutor
//
// Results flow back through a single channel drained by the coordinator, which
// is the only writer of the PlanContext. Independent activities therefore run
// concurrently without racing on the outcome map. Ties between ready
// activities are broken by the compiler's topological order.
//
// # Failure
//
// The coordinator never retries. The first activity failure cancels the run
// and ends it in Failed with a reason naming the activity; outcomes recorded
// before are preserved. Cancellation, through Cancel or the caller's context,
// ends the run in Failed("cancelled"). Activities excluded by conditions that
// never hold are not a failure: the run completes without them.
//
// # Final outcome
//
// The Aggregator combines the outputs of executed terminal activities. By
// default they are concatenated in topological order; AggregateLastTopological
// selects the last one instead.
//
// # Engine
//
// Engine wraps coordinators for callers running several plans: it compiles
// documents, starts runs in the background, tracks them by id for
// Pause/Resume/Cancel/Status and hands finished runs to the archive, memory,
// evaluation and event services:
//
//	eng := engine.New(func(o *engine.Options) {
//	    o.Capabilities.Tools = tools
//	})
//
//	res, err := eng.Execute(ctx, doc, "summarise the quarter")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.Output)
package engine
