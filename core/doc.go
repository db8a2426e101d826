// Package core defines the small contracts shared by the planmesh packages:
//
//   - capability interfaces the coordinator dispatches activities to
//     (AgentInteraction, ToolExecutor, TaskExecutor)
//   - the ExecutionError taxonomy those capabilities report failures with
//   - collaborator services injected at construction time (memory, evaluation)
//   - the opaque Value document used for agent context and tool parameters
//
// Implementations live in sibling packages (a2a, agent, tool, task, memory,
// evaluation) so the engine can be exercised against fakes.
package core
