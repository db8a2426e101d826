// Package agent provides local agents that answer plan delegations with a
// language model.
//
// ModelInteraction implements core.AgentInteraction: for every delegated
// task it resolves an Instruction (a text/template or a dynamic Provider),
// renders the user prompt from the task description and skill hint, and
// collects the model's reply. It also exposes ID and HasSkill so it can be
// registered in an a2a.Directory next to remote agents.
package agent
