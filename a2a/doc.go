// Package a2a delegates activities to remote agents speaking the A2A
// protocol.
//
// Client talks to a single agent through the a2a-go SDK: it discovers the
// agent's skills from its agent card and sends each task as a message/send
// call, retrying transient failures with exponential backoff. Directory
// routes a delegation to one of several agents by id preference or skill and
// implements core.AgentInteraction for the engine. NewAgentExecutor goes the
// other way and serves any AgentInteraction as an A2A agent.
package a2a
