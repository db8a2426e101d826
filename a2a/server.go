package a2a

import (
	"context"
	"sync"

	a2atype "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
	"github.com/a2aproject/a2a-go/a2asrv/eventqueue"

	"github.com/hupe1980/planmesh/core"
)

// agentExecutor serves an AgentInteraction as an A2A agent.
type agentExecutor struct {
	agent core.AgentInteraction
	skill string

	mu       sync.Mutex
	inFlight map[a2atype.TaskID]context.CancelFunc
}

// NewAgentExecutor exposes agent over A2A. Every incoming message is passed
// to agent.ExecuteTask with skill as the hint, and the result is written back
// as a single agent message.
func NewAgentExecutor(agent core.AgentInteraction, skill string) a2asrv.AgentExecutor {
	return &agentExecutor{
		agent:    agent,
		skill:    skill,
		inFlight: make(map[a2atype.TaskID]context.CancelFunc),
	}
}

// Execute runs the task and writes the reply to queue.
func (ae *agentExecutor) Execute(ctx context.Context, reqCtx *a2asrv.RequestContext, queue eventqueue.Queue) error {
	ctx, cancel := context.WithCancel(ctx)
	ae.track(reqCtx.TaskID, cancel)
	defer ae.untrack(reqCtx.TaskID)

	var description string
	if reqCtx.Message != nil {
		description = partsText(reqCtx.Message.Parts)
	}

	out, err := ae.agent.ExecuteTask(ctx, description, ae.skill)
	if err != nil {
		return err
	}

	return queue.Write(ctx, a2atype.NewMessage(a2atype.MessageRoleAgent, a2atype.TextPart{Text: out}))
}

// Cancel aborts the in-flight call for the task, if any.
func (ae *agentExecutor) Cancel(_ context.Context, reqCtx *a2asrv.RequestContext, _ eventqueue.Queue) error {
	ae.mu.Lock()
	cancel, ok := ae.inFlight[reqCtx.TaskID]
	ae.mu.Unlock()

	if ok {
		cancel()
	}
	return nil
}

func (ae *agentExecutor) track(id a2atype.TaskID, cancel context.CancelFunc) {
	ae.mu.Lock()
	ae.inFlight[id] = cancel
	ae.mu.Unlock()
}

func (ae *agentExecutor) untrack(id a2atype.TaskID) {
	ae.mu.Lock()
	if cancel, ok := ae.inFlight[id]; ok {
		cancel()
		delete(ae.inFlight, id)
	}
	ae.mu.Unlock()
}
