package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelPublisher(t *testing.T) {
	p := NewChannelPublisher(2)

	require.NoError(t, p.Publish(context.Background(), Event{Type: StateChanged, State: "Initializing"}))
	require.NoError(t, p.Publish(context.Background(), Event{Type: StateChanged, State: "ExecutingStep"}))
	assert.ErrorIs(t, p.Publish(context.Background(), Event{Type: StateChanged}), ErrBufferFull)

	ev := <-p.Events()
	assert.Equal(t, "Initializing", ev.State)

	p.Close()
	p.Close()
	assert.ErrorIs(t, p.Publish(context.Background(), Event{}), ErrClosed)

	ev, ok := <-p.Events()
	assert.True(t, ok)
	assert.Equal(t, "ExecutingStep", ev.State)
	_, ok = <-p.Events()
	assert.False(t, ok)
}

func TestChannelPublisher_CancelledContext(t *testing.T) {
	p := NewChannelPublisher(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{}), context.Canceled)
}

type failingPublisher struct{ err error }

func (f failingPublisher) Publish(context.Context, Event) error { return f.err }

func TestMulti(t *testing.T) {
	ch := NewChannelPublisher(1)
	boom := errors.New("boom")
	m := Multi{ch, failingPublisher{err: boom}, NoOpPublisher{}}

	err := m.Publish(context.Background(), Event{Type: PlanFinished})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, PlanFinished, (<-ch.Events()).Type)
}

func TestNATSPublisher_Subject(t *testing.T) {
	p := NewNATSPublisher(nil)
	assert.Equal(t, "planmesh.demo.state_changed", p.Subject(Event{Plan: "demo", Type: StateChanged}))
	assert.Equal(t, "planmesh.my_plan_v1.plan_finished", p.Subject(Event{Plan: "my plan.v1", Type: PlanFinished}))
	assert.Equal(t, "planmesh._.activity_failed", p.Subject(Event{Type: ActivityFailed}))

	custom := NewNATSPublisher(nil, func(o *NATSOptions) { o.SubjectPrefix = "acme.runs" })
	assert.Equal(t, "acme.runs.demo.activity_completed", custom.Subject(Event{Plan: "demo", Type: ActivityCompleted}))
}

func TestNATSPublisher_Errors(t *testing.T) {
	p := NewNATSPublisher(nil)

	err := p.Publish(context.Background(), Event{Plan: "demo", Type: StateChanged})
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, p.Publish(ctx, Event{}), context.Canceled)
}
