package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/testutil"
	"github.com/hupe1980/planmesh/memory"
	"github.com/hupe1980/planmesh/plan"
)

type fakeArchive struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (a *fakeArchive) Archive(snap Snapshot) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.snaps = append(a.snaps, snap)
	return nil
}

type fakeEvaluation struct {
	mu   sync.Mutex
	data []core.EvaluationLogData
	err  error
}

func (e *fakeEvaluation) LogEvaluation(_ context.Context, data core.EvaluationLogData) (*core.JudgeEvaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.data = append(e.data, data)
	if e.err != nil {
		return nil, e.err
	}
	return &core.JudgeEvaluation{Rating: "good", Score: 8}, nil
}

func demoDocument(condition string) *plan.Document {
	return testutil.NewPlanBuilder("demo").Tool("A", "echo").Task("B", testutil.DepIf("A", condition)).Build()
}

func TestEngine_Execute(t *testing.T) {
	f := testutil.NewFakeCapabilities().Returns("A", "hello").Returns("B", "done")
	mem := memory.NewInMemoryStore()
	archive := &fakeArchive{}
	eval := &fakeEvaluation{}

	eng := New(func(o *Options) {
		o.Capabilities = capabilitiesOf(f)
		o.Memory = mem
		o.Archive = archive
		o.Evaluation = eval
	})

	res, err := eng.Execute(context.Background(), demoDocument("hello"), "greet", func(o *RunOptions) {
		o.RequestID = "req-1"
		o.ConversationID = "conv-1"
		o.SuccessCriteria = "a greeting"
	})
	require.NoError(t, err)
	assert.Equal(t, &ExecutionResult{RequestID: "req-1", ConversationID: "conv-1", Success: true, Output: "done"}, res)

	require.Len(t, archive.snaps, 1)
	snap := archive.snaps[0]
	assert.Equal(t, "req-1", snap.RequestID)
	assert.Equal(t, "conv-1", snap.ConversationID)
	assert.Equal(t, Completed, snap.PlanState.State)
	assert.NotEmpty(t, snap.RunID)

	history := mem.History("conv-1")
	require.Len(t, history, 3)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "greet", history[0].Text)
	assert.Equal(t, "A", history[1].AgentName)
	assert.Equal(t, "hello", history[1].Text)
	assert.Equal(t, "B", history[2].AgentName)

	require.Len(t, eval.data, 1)
	data := eval.data[0]
	assert.Equal(t, "demo", data.AgentID)
	assert.Equal(t, "greet", data.OriginalUserQuery)
	assert.Equal(t, "done", data.AgentOutput)
	assert.Equal(t, map[string]string{"A": "hello", "B": "done"}, data.ActivitiesOutcome)
	require.NotNil(t, data.SuccessCriteria)
	assert.Equal(t, "a greeting", *data.SuccessCriteria)

	assert.Empty(t, eng.ActiveRuns())
}

func TestEngine_ExecuteGeneratesIDs(t *testing.T) {
	eng := New(func(o *Options) { o.Capabilities = capabilitiesOf(testutil.NewFakeCapabilities()) })

	res, err := eng.Execute(context.Background(), demoDocument("hello"), "q")
	require.NoError(t, err)
	assert.NotEmpty(t, res.RequestID)
	assert.NotEmpty(t, res.ConversationID)
	assert.NotEqual(t, res.RequestID, res.ConversationID)
}

func TestEngine_ExecuteFailure(t *testing.T) {
	f := testutil.NewFakeCapabilities().Fails("A", errors.New("tool exploded"))
	eval := &fakeEvaluation{}
	eng := New(func(o *Options) {
		o.Capabilities = capabilitiesOf(f)
		o.Evaluation = eval
	})

	res, err := eng.Execute(context.Background(), demoDocument("hello"), "q")
	assert.ErrorIs(t, err, ErrNodeExecutionFailed)
	require.NotNil(t, res)
	assert.False(t, res.Success)
	assert.Contains(t, res.Output, `activity "A" failed`)
	assert.Contains(t, res.Output, "tool exploded")
	assert.Empty(t, eval.data)
}

func TestEngine_ExecuteCompileError(t *testing.T) {
	eng := New()

	doc := testutil.NewPlanBuilder("bad").Tool("A", "t", testutil.Dep("ghost")).Build()
	res, err := eng.Execute(context.Background(), doc, "q")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, plan.ErrUnknownDependency)
}

func TestEngine_EvaluationErrorIsIgnored(t *testing.T) {
	eng := New(func(o *Options) {
		o.Capabilities = capabilitiesOf(testutil.NewFakeCapabilities())
		o.Evaluation = &fakeEvaluation{err: errors.New("judge offline")}
	})

	res, err := eng.Execute(context.Background(), demoDocument("hello"), "q")
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestEngine_RunControl(t *testing.T) {
	f := testutil.NewFakeCapabilities()
	release := f.Block("A")
	eng := New(func(o *Options) { o.Capabilities = capabilitiesOf(f) })

	g, err := eng.Compile(demoDocument("out-A"))
	require.NoError(t, err)

	run, err := eng.Start(context.Background(), g, "q")
	require.NoError(t, err)
	waitStarted(t, f, 1)

	assert.Equal(t, []string{run.ID}, eng.ActiveRuns())
	assert.Nil(t, run.Result())

	require.NoError(t, eng.Pause(run.ID))
	snap, err := eng.Status(run.ID)
	require.NoError(t, err)
	assert.Equal(t, Paused, snap.PlanState.State)
	assert.Equal(t, run.RequestID, snap.RequestID)

	release()
	require.NoError(t, eng.Resume(run.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := run.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "out-B", res.Output)
	assert.Same(t, res, run.Result())

	_, err = eng.Status(run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, eng.Cancel(run.ID), ErrRunNotFound)
}

func TestEngine_Cancel(t *testing.T) {
	f := testutil.NewFakeCapabilities()
	defer f.Block("A")()
	eng := New(func(o *Options) { o.Capabilities = capabilitiesOf(f) })

	g, err := eng.Compile(demoDocument("x"))
	require.NoError(t, err)

	run, err := eng.Start(context.Background(), g, "q")
	require.NoError(t, err)
	waitStarted(t, f, 1)

	require.NoError(t, eng.Cancel(run.ID))

	select {
	case <-run.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish")
	}

	res, err := run.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, "cancelled", res.Output)
	assert.False(t, res.Success)
}

func TestEngine_MaxConcurrentRuns(t *testing.T) {
	f := testutil.NewFakeCapabilities()
	release := f.Block("A")
	defer release()

	eng := New(func(o *Options) {
		o.Capabilities = capabilitiesOf(f)
		o.Config.MaxConcurrentRuns = 1
	})

	g, err := eng.Compile(demoDocument("x"))
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), g, "q")
	require.NoError(t, err)

	_, err = eng.Start(context.Background(), g, "q")
	assert.ErrorIs(t, err, ErrTooManyRuns)
}

func TestEngine_StartNilGraph(t *testing.T) {
	_, err := New().Start(context.Background(), nil, "q")
	assert.ErrorIs(t, err, ErrNilGraph)
}
