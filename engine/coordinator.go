package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/events"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/plan"
)

// Coordinator drives one compiled plan to completion.
//
// It owns a private copy of the graph and the PlanContext of the run. The
// goroutine executing Run is the only writer of the context; activities are
// executed by a bounded worker pool and their results are merged back through
// a single results channel. Pause, Resume, Cancel and Snapshot are safe to call
// from other goroutines.
type Coordinator struct {
	graph     *plan.Graph
	resolver  *plan.Resolver
	caps      Capabilities
	agg       Aggregator
	cfg       Config
	logger    logging.Logger
	publisher events.Publisher
	observer  Observer
	callbacks *CallbackManager
	runID     string

	mu         sync.RWMutex
	pctx       PlanContext
	resumeTo   PlanState
	resumeCh   chan struct{}
	started    bool
	cancelled  bool
	cancel     context.CancelFunc
	startedAt  time.Time
	finishedAt time.Time
}

type result struct {
	id           string
	activityType plan.ActivityType
	output       string
	err          error
	elapsed      time.Duration
}

// NewCoordinator prepares a run of g. The graph is cloned so a compiled plan
// can be run any number of times.
func NewCoordinator(g *plan.Graph, optFns ...func(o *CoordinatorOptions)) (*Coordinator, error) {
	if g == nil {
		return nil, ErrNilGraph
	}

	opts := CoordinatorOptions{
		Config:    DefaultConfig,
		Logger:    logging.NoOpLogger{},
		Publisher: events.NoOpPublisher{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}

	graph := g.Clone()

	return &Coordinator{
		graph:     graph,
		resolver:  plan.NewResolver(graph),
		caps:      opts.Capabilities,
		agg:       Aggregator{Policy: opts.Config.Aggregation, Separator: opts.Config.Separator},
		cfg:       opts.Config,
		logger:    opts.Logger,
		publisher: opts.Publisher,
		observer:  opts.Observer,
		callbacks: opts.Callbacks,
		runID:     opts.RunID,
		pctx: PlanContext{
			PlanState:         PlanState{State: Idle},
			Graph:             graph,
			ActivitiesOutcome: make(map[string]string, graph.Len()),
		},
	}, nil
}

// RunID returns the identifier of this run.
func (c *Coordinator) RunID() string { return c.runID }

// Graph returns the run's private graph. Activity outputs must only be read
// once Run has returned.
func (c *Coordinator) Graph() *plan.Graph { return c.graph }

// Run executes the plan for userQuery and blocks until it reaches Completed or
// Failed. It returns the final outcome, or a *PlanError. Run may be called
// once per Coordinator.
func (c *Coordinator) Run(ctx context.Context, userQuery string) (string, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return "", ErrAlreadyStarted
	}
	c.started = true
	c.startedAt = time.Now()
	c.pctx.UserQuery = userQuery
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	cancelled := c.cancelled
	c.mu.Unlock()
	defer cancel()

	c.logger.Info("engine.plan.start", "plan", c.graph.PlanName, "run_id", c.runID, "activities", c.graph.Len())

	if cancelled {
		return c.fail(runCtx, &PlanError{Kind: KindCancelled})
	}

	if err := c.transition(runCtx, Initializing, func(p *PlanContext) { p.CurrentStepID = nil }); err != nil {
		return c.fail(runCtx, &PlanError{Kind: KindCancelled})
	}

	if len(c.resolver.Frontier(c.pctx.ActivitiesOutcome, nil)) == 0 {
		return c.fail(runCtx, &PlanError{Kind: KindEmptyFrontier})
	}

	return c.loop(runCtx)
}

func (c *Coordinator) loop(ctx context.Context) (string, error) {
	workers := c.cfg.workers()
	jobs := make(chan *plan.Activity)
	results := make(chan result, workers)

	for i := 0; i < workers; i++ {
		go c.worker(ctx, jobs, results)
	}
	defer close(jobs)

	inFlight := make(map[string]bool, workers)

	for {
		if ctx.Err() != nil {
			return c.fail(ctx, &PlanError{Kind: KindCancelled})
		}

		ready := c.resolver.Frontier(c.pctx.ActivitiesOutcome, inFlight)
		if len(ready) == 0 && len(inFlight) == 0 {
			return c.complete(ctx)
		}

		if free := workers - len(inFlight); len(ready) > free {
			ready = ready[:free]
		}

		if len(ready) == 0 {
			if err := c.transition(ctx, ExecutingStep, nil); err != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
		}

		for _, id := range ready {
			if err := c.transition(ctx, ExecutingStep, setCurrent(id)); err != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
			if ctx.Err() != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}

			select {
			case jobs <- c.graph.Activity(id):
			case <-ctx.Done():
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
			inFlight[id] = true

			c.logger.Debug("engine.activity.dispatch", "run_id", c.runID, "activity", id)
		}

		if c.delegating(inFlight) {
			if err := c.transition(ctx, AwaitingAgentResponse, nil); err != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
		}

		select {
		case <-ctx.Done():
			return c.fail(ctx, &PlanError{Kind: KindCancelled})

		case r := <-results:
			delete(inFlight, r.id)
			if ctx.Err() != nil {
				// Results arriving after cancellation are discarded.
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
			c.observeActivity(ctx, r)

			if r.err != nil {
				return c.fail(ctx, &PlanError{Kind: KindNodeExecutionFailed, NodeID: r.id, Err: r.err})
			}

			if err := c.transition(ctx, ProcessingAgentResponse, c.record(r)); err != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}

			if err := c.transition(ctx, DecidingNextStep, nil); err != nil {
				return c.fail(ctx, &PlanError{Kind: KindCancelled})
			}
		}
	}
}

func (c *Coordinator) worker(ctx context.Context, jobs <-chan *plan.Activity, results chan<- result) {
	for act := range jobs {
		if err := ctx.Err(); err != nil {
			results <- result{id: act.ID, activityType: act.ActivityType, err: err}
			continue
		}

		start := time.Now()
		out, err := c.execute(ctx, act)
		results <- result{
			id:           act.ID,
			activityType: act.ActivityType,
			output:       out,
			err:          err,
			elapsed:      time.Since(start),
		}
	}
}

func (c *Coordinator) execute(ctx context.Context, act *plan.Activity) (string, error) {
	ctx = core.WithActivity(ctx, core.ActivityInfo{
		PlanName:        c.graph.PlanName,
		RunID:           c.runID,
		ActivityID:      act.ID,
		AgentPreference: act.AgentPreference(),
		AgentContext:    act.AgentContext,
	})

	cc := &CallbackContext{
		RunID:        c.runID,
		PlanName:     c.graph.PlanName,
		ActivityID:   act.ID,
		ActivityType: act.ActivityType.String(),
	}

	if err := c.callbacks.ExecuteCallbacks(ctx, CallbackBeforeActivity, cc); err != nil {
		return "", normalizeError(err, errorKind(act.ActivityType))
	}

	out, err := c.caps.dispatch(ctx, act)
	if err != nil {
		return "", err
	}

	cc.Output = out
	if err := c.callbacks.ExecuteCallbacks(ctx, CallbackAfterActivity, cc); err != nil {
		return "", normalizeError(err, errorKind(act.ActivityType))
	}

	return out, nil
}

// record stores a successful result. Both writes are write-once; a second
// write is an internal invariant violation and is logged, never surfaced.
func (c *Coordinator) record(r result) func(p *PlanContext) {
	return func(p *PlanContext) {
		id := r.id
		p.CurrentStepID = &id

		if _, dup := p.ActivitiesOutcome[r.id]; dup {
			c.logger.Error("engine.invariant.outcome_rewrite", "run_id", c.runID, "activity", r.id)
			return
		}
		p.ActivitiesOutcome[r.id] = r.output

		if err := p.Graph.Activity(r.id).SetOutput(r.output); err != nil {
			c.logger.Error("engine.invariant.output_rewrite", "run_id", c.runID, "activity", r.id, "error", err)
		}
	}
}

func (c *Coordinator) delegating(inFlight map[string]bool) bool {
	for id := range inFlight {
		if c.graph.Activity(id).ActivityType == plan.DelegationAgent {
			return true
		}
	}
	return false
}

func (c *Coordinator) complete(ctx context.Context) (string, error) {
	outcomes := c.pctx.ActivitiesOutcome
	final := c.agg.Aggregate(c.graph, outcomes)

	if excluded := c.resolver.Unreached(outcomes); len(excluded) > 0 {
		c.logger.Info("engine.plan.excluded", "run_id", c.runID, "activities", excluded)
	}

	err := c.transition(ctx, Completed, func(p *PlanContext) {
		p.FinalOutcome = final
		c.finishedAt = time.Now()
	})
	if err != nil {
		return c.fail(ctx, &PlanError{Kind: KindCancelled})
	}

	c.finish(ctx, PlanState{State: Completed}, nil)
	return final, nil
}

func (c *Coordinator) fail(ctx context.Context, perr *PlanError) (string, error) {
	c.mu.Lock()
	from := c.pctx.PlanState
	to := FailedState(perr.Error())
	c.pctx.PlanState = to
	c.pctx.History = append(c.pctx.History, Transition{From: from, To: to, StepID: stepID(c.pctx.CurrentStepID), At: time.Now()})
	if c.resumeCh != nil {
		close(c.resumeCh)
		c.resumeCh = nil
	}
	c.finishedAt = time.Now()
	step := stepID(c.pctx.CurrentStepID)
	c.mu.Unlock()

	c.notifyState(ctx, from, to, step)
	c.finish(ctx, to, perr)
	return "", perr
}

func (c *Coordinator) finish(ctx context.Context, state PlanState, perr *PlanError) {
	ctx = context.WithoutCancel(ctx)
	elapsed := c.finishedAt.Sub(c.startedAt)

	if c.observer != nil {
		c.observer.ObservePlan(state.State.String(), elapsed)
	}

	ev := events.Event{Type: events.PlanFinished, State: state.String(), Output: c.pctx.FinalOutcome}
	if perr != nil {
		ev.Error = perr.Error()
		ev.ActivityID = perr.NodeID
		c.logger.Warn("engine.plan.failed", "plan", c.graph.PlanName, "run_id", c.runID, "reason", state.Reason)
	} else {
		c.logger.Info("engine.plan.completed", "plan", c.graph.PlanName, "run_id", c.runID, "duration_ms", elapsed.Milliseconds())
	}
	c.publish(ctx, ev)
}

// transition moves the run to state `to`, applying mutate under the context
// lock. While the run is paused it blocks until resumed or ctx is done. Once
// ctx is done no further transition is applied.
func (c *Coordinator) transition(ctx context.Context, to State, mutate func(p *PlanContext)) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		c.mu.Lock()
		if c.pctx.PlanState.State != Paused {
			break
		}
		ch := c.resumeCh
		c.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	from := c.pctx.PlanState
	if mutate != nil {
		mutate(&c.pctx)
	}
	changed := from.State != to
	if changed {
		if !CanTransition(from.State, to) {
			c.logger.Error("engine.state.invalid_transition", "run_id", c.runID, "from", from.String(), "to", to.String())
		}
		c.pctx.PlanState = PlanState{State: to}
		c.pctx.History = append(c.pctx.History, Transition{
			From:   from,
			To:     c.pctx.PlanState,
			StepID: stepID(c.pctx.CurrentStepID),
			At:     time.Now(),
		})
	}
	step := stepID(c.pctx.CurrentStepID)
	c.mu.Unlock()

	if changed {
		c.notifyState(ctx, from, PlanState{State: to}, step)
	}
	return nil
}

// Pause suspends the run. In-flight activities keep running; their results
// are merged and new activities admitted only after Resume.
func (c *Coordinator) Pause() error {
	c.mu.Lock()
	from := c.pctx.PlanState
	if !from.State.Active() {
		c.mu.Unlock()
		return ErrNotActive
	}
	c.resumeTo = from
	c.resumeCh = make(chan struct{})
	c.pctx.PlanState = PlanState{State: Paused}
	step := stepID(c.pctx.CurrentStepID)
	c.pctx.History = append(c.pctx.History, Transition{From: from, To: c.pctx.PlanState, StepID: step, At: time.Now()})
	c.mu.Unlock()

	c.notifyState(context.Background(), from, PlanState{State: Paused}, step)
	return nil
}

// Resume returns a paused run to the state it was paused in. The current step
// is left unchanged.
func (c *Coordinator) Resume() error {
	c.mu.Lock()
	if c.pctx.PlanState.State != Paused {
		c.mu.Unlock()
		return ErrNotPaused
	}
	from := c.pctx.PlanState
	to := c.resumeTo
	c.pctx.PlanState = to
	step := stepID(c.pctx.CurrentStepID)
	c.pctx.History = append(c.pctx.History, Transition{From: from, To: to, StepID: step, At: time.Now()})
	close(c.resumeCh)
	c.resumeCh = nil
	c.mu.Unlock()

	c.notifyState(context.Background(), from, to, step)
	return nil
}

// Cancel stops admission of new activities, signals in-flight activities to
// abandon their calls and drives the run to Failed("cancelled"). Results that
// arrive afterwards are discarded. Cancelling a finished run is a no-op.
func (c *Coordinator) Cancel() {
	c.mu.Lock()
	c.cancelled = true
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot returns a read-only copy of the run's PlanContext.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := c.pctx.snapshot()
	snap.RunID = c.runID
	snap.StartedAt = c.startedAt
	snap.FinishedAt = c.finishedAt
	return snap
}

func (c *Coordinator) observeActivity(ctx context.Context, r result) {
	if c.observer != nil {
		c.observer.ObserveActivity(r.activityType.String(), r.err == nil, r.elapsed)
	}

	ev := events.Event{Type: events.ActivityCompleted, ActivityID: r.id, Output: r.output}
	if r.err != nil {
		ev = events.Event{Type: events.ActivityFailed, ActivityID: r.id, Error: r.err.Error()}
		c.logger.Warn("engine.activity.failed", "run_id", c.runID, "activity", r.id, "error", r.err)

		cc := &CallbackContext{RunID: c.runID, PlanName: c.graph.PlanName, ActivityID: r.id, ActivityType: r.activityType.String(), Err: r.err}
		if err := c.callbacks.ExecuteCallbacks(context.WithoutCancel(ctx), CallbackOnError, cc); err != nil {
			c.logger.Warn("engine.callback.failed", "run_id", c.runID, "callback", CallbackOnError, "error", err)
		}
	} else {
		c.logger.Info("engine.activity.completed", "run_id", c.runID, "activity", r.id, "duration_ms", r.elapsed.Milliseconds())
	}
	c.publish(context.WithoutCancel(ctx), ev)
}

func (c *Coordinator) notifyState(ctx context.Context, from, to PlanState, step string) {
	ctx = context.WithoutCancel(ctx)
	c.logger.Debug("engine.state", "run_id", c.runID, "from", from.String(), "to", to.String(), "step", step)

	c.publish(ctx, events.Event{Type: events.StateChanged, State: to.String(), ActivityID: step})

	cc := &CallbackContext{RunID: c.runID, PlanName: c.graph.PlanName, ActivityID: step, State: to}
	if err := c.callbacks.ExecuteCallbacks(ctx, CallbackOnStateChange, cc); err != nil {
		c.logger.Warn("engine.callback.failed", "run_id", c.runID, "callback", CallbackOnStateChange, "error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, ev events.Event) {
	ev.Plan = c.graph.PlanName
	ev.RunID = c.runID
	ev.Time = time.Now()
	if err := c.publisher.Publish(ctx, ev); err != nil {
		c.logger.Warn("engine.event.publish_failed", "run_id", c.runID, "type", ev.Type, "error", err)
	}
}

func setCurrent(id string) func(p *PlanContext) {
	return func(p *PlanContext) { p.CurrentStepID = &id }
}

func stepID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func errorKind(t plan.ActivityType) core.ExecutionErrorKind {
	switch t {
	case plan.DelegationAgent:
		return core.KindRemoteAgentError
	case plan.DirectToolUse:
		return core.KindToolExecutionError
	default:
		return core.KindTaskExecutionError
	}
}
