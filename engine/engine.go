package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/events"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/memory"
	"github.com/hupe1980/planmesh/plan"
)

// Options configures an Engine instance using the functional options pattern.
//
// Capabilities are the executors activities are dispatched to. Services have
// in-memory or no-op defaults so an Engine is usable without any external
// collaborator:
//
//	eng := New(func(o *Options) {
//	    o.Capabilities.Tools = tools
//	    o.Logger = logger
//	})
type Options struct {
	// Config contains operational parameters for plan execution.
	// Defaults to DefaultConfig if not specified.
	Config Config

	// Capabilities used to execute activities.
	Capabilities Capabilities

	// Memory records the user query and every activity outcome of a finished
	// run. Defaults to an in-memory store.
	Memory core.MemoryService

	// Evaluation judges successful runs. Optional.
	Evaluation core.EvaluationService

	// Archive keeps snapshots of finished runs. Optional.
	Archive Archiver

	// Publisher receives run events. Defaults to a no-op publisher.
	Publisher events.Publisher

	// Observer receives execution measurements. Optional.
	Observer Observer

	// Callbacks are shared by every run of the engine. Optional.
	Callbacks *CallbackManager

	// Logger provides structured logging. Defaults to NoOp logger.
	Logger logging.Logger
}

// Engine compiles plans and executes them, keeping track of active runs so
// they can be paused, resumed, cancelled and inspected by id.
//
// Each run is driven by its own Coordinator, owning a private copy of the
// graph. When a run reaches Completed or Failed the engine archives its
// snapshot, records the outcomes in memory, publishes a plan_finished event
// and, for successful runs, asks the evaluation service for a verdict.
// Failures of these follow-up services are logged and never change the
// result of the run.
type Engine struct {
	config     Config
	caps       Capabilities
	memory     core.MemoryService
	evaluation core.EvaluationService
	archive    Archiver
	publisher  events.Publisher
	observer   Observer
	callbacks  *CallbackManager
	logger     logging.Logger

	runs   map[string]*Run
	runsMu sync.RWMutex
}

// New creates a new Engine with sensible defaults and optional configuration.
func New(optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config:    DefaultConfig,
		Memory:    memory.NewInMemoryStore(),
		Publisher: events.NoOpPublisher{},
		Logger:    logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Engine{
		config:     opts.Config,
		caps:       opts.Capabilities,
		memory:     opts.Memory,
		evaluation: opts.Evaluation,
		archive:    opts.Archive,
		publisher:  opts.Publisher,
		observer:   opts.Observer,
		callbacks:  opts.Callbacks,
		logger:     opts.Logger,
		runs:       make(map[string]*Run),
	}
}

// RunOptions configures a single run started by an Engine.
type RunOptions struct {
	// RequestID identifies the request; a uuid when empty.
	RequestID string

	// ConversationID groups runs in memory and archive; a uuid when empty.
	ConversationID string

	// AgentID is reported to the evaluation service. Defaults to the plan name.
	AgentID string

	// SuccessCriteria is forwarded to the evaluation service.
	SuccessCriteria string
}

// Run is a handle to a plan run started by Engine.Start.
type Run struct {
	ID             string
	RequestID      string
	ConversationID string

	coord  *Coordinator
	done   chan struct{}
	result *ExecutionResult
	err    error
}

// Done is closed once the run reached Completed or Failed.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finished or ctx is done. It returns the final
// outcome or the *PlanError that failed the run.
func (r *Run) Wait(ctx context.Context) (*ExecutionResult, error) {
	select {
	case <-r.done:
		return r.result, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the execution result, or nil while the run is active.
func (r *Run) Result() *ExecutionResult {
	select {
	case <-r.done:
		return r.result
	default:
		return nil
	}
}

// Snapshot returns a read-only copy of the run's context.
func (r *Run) Snapshot() Snapshot {
	snap := r.coord.Snapshot()
	snap.RequestID = r.RequestID
	snap.ConversationID = r.ConversationID
	return snap
}

// Compile turns a plan document into an executable graph.
func (e *Engine) Compile(doc *plan.Document) (*plan.Graph, error) {
	g, err := plan.Compile(doc)
	if err != nil {
		e.logger.Warn("engine.plan.compile_failed", "error", err)
		return nil, err
	}

	e.logger.Debug("engine.plan.compiled", "plan", g.PlanName, "nodes", g.Len(), "edges", len(g.Edges))
	return g, nil
}

// Start runs g asynchronously for userQuery and returns a handle to the run.
// Cancelling ctx cancels the run.
func (e *Engine) Start(ctx context.Context, g *plan.Graph, userQuery string, optFns ...func(o *RunOptions)) (*Run, error) {
	if g == nil {
		return nil, ErrNilGraph
	}

	opts := RunOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}
	if opts.ConversationID == "" {
		opts.ConversationID = uuid.NewString()
	}
	if opts.AgentID == "" {
		opts.AgentID = g.PlanName
	}

	runID := uuid.NewString()
	logger := e.logger
	if pl, ok := logger.(*logging.PlanMeshLogger); ok {
		logger = pl.WithRun(g.PlanName, runID)
	}

	coord, err := NewCoordinator(g, func(o *CoordinatorOptions) {
		o.Config = e.config
		o.Capabilities = e.caps
		o.Logger = logger
		o.Publisher = e.publisher
		o.Observer = e.observer
		o.Callbacks = e.callbacks
		o.RunID = runID
	})
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:             runID,
		RequestID:      opts.RequestID,
		ConversationID: opts.ConversationID,
		coord:          coord,
		done:           make(chan struct{}),
	}

	e.runsMu.Lock()
	if limit := e.config.MaxConcurrentRuns; limit > 0 && len(e.runs) >= limit {
		e.runsMu.Unlock()
		return nil, ErrTooManyRuns
	}
	e.runs[runID] = run
	e.runsMu.Unlock()

	go func() {
		defer func() {
			e.runsMu.Lock()
			delete(e.runs, runID)
			e.runsMu.Unlock()
			close(run.done)
		}()

		output, err := coord.Run(ctx, userQuery)
		run.result, run.err = e.finish(ctx, run, opts, output, err)
	}()

	return run, nil
}

// Execute compiles doc, runs it to completion and returns its result.
//
// Compilation errors are returned as error. A run that ends in Failed yields
// an ExecutionResult with Success false and the failure reason as output,
// together with the *PlanError.
func (e *Engine) Execute(ctx context.Context, doc *plan.Document, userQuery string, optFns ...func(o *RunOptions)) (*ExecutionResult, error) {
	g, err := e.Compile(doc)
	if err != nil {
		return nil, err
	}

	run, err := e.Start(ctx, g, userQuery, optFns...)
	if err != nil {
		return nil, err
	}

	<-run.Done()
	return run.result, run.err
}

// Cancel cancels an active run.
func (e *Engine) Cancel(runID string) error {
	run, err := e.active(runID)
	if err != nil {
		return err
	}
	run.coord.Cancel()
	return nil
}

// Pause pauses an active run.
func (e *Engine) Pause(runID string) error {
	run, err := e.active(runID)
	if err != nil {
		return err
	}
	return run.coord.Pause()
}

// Resume resumes a paused run.
func (e *Engine) Resume(runID string) error {
	run, err := e.active(runID)
	if err != nil {
		return err
	}
	return run.coord.Resume()
}

// Status returns a snapshot of an active run.
func (e *Engine) Status(runID string) (Snapshot, error) {
	run, err := e.active(runID)
	if err != nil {
		return Snapshot{}, err
	}
	return run.Snapshot(), nil
}

// ActiveRuns returns the ids of all runs that have not finished yet.
func (e *Engine) ActiveRuns() []string {
	e.runsMu.RLock()
	defer e.runsMu.RUnlock()

	ids := make([]string, 0, len(e.runs))
	for id := range e.runs {
		ids = append(ids, id)
	}
	return ids
}

func (e *Engine) active(runID string) (*Run, error) {
	e.runsMu.RLock()
	run, ok := e.runs[runID]
	e.runsMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return run, nil
}

func (e *Engine) finish(ctx context.Context, run *Run, opts RunOptions, output string, runErr error) (*ExecutionResult, error) {
	ctx = context.WithoutCancel(ctx)
	snap := run.Snapshot()

	result := &ExecutionResult{
		RequestID:      run.RequestID,
		ConversationID: run.ConversationID,
		Success:        runErr == nil,
		Output:         output,
	}
	if runErr != nil {
		result.Output = snap.PlanState.Reason
	}

	if e.archive != nil {
		if err := e.archive.Archive(snap); err != nil {
			e.logger.Warn("engine.archive.failed", "run_id", run.ID, "error", err)
		}
	}

	e.remember(ctx, run, snap)

	if runErr == nil && e.evaluation != nil {
		e.evaluate(ctx, run, opts, snap)
	}

	return result, runErr
}

func (e *Engine) remember(ctx context.Context, run *Run, snap Snapshot) {
	if e.memory == nil {
		return
	}

	if err := e.memory.Log(ctx, run.ConversationID, core.RoleUser, snap.UserQuery, ""); err != nil {
		e.logger.Warn("engine.memory.failed", "run_id", run.ID, "error", err)
		return
	}

	for _, id := range run.coord.Graph().Order() {
		out, ok := snap.ActivitiesOutcome[id]
		if !ok {
			continue
		}
		if err := e.memory.Log(ctx, run.ConversationID, core.RoleAgent, out, id); err != nil {
			e.logger.Warn("engine.memory.failed", "run_id", run.ID, "activity", id, "error", err)
			return
		}
	}
}

func (e *Engine) evaluate(ctx context.Context, run *Run, opts RunOptions, snap Snapshot) {
	data := core.EvaluationLogData{
		AgentID:           opts.AgentID,
		RequestID:         run.RequestID,
		ConversationID:    run.ConversationID,
		OriginalUserQuery: snap.UserQuery,
		AgentInput:        snap.UserQuery,
		ActivitiesOutcome: snap.ActivitiesOutcome,
		AgentOutput:       snap.FinalOutcome,
	}
	if opts.SuccessCriteria != "" {
		criteria := opts.SuccessCriteria
		data.SuccessCriteria = &criteria
	}

	verdict, err := e.evaluation.LogEvaluation(ctx, data)
	if err != nil {
		e.logger.Warn("engine.evaluation.failed", "run_id", run.ID, "error", err)
		return
	}
	if verdict != nil {
		e.logger.Info("engine.evaluation", "run_id", run.ID, "rating", verdict.Rating, "score", verdict.Score)
	}
}
