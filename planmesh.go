// Package planmesh provides a high-level façade over the plan engine and its
// default services (tools, tasks, memory, run archive and event stream).
// Most applications interact with this package by:
//  1. Creating a PlanMesh via New(), supplying at least an agent capability
//     when plans delegate to agents
//  2. Registering additional tools or task handlers
//  3. Executing plan documents synchronously (Execute) or starting them in
//     the background (Start) and controlling runs by id
//
// All defaults are in-memory and safe for local development and testing.
package planmesh

import (
	"context"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/engine"
	"github.com/hupe1980/planmesh/events"
	"github.com/hupe1980/planmesh/logging"
	"github.com/hupe1980/planmesh/memory"
	"github.com/hupe1980/planmesh/plan"
	"github.com/hupe1980/planmesh/session"
	"github.com/hupe1980/planmesh/task"
	"github.com/hupe1980/planmesh/tool"
)

// Options configures the PlanMesh instance.
type Options struct {
	// EngineConfig holds worker, aggregation and buffer settings.
	EngineConfig engine.Config

	// Agents handles DelegationAgent activities. Usually an a2a.Directory.
	Agents core.AgentInteraction

	// Tools and Tasks default to registries preloaded with the builtins.
	Tools *tool.Registry
	Tasks *task.Executor

	// Memory and Archive default to in-memory stores.
	Memory  *memory.InMemoryStore
	Archive *session.InMemoryStore

	// Evaluation judges successful runs. Optional.
	Evaluation core.EvaluationService

	// Publishers receive run events in addition to the built-in channel.
	Publishers []events.Publisher

	// Observer receives execution measurements. Optional.
	Observer engine.Observer

	// Callbacks run around every activity. Optional.
	Callbacks *engine.CallbackManager

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// PlanMesh is the high-level façade aggregating the engine and services.
type PlanMesh struct {
	opts   Options
	engine *engine.Engine
	events *events.ChannelPublisher
}

// New creates a new PlanMesh instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *PlanMesh {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Tools == nil {
		opts.Tools = tool.NewRegistry(func(o *tool.RegistryOptions) { o.Logger = opts.Logger })
		opts.Tools.Register(tool.Builtins()...)
	}
	if opts.Tasks == nil {
		opts.Tasks = task.NewExecutor(func(o *task.Options) { o.Logger = opts.Logger })
		task.RegisterBuiltins(opts.Tasks)
	}
	if opts.Memory == nil {
		opts.Memory = memory.NewInMemoryStore()
	}
	if opts.Archive == nil {
		opts.Archive = session.NewInMemoryStore()
	}

	stream := events.NewChannelPublisher(opts.EngineConfig.EventBufferSize)
	publisher := append(events.Multi{stream}, opts.Publishers...)

	eng := engine.New(func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Capabilities = engine.Capabilities{
			Agents: opts.Agents,
			Tools:  opts.Tools,
			Tasks:  opts.Tasks,
		}
		o.Memory = opts.Memory
		o.Archive = opts.Archive
		o.Evaluation = opts.Evaluation
		o.Publisher = publisher
		o.Observer = opts.Observer
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	return &PlanMesh{opts: opts, engine: eng, events: stream}
}

// Engine exposes the underlying engine.
func (pm *PlanMesh) Engine() *engine.Engine { return pm.engine }

// Tools returns the tool registry used for DirectToolUse activities.
func (pm *PlanMesh) Tools() *tool.Registry { return pm.opts.Tools }

// Tasks returns the task executor used for DirectTaskExecution activities.
func (pm *PlanMesh) Tasks() *task.Executor { return pm.opts.Tasks }

// Events streams run events. Events are dropped when the consumer lags
// behind by more than EngineConfig.EventBufferSize.
func (pm *PlanMesh) Events() <-chan events.Event { return pm.events.Events() }

// Compile validates a plan document.
func (pm *PlanMesh) Compile(doc *plan.Document) (*plan.Graph, error) {
	return pm.engine.Compile(doc)
}

// Execute compiles doc and runs it to completion.
func (pm *PlanMesh) Execute(ctx context.Context, doc *plan.Document, userQuery string, optFns ...func(o *engine.RunOptions)) (*engine.ExecutionResult, error) {
	return pm.engine.Execute(ctx, doc, userQuery, optFns...)
}

// ExecuteSource parses a JSON or YAML plan document and runs it.
func (pm *PlanMesh) ExecuteSource(ctx context.Context, source []byte, userQuery string, optFns ...func(o *engine.RunOptions)) (*engine.ExecutionResult, error) {
	doc, err := plan.Parse(source)
	if err != nil {
		return nil, err
	}
	return pm.Execute(ctx, doc, userQuery, optFns...)
}

// Start compiles doc and runs it in the background.
func (pm *PlanMesh) Start(ctx context.Context, doc *plan.Document, userQuery string, optFns ...func(o *engine.RunOptions)) (*engine.Run, error) {
	g, err := pm.engine.Compile(doc)
	if err != nil {
		return nil, err
	}
	return pm.engine.Start(ctx, g, userQuery, optFns...)
}

// Cancel stops an active run.
func (pm *PlanMesh) Cancel(runID string) error { return pm.engine.Cancel(runID) }

// Pause suspends an active run.
func (pm *PlanMesh) Pause(runID string) error { return pm.engine.Pause(runID) }

// Resume continues a paused run.
func (pm *PlanMesh) Resume(runID string) error { return pm.engine.Resume(runID) }

// Status returns the snapshot of an active run, or of a finished run from
// the archive.
func (pm *PlanMesh) Status(runID string) (engine.Snapshot, error) {
	snap, err := pm.engine.Status(runID)
	if err == nil {
		return snap, nil
	}
	if archived, aerr := pm.opts.Archive.Get(runID); aerr == nil {
		return archived, nil
	}
	return engine.Snapshot{}, err
}

// Runs lists the archived runs of a conversation.
func (pm *PlanMesh) Runs(conversationID string) []engine.Snapshot {
	return pm.opts.Archive.List(conversationID)
}

// History returns the memory log of a conversation.
func (pm *PlanMesh) History(conversationID string) []core.MemoryEntry {
	return pm.opts.Memory.History(conversationID)
}

// Close closes the event stream. The PlanMesh must not run plans afterwards.
func (pm *PlanMesh) Close() { pm.events.Close() }
