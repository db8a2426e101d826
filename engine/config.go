package engine

import (
	"time"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/events"
	"github.com/hupe1980/planmesh/logging"
)

// Config defines tuning parameters for plan execution.
//
// Workers bounds how many activities of one run are dispatched concurrently.
// Aggregation and Separator decide how the outputs of several terminal
// activities are combined into the final outcome.
type Config struct {
	Workers     int
	Aggregation AggregationPolicy
	Separator   string

	// MaxConcurrentRuns limits the runs an Engine executes at once. Zero
	// means unlimited.
	MaxConcurrentRuns int

	// EventBufferSize sizes the channel publisher created by the planmesh
	// facade.
	EventBufferSize int
}

// DefaultConfig provides the default execution configuration:
//   - Workers: 4
//   - Aggregation: AggregateConcatenate
//   - Separator: "\n"
//   - MaxConcurrentRuns: 10
//   - EventBufferSize: 100
var DefaultConfig = Config{
	Workers:           4,
	Aggregation:       AggregateConcatenate,
	Separator:         "\n",
	MaxConcurrentRuns: 10,
	EventBufferSize:   100,
}

func (c Config) workers() int {
	if c.Workers < 1 {
		return 1
	}
	return c.Workers
}

// Capabilities bundles the executors activities are dispatched to. A nil
// capability makes activities of that type fail.
type Capabilities struct {
	Agents core.AgentInteraction
	Tools  core.ToolExecutor
	Tasks  core.TaskExecutor
}

// Observer receives execution measurements, e.g. for metrics.
type Observer interface {
	ObserveActivity(activityType string, success bool, d time.Duration)
	ObservePlan(state string, d time.Duration)
}

// Archiver keeps snapshots of finished runs.
type Archiver interface {
	Archive(snap Snapshot) error
}

// CoordinatorOptions configures a single Coordinator.
type CoordinatorOptions struct {
	Config       Config
	Capabilities Capabilities
	Logger       logging.Logger
	Publisher    events.Publisher
	Observer     Observer
	Callbacks    *CallbackManager
	RunID        string
}
