package a2a

import (
	"context"
	"fmt"
	"sync"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/logging"
)

// Agent is an AgentInteraction that can be addressed by id and routed by
// skill. Both Client and agent.ModelInteraction satisfy it.
type Agent interface {
	core.AgentInteraction
	ID() string
	HasSkill(skill string) bool
}

// DirectoryOptions configures a Directory.
type DirectoryOptions struct {
	// DefaultAgent receives tasks no other agent claims.
	DefaultAgent string
	Logger       logging.Logger
}

// Directory routes delegations across several agents.
//
// Routing order: the activity's agent preference (when it names a registered
// agent), the first agent in registration order whose skills match the skill
// hint, then the default agent.
type Directory struct {
	mu     sync.RWMutex
	agents []Agent
	byID   map[string]Agent
	def    string
	logger logging.Logger
}

var _ core.AgentInteraction = (*Directory)(nil)

// NewDirectory creates an empty directory.
func NewDirectory(optFns ...func(o *DirectoryOptions)) *Directory {
	opts := DirectoryOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &Directory{
		byID:   make(map[string]Agent),
		def:    opts.DefaultAgent,
		logger: opts.Logger,
	}
}

// Add registers agents. An agent with an id already present replaces it.
func (d *Directory) Add(agents ...Agent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, a := range agents {
		if _, ok := d.byID[a.ID()]; ok {
			for i, existing := range d.agents {
				if existing.ID() == a.ID() {
					d.agents[i] = a
				}
			}
		} else {
			d.agents = append(d.agents, a)
		}
		d.byID[a.ID()] = a
	}
}

// SetDefault names the fallback agent.
func (d *Directory) SetDefault(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.def = id
}

// Get returns the agent registered under id.
func (d *Directory) Get(id string) (Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.byID[id]
	return a, ok
}

// IDs returns agent ids in registration order.
func (d *Directory) IDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.agents))
	for _, a := range d.agents {
		ids = append(ids, a.ID())
	}
	return ids
}

// Route picks the agent for a delegation.
func (d *Directory) Route(preference, skill string) (Agent, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if preference != "" {
		if a, ok := d.byID[preference]; ok {
			return a, true
		}
	}
	if skill != "" {
		for _, a := range d.agents {
			if a.HasSkill(skill) {
				return a, true
			}
		}
	}
	if a, ok := d.byID[d.def]; ok {
		return a, true
	}
	return nil, false
}

// ExecuteTask implements core.AgentInteraction.
func (d *Directory) ExecuteTask(ctx context.Context, description, skill string) (string, error) {
	var preference string
	if info, ok := core.ActivityFromContext(ctx); ok {
		preference = info.AgentPreference
	}

	a, ok := d.Route(preference, skill)
	if !ok {
		return "", core.NewExecutionError(core.KindRemoteAgentUnavailable,
			fmt.Sprintf("no agent for skill %q", skill), nil)
	}

	d.logger.Debug("a2a.directory.route", "agent", a.ID(), "skill", skill, "preference", preference)

	return a.ExecuteTask(ctx, description, skill)
}
