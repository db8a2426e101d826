package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/hupe1980/planmesh/core"
	"gopkg.in/yaml.v3"
)

// ActivityType selects the capability an activity is dispatched to.
type ActivityType int

const (
	// DelegationAgent activities are delegated to an AgentInteraction.
	DelegationAgent ActivityType = iota + 1
	// DirectToolUse activities run a single tool through a ToolExecutor.
	DirectToolUse
	// DirectTaskExecution activities run their task list through a TaskExecutor.
	DirectTaskExecution
)

var activityTypeNames = map[ActivityType]string{
	DelegationAgent:     "delegation_agent",
	DirectToolUse:       "direct_tool_use",
	DirectTaskExecution: "direct_task_execution",
}

// String returns the document name of the activity type.
func (t ActivityType) String() string {
	if name, ok := activityTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether t is one of the declared activity types.
func (t ActivityType) Valid() bool {
	_, ok := activityTypeNames[t]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (t ActivityType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid activity type %d", int(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The empty string decodes
// to the zero value so that Compile can report it as a missing field.
func (t *ActivityType) UnmarshalText(text []byte) error {
	s := string(text)
	if s == "" {
		*t = 0
		return nil
	}
	for k, name := range activityTypeNames {
		if name == s {
			*t = k
			return nil
		}
	}
	return fmt.Errorf("unknown activity type %q", s)
}

// Document is the declarative plan description.
type Document struct {
	PlanName   string          `json:"plan_name" yaml:"plan_name"`
	Activities []ActivityInput `json:"activities" yaml:"activities"`
}

// ActivityInput is one declared activity.
type ActivityInput struct {
	ActivityType    ActivityType      `json:"activity_type" yaml:"activity_type"`
	ID              string            `json:"id" yaml:"id"`
	Description     string            `json:"description" yaml:"description"`
	Type            string            `json:"type" yaml:"type"`
	Agent           *AgentConfigInput `json:"agent,omitempty" yaml:"agent,omitempty"`
	Tools           []ToolConfigInput `json:"tools,omitempty" yaml:"tools,omitempty"`
	Tasks           []core.TaskSpec   `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Dependencies    []DependencyInput `json:"dependencies" yaml:"dependencies"`
	ExpectedOutcome string            `json:"expected_outcome" yaml:"expected_outcome"`
}

// AgentConfigInput is the optional agent block of an activity.
type AgentConfigInput struct {
	SkillToUse                *string    `json:"skill_to_use,omitempty" yaml:"skill_to_use,omitempty"`
	AssignedAgentIDPreference *string    `json:"assigned_agent_id_preference,omitempty" yaml:"assigned_agent_id_preference,omitempty"`
	AgentContext              core.Value `json:"agent_context,omitempty" yaml:"agent_context,omitempty"`
}

// ToolConfigInput is one entry of an activity's tools list. Only the first
// entry is used.
type ToolConfigInput struct {
	ToolToUse      *string    `json:"tool_to_use,omitempty" yaml:"tool_to_use,omitempty"`
	ToolParameters core.Value `json:"tool_parameters" yaml:"tool_parameters"`
}

// DependencyInput declares an inbound edge from Source.
type DependencyInput struct {
	Source    string  `json:"source" yaml:"source"`
	Condition *string `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// ParseJSON decodes a JSON plan document.
func ParseJSON(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plan json: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

// ParseYAML decodes a YAML plan document.
func ParseYAML(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode plan yaml: %w", err)
	}
	doc.normalize()
	return &doc, nil
}

// Parse decodes data as JSON when it starts with '{' and as YAML otherwise.
func Parse(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseJSON(trimmed)
	}
	return ParseYAML(data)
}

// LoadFile reads and parses a plan document from disk.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan %s: %w", path, err)
	}
	return Parse(data)
}

func (d *Document) normalize() {
	for i := range d.Activities {
		a := &d.Activities[i]
		if a.Agent != nil {
			a.Agent.AgentContext = core.Normalize(a.Agent.AgentContext)
		}
		for j := range a.Tools {
			a.Tools[j].ToolParameters = core.Normalize(a.Tools[j].ToolParameters)
		}
		for j := range a.Tasks {
			a.Tasks[j].TaskParameters = core.Normalize(a.Tasks[j].TaskParameters)
		}
	}
}
