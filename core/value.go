package core

import "fmt"

// Value is an untyped structured document: nil, bool, float64, string,
// []any or map[string]any. Agent context, tool parameters and task
// parameters are carried as Values so the engine stays agnostic of
// downstream payload shapes.
type Value = any

// TaskSpec is a single entry of a DirectTaskExecution activity.
type TaskSpec struct {
	TaskToUse      *string `json:"task_to_use,omitempty" yaml:"task_to_use,omitempty"`
	TaskParameters Value   `json:"task_parameters" yaml:"task_parameters"`
}

// Name returns the task name or the empty string when unset.
func (t TaskSpec) Name() string {
	if t.TaskToUse == nil {
		return ""
	}
	return *t.TaskToUse
}

// Normalize converts decoder specific shapes into the canonical Value
// representation. YAML mappings with non-string keys become map[string]any
// and integer scalars become float64, matching what encoding/json produces.
func Normalize(v any) Value {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// AsObject returns v as a JSON object. A nil Value yields an empty object.
func AsObject(v Value) (map[string]any, bool) {
	if v == nil {
		return map[string]any{}, true
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// StringField looks up a string field on an object Value.
func StringField(v Value, key string) (string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m[key].(string)
	return s, ok
}
