package task

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/planmesh/core"
	"github.com/hupe1980/planmesh/internal/util"
)

// Echo returns the "text" parameter, or the previous output when no text is
// given.
func Echo(_ context.Context, params core.Value, previous string) (string, error) {
	if text, ok := core.StringField(params, "text"); ok {
		return text, nil
	}
	return previous, nil
}

// Template renders the "template" parameter with text/template. The values
// object is available as is, and the previous output as .previous.
func Template(_ context.Context, params core.Value, previous string) (string, error) {
	tmpl, ok := core.StringField(params, "template")
	if !ok {
		return "", fmt.Errorf("template: parameter %q is required", "template")
	}

	values := map[string]any{}
	if obj, ok := core.AsObject(params); ok {
		if v, ok := obj["values"].(map[string]any); ok {
			for k, val := range v {
				values[k] = val
			}
		}
	}
	values["previous"] = previous

	return util.RenderTemplate(tmpl, values)
}

// Transform applies a simple string operation to the previous output. The
// "op" parameter is one of upper, lower, trim or json.
func Transform(_ context.Context, params core.Value, previous string) (string, error) {
	op, _ := core.StringField(params, "op")
	switch op {
	case "upper":
		return strings.ToUpper(previous), nil
	case "lower":
		return strings.ToLower(previous), nil
	case "trim", "":
		return strings.TrimSpace(previous), nil
	case "json":
		b, err := json.Marshal(previous)
		if err != nil {
			return "", err
		}
		return string(b), nil
	default:
		return "", fmt.Errorf("transform: unknown op %q", op)
	}
}

// RegisterBuiltins registers echo, template and transform on e.
func RegisterBuiltins(e *Executor) {
	e.Register("echo", Echo)
	e.Register("template", Template)
	e.Register("transform", Transform)
}
