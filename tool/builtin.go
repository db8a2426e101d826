package tool

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/hupe1980/planmesh/internal/util"
)

// NewEchoTool returns a tool that answers with its "text" argument, or with
// the JSON encoding of all arguments when no text is given.
func NewEchoTool() *FunctionTool {
	return NewFunctionTool(
		"echo",
		"Return the given text unchanged",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{"type": "string", "description": "Text to return"},
			},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			if text, ok := args["text"].(string); ok {
				return text, nil
			}
			b, err := json.Marshal(args)
			if err != nil {
				return nil, err
			}
			return string(b), nil
		},
	)
}

type templateArgs struct {
	Template string         `json:"template" description:"Go text/template source"`
	Values   map[string]any `json:"values,omitempty" description:"Values available to the template"`
}

// NewTemplateTool returns a tool rendering a Go text/template with values.
func NewTemplateTool() *FunctionTool {
	return NewTypedTool("template", "Render a text template with the given values",
		func(_ context.Context, a templateArgs) (any, error) {
			return util.RenderTemplate(a.Template, a.Values)
		},
	)
}

type clockArgs struct {
	Timezone string `json:"timezone,omitempty" description:"IANA time zone name"`
	Format   string `json:"format,omitempty" description:"Output format" enum:"rfc3339,date,unix"`
}

// NewClockTool returns a tool reporting the current time, optionally in the
// "timezone" given as IANA name. The "format" argument selects RFC 3339
// (default), a plain date or Unix seconds.
func NewClockTool(now func() time.Time) *FunctionTool {
	if now == nil {
		now = time.Now
	}
	return NewTypedTool("clock", "Report the current time",
		func(_ context.Context, a clockArgs) (any, error) {
			t := now()
			if a.Timezone != "" {
				loc, err := time.LoadLocation(a.Timezone)
				if err != nil {
					return nil, NewToolError("clock", "unknown timezone "+a.Timezone, CodeValidation)
				}
				t = t.In(loc)
			}

			switch a.Format {
			case "date":
				return t.Format(time.DateOnly), nil
			case "unix":
				return strconv.FormatInt(t.Unix(), 10), nil
			default:
				return t.Format(time.RFC3339), nil
			}
		},
	)
}

// Builtins returns the built-in tools.
func Builtins() []Tool {
	return []Tool{NewEchoTool(), NewTemplateTool(), NewClockTool(nil)}
}
