// Package model defines the provider-agnostic abstraction used by planmesh
// components that talk to a language model.
//
// A Model streams Response chunks for a Request. Partial chunks carry text
// deltas; the final chunk carries the complete text, the finish reason and,
// when the provider reports it, token usage. Collect drains a generation into
// a single string for callers that do not need streaming.
//
// Vendor adapters live in the anthropic and openai subpackages. MockModel is a
// deterministic in-memory Model for examples and tests.
package model
