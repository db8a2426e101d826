// Package plan turns declarative plan documents into executable dependency
// graphs.
//
// A plan document lists activities and, per activity, the activities it
// depends on with an optional condition on the predecessor's outcome. Compile
// validates the document (required fields, unique ids, known dependency
// sources, acyclicity) and yields an immutable Graph plus a topological order
// that is used as the dispatch tie-break. The Resolver computes the execution
// frontier of a graph from the outcomes recorded so far, and Evaluate is the
// edge condition predicate it relies on.
package plan
