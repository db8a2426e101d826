// Package session archives finished plan runs.
//
// A run's PlanContext is discarded by the engine once the run reaches
// Completed or Failed; an archive keeps a read-only snapshot of it, grouped by
// conversation, for later inspection. InMemoryStore implements
// engine.Archiver. Add persistent backends in sub-packages without changing
// any calling code.
package session
