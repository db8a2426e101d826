// Package memory contains concrete MemoryService implementations. The
// service interface and the MemoryEntry type reside in the core package;
// depend on core.MemoryService in your code and select an implementation at
// wiring time.
package memory
