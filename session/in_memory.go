package session

import (
	"errors"
	"sort"
	"sync"

	"github.com/hupe1980/planmesh/engine"
)

// ErrNotFound is returned when no snapshot exists for a run id.
var ErrNotFound = errors.New("run not archived")

// ErrMissingRunID is returned when archiving a snapshot without run id.
var ErrMissingRunID = errors.New("snapshot has no run id")

// InMemoryStore is a volatile archive storing snapshots in a process local
// map. It is safe for concurrent access and best suited for tests or
// ephemeral servers. Snapshots are immutable once archived.
type InMemoryStore struct {
	mu            sync.RWMutex
	runs          map[string]engine.Snapshot
	conversations map[string][]string // conversationID -> run ids, in archive order
}

// NewInMemoryStore constructs an empty in-memory archive.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		runs:          make(map[string]engine.Snapshot),
		conversations: make(map[string][]string),
	}
}

// Archive stores snap. Archiving the same run twice replaces the snapshot.
func (s *InMemoryStore) Archive(snap engine.Snapshot) error {
	if snap.RunID == "" {
		return ErrMissingRunID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[snap.RunID]; !exists {
		s.conversations[snap.ConversationID] = append(s.conversations[snap.ConversationID], snap.RunID)
	}
	s.runs[snap.RunID] = snap
	return nil
}

// Get returns the snapshot of a run.
func (s *InMemoryStore) Get(runID string) (engine.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.runs[runID]
	if !ok {
		return engine.Snapshot{}, ErrNotFound
	}
	return snap, nil
}

// List returns the snapshots of a conversation in archive order.
func (s *InMemoryStore) List(conversationID string) []engine.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.conversations[conversationID]
	out := make([]engine.Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.runs[id])
	}
	return out
}

// ByState returns all archived snapshots whose state matches, ordered by
// finish time.
func (s *InMemoryStore) ByState(state engine.State) []engine.Snapshot {
	s.mu.RLock()
	out := []engine.Snapshot{}
	for _, snap := range s.runs {
		if snap.PlanState.State == state {
			out = append(out, snap)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FinishedAt.Before(out[j].FinishedAt) })
	return out
}

// Len returns the number of archived runs.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}
