package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hupe1980/planmesh/core"
)

// ErrNotFound is returned when a memory entry does not exist.
var ErrNotFound = errors.New("memory not found")

// InMemoryStore is a naive process-local MemoryService. Entries are kept
// per conversation in insertion order.
//
// Concurrency: protected by RWMutex.
// Search: linear scan with case sensitive substring matching. Suitable only
// for tests and demos.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]core.MemoryEntry // conversationID -> entries
	now     func() time.Time
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		entries: make(map[string][]core.MemoryEntry),
		now:     time.Now,
	}
}

// Log appends a conversation turn.
func (m *InMemoryStore) Log(ctx context.Context, conversationID string, role core.Role, text, agentName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if conversationID == "" {
		return fmt.Errorf("memory: conversation id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[conversationID] = append(m.entries[conversationID], core.MemoryEntry{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		AgentName:      agentName,
		Timestamp:      m.now(),
	})
	return nil
}

// History returns a copy of all entries of a conversation, oldest first.
func (m *InMemoryStore) History(conversationID string) []core.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]core.MemoryEntry{}, m.entries[conversationID]...)
}

// Search returns up to limit entries of the conversation whose text contains
// query, oldest first. An empty query matches everything; limit <= 0 means no
// limit.
func (m *InMemoryStore) Search(conversationID, query string, limit int) []core.MemoryEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []core.MemoryEntry{}
	for _, e := range m.entries[conversationID] {
		if limit > 0 && len(results) >= limit {
			break
		}
		if query == "" || strings.Contains(e.Text, query) {
			results = append(results, e)
		}
	}
	return results
}

// Delete removes a single entry by id.
func (m *InMemoryStore) Delete(conversationID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.entries[conversationID]
	for i, e := range entries {
		if e.ID == id {
			m.entries[conversationID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Conversations returns the ids of all conversations with at least one entry.
func (m *InMemoryStore) Conversations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.entries))
	for id, entries := range m.entries {
		if len(entries) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
