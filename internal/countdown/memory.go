package countdown

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store. Entries live until deleted.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

func (s *MemoryStore) Set(_ context.Context, lobbyID string, startAt time.Time) error {
	s.mu.Lock()
	s.entries[lobbyID] = startAt
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, lobbyID string) (time.Time, bool, error) {
	s.mu.RLock()
	startAt, ok := s.entries[lobbyID]
	s.mu.RUnlock()
	return startAt, ok, nil
}

func (s *MemoryStore) Delete(_ context.Context, lobbyID string) error {
	s.mu.Lock()
	delete(s.entries, lobbyID)
	s.mu.Unlock()
	return nil
}

// Len returns the number of tracked lobbies
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
