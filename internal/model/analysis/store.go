package analysis

import (
	"context"
	"sync"
)

// Store holds the cleaned analysis text of each session in a named slot.
type Store interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// MemoryStore implements Store with an in-process map.
type MemoryStore struct {
	mu    sync.RWMutex
	slots map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{slots: make(map[string]string)}
}

// Load returns the slot value and whether it is present.
func (s *MemoryStore) Load(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.slots[key]
	return value, ok, nil
}

// Save overwrites the slot.
func (s *MemoryStore) Save(_ context.Context, key, value string) error {
	s.mu.Lock()
	s.slots[key] = value
	s.mu.Unlock()
	return nil
}

// Delete clears the slot. Deleting an absent slot is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.slots, key)
	s.mu.Unlock()
	return nil
}
