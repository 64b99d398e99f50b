package sources

import (
	"context"
	"sync"
)

// Settings is the key-value store the history is persisted in.
// Implementations can be in-memory, file-based, or remote.
type Settings interface {
	// Get returns the blob stored under key; ok is false when nothing is stored.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set replaces the blob stored under key.
	Set(ctx context.Context, key string, value []byte) error
}

// MemorySettings is an in-memory implementation of Settings.
type MemorySettings struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemorySettings returns a new empty in-memory store.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{values: make(map[string][]byte)}
}

// Get implements Settings.Get.
func (s *MemorySettings) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements Settings.Set.
func (s *MemorySettings) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
	return nil
}
