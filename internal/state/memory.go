package state

import (
	"context"
	"sync"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// MemoryBackend keeps state in process. Used for dry runs and tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	streams map[string]*domain.StreamState
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{streams: make(map[string]*domain.StreamState)}
}

func (m *MemoryBackend) Load(_ context.Context, stream string) (*domain.StreamState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.streams[stream].Clone(), nil
}

func (m *MemoryBackend) Save(_ context.Context, stream string, s *domain.StreamState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[stream] = s.Clone()
	return nil
}
