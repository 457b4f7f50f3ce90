package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/laundrypro/portal/internal/core/domain"
)

// MemoryStore is a process-local slot. It does not survive a restart.
type MemoryStore struct {
	mu   sync.Mutex
	sess *domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	if !s.Valid() {
		return fmt.Errorf("session: save: %w", domain.ErrNoSession)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = s.Clone()
	return nil
}

func (m *MemoryStore) Load(_ context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.Clone(), nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sess = nil
	return nil
}
