package ports

import (
	"context"

	"github.com/laundrypro/portal/internal/core/domain"
)

// SessionStore is the durable slot holding the bearer token and a cached user
// snapshot. It is the only code allowed to touch persisted auth state.
type SessionStore interface {
	// Save writes token and user together; a reader never observes one
	// without the other.
	Save(ctx context.Context, s *domain.Session) error
	// Load returns nil, nil when the slot is empty. Corrupt data is treated as
	// empty and the slot is cleared.
	Load(ctx context.Context) (*domain.Session, error)
	// Clear empties the slot. Clearing an empty slot is not an error.
	Clear(ctx context.Context) error
}
