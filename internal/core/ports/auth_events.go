package ports

import (
	"context"

	"github.com/laundrypro/portal/internal/core/domain"
)

// AuthEventRecorder persists session lifecycle transitions for auditing.
// Recording is best effort; callers log and otherwise ignore the error.
type AuthEventRecorder interface {
	Record(ctx context.Context, event domain.AuthEvent) error
}
