package ports

import (
	"context"

	"github.com/laundrypro/portal/internal/core/domain"
)

// SessionService is the auth context as seen by the HTTP layer and the CLI.
type SessionService interface {
	State() domain.AuthState
	Bootstrap(ctx context.Context) domain.AuthState

	Login(ctx context.Context, email, password string) (*domain.User, error)
	Register(ctx context.Context, in RegisterInput) (*domain.User, error)
	SetupAdmin(ctx context.Context, in AdminSetupInput) (*domain.User, error)
	AdminExists(ctx context.Context) (bool, error)
	Logout(ctx context.Context) error

	RefreshProfile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, fields map[string]any) (*domain.User, error)

	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error
}
