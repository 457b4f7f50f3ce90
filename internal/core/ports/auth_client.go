package ports

import (
	"context"

	"github.com/laundrypro/portal/internal/core/domain"
)

// RegisterInput is the payload of POST /auth/register. Extra carries
// role-specific attributes (address, department, ...) verbatim.
type RegisterInput struct {
	Name            string         `json:"name"            validate:"required"`
	Email           string         `json:"email"           validate:"required,email"`
	Password        string         `json:"password"        validate:"required,min=6"`
	ConfirmPassword string         `json:"-"               validate:"omitempty,eqfield=Password"`
	Role            domain.Role    `json:"role,omitempty"`
	Phone           string         `json:"phone,omitempty"`
	Extra           map[string]any `json:"-"`
}

// AdminSetupInput is the payload of POST /admin/register-admin. The setup
// secret is checked by the backend only.
type AdminSetupInput struct {
	Name            string `json:"name"      validate:"required"`
	Email           string `json:"email"     validate:"required,email"`
	Password        string `json:"password"  validate:"required,min=6"`
	ConfirmPassword string `json:"-"         validate:"required,eqfield=Password"`
	SecretKey       string `json:"secretKey" validate:"required"`
}

// AuthClient is the backend auth surface. Every implementation classifies its
// failures as *domain.APIError.
type AuthClient interface {
	Login(ctx context.Context, email, password string) (*domain.Session, error)
	Register(ctx context.Context, in RegisterInput) (*domain.Session, error)
	FetchProfile(ctx context.Context) (*domain.User, error)
	UpdateProfile(ctx context.Context, fields map[string]any) (*domain.User, error)
	Logout(ctx context.Context) error
	ForgotPassword(ctx context.Context, email string) error
	VerifyResetToken(ctx context.Context, token string) error
	ResetPassword(ctx context.Context, token, password string) error
	AdminExists(ctx context.Context) (bool, error)
	RegisterAdmin(ctx context.Context, in AdminSetupInput) (*domain.Session, error)
}

// OrderSource feeds dashboard aggregation.
type OrderSource interface {
	ListOrders(ctx context.Context, params map[string]string) ([]domain.Order, error)
}

type tokenKey struct{}

// WithToken pins the bearer token for calls made with ctx, overriding the
// client's token source. It lets a logout notification carry the token the
// auth context has already forgotten.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token pinned by WithToken.
func TokenFrom(ctx context.Context) (string, bool) {
	tok, ok := ctx.Value(tokenKey{}).(string)
	return tok, ok
}
