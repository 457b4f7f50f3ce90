package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/core/domain"
)

const stateKey = "auth_state"

// StateSource supplies the auth snapshot a request is decided on.
type StateSource interface {
	State() domain.AuthState
}

// Auth takes one auth snapshot per request and injects it into the context,
// so every guard and handler of the request sees the same state.
func Auth(src StateSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(stateKey, src.State())
			return next(c)
		}
	}
}

// StateFrom returns the snapshot injected by Auth. Without it the request is
// treated as anonymous.
func StateFrom(c echo.Context) domain.AuthState {
	if s, ok := c.Get(stateKey).(domain.AuthState); ok {
		return s
	}
	return domain.AuthState{Phase: domain.PhaseAnonymous}
}
