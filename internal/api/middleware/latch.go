package middleware

import (
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/guard"
)

// LoginLatch sends the first page navigation after a forced sign-out to the
// login page, once.
type LoginLatch struct {
	armed atomic.Bool
}

// Arm sets the latch.
func (l *LoginLatch) Arm() { l.armed.Store(true) }

// Armed reports whether the next navigation will be redirected.
func (l *LoginLatch) Armed() bool { return l.armed.Load() }

// OnAuthEvent arms the latch on forced sign-outs. It matches the auth
// context's subscriber signature.
func (l *LoginLatch) OnAuthEvent(ev domain.AuthEvent) {
	if ev.Kind == domain.EventForcedSignOut {
		l.Arm()
	}
}

// Middleware applies the latch to page navigations. API, health, metrics and
// docs requests pass through untouched.
func (l *LoginLatch) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Request().URL.Path
			if c.Request().Method != http.MethodGet || !isPage(path) || !l.armed.Load() {
				return next(c)
			}
			if !l.armed.CompareAndSwap(true, false) || path == guard.LoginPath {
				return next(c)
			}
			return c.Redirect(http.StatusFound, guard.LoginPath)
		}
	}
}

func isPage(path string) bool {
	for _, prefix := range []string{"/api/", "/health", "/metrics", "/swagger"} {
		if strings.HasPrefix(path, prefix) {
			return false
		}
	}
	return true
}
