package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/api/middleware"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/guard"
)

// ctxUser is the authenticated user of the request, or nil. A provisional
// user shown while loading is never returned.
func ctxUser(c echo.Context) *domain.User {
	s := middleware.StateFrom(c)
	if !s.Authenticated() {
		return nil
	}
	return s.User
}

// ctxParams collects the route parameters of the matched path.
func ctxParams(c echo.Context) map[string]string {
	names := c.ParamNames()
	if len(names) == 0 {
		return nil
	}
	values := c.ParamValues()
	out := make(map[string]string, len(names))
	for i, n := range names {
		if n == "*" || i >= len(values) {
			continue
		}
		out[n] = values[i]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// landing is where a user goes after signing in: next when it is a safe
// local path other than the login page, the role's dashboard otherwise.
func landing(u *domain.User, next string) string {
	next = guard.SafeNext(next)
	if next != "" && next != guard.LoginPath && next != guard.HomePath {
		return next
	}
	if u == nil {
		return guard.HomePath
	}
	return u.Role.HomePath()
}
