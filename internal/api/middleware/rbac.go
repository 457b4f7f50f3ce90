package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/api/metrics"
	"github.com/laundrypro/portal/internal/core/guard"
)

// PendingResponse is served while the session is still being resolved.
type PendingResponse struct {
	Status string `json:"status"`
	Path   string `json:"path"`
}

// RBAC enforces a guard chain on a route subtree. It never performs I/O: the
// decision comes from the snapshot injected by Auth.
func RBAC(chain guard.Chain) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			target := c.Request().URL.RequestURI()
			d := chain.Evaluate(StateFrom(c), target)
			metrics.GuardDecisionsTotal.WithLabelValues(string(d.Guard), string(d.Action)).Inc()

			switch d.Action {
			case guard.Pending:
				c.Response().Header().Set("Retry-After", "1")
				return c.JSON(http.StatusAccepted, PendingResponse{Status: "pending", Path: c.Request().URL.Path})
			case guard.Redirect:
				return c.Redirect(http.StatusFound, d.Location)
			default:
				return next(c)
			}
		}
	}
}
