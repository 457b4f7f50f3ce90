package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/core/domain"
)

// Layouts wrapping the pages of each subtree.
const (
	LayoutMain      = "main"
	LayoutDashboard = "dashboard"
	LayoutSupplier  = "supplier"
	LayoutCustomer  = "customer"
)

// View is the JSON descriptor of a rendered page.
type View struct {
	Page   string            `json:"page"`
	Layout string            `json:"layout"`
	Path   string            `json:"path"`
	Params map[string]string `json:"params,omitempty"`
	User   *domain.User      `json:"user,omitempty"`
	Data   any               `json:"data,omitempty"`
}

// DashboardSource serves the latest order summary.
type DashboardSource interface {
	Snapshot() (*domain.DashboardStats, error)
}

type dashboardData struct {
	Stats *domain.DashboardStats `json:"stats"`
	Error string                 `json:"error,omitempty"`
}

type PageHandler struct {
	dashboard DashboardSource
}

func NewPageHandler(dashboard DashboardSource) *PageHandler {
	return &PageHandler{dashboard: dashboard}
}

func (h *PageHandler) view(c echo.Context, page, layout string, data any) View {
	return View{
		Page:   page,
		Layout: layout,
		Path:   c.Request().URL.Path,
		Params: ctxParams(c),
		User:   ctxUser(c),
		Data:   data,
	}
}

// Page renders a page without data of its own.
func (h *PageHandler) Page(page, layout string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, h.view(c, page, layout, nil))
	}
}

// Dashboard renders a role dashboard with the latest order summary.
func (h *PageHandler) Dashboard(page, layout string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var data dashboardData
		if h.dashboard != nil {
			stats, err := h.dashboard.Snapshot()
			data.Stats = stats
			if apiErr, ok := domain.AsAPIError(err); ok {
				data.Error = apiErr.UserMessage()
			}
		}
		return c.JSON(http.StatusOK, h.view(c, page, layout, data))
	}
}

// Home is the public landing page.
func (h *PageHandler) Home(c echo.Context) error {
	return c.JSON(http.StatusOK, h.view(c, "home", LayoutMain, nil))
}

// NotFound renders the not-found page for paths outside every subtree.
func (h *PageHandler) NotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, h.view(c, "not-found", LayoutMain, nil))
}

// RedirectTo answers every request with a redirect to location.
func RedirectTo(location string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.Redirect(http.StatusFound, location)
	}
}
