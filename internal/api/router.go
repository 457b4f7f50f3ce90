package api

import (
	"strings"
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/laundrypro/portal/docs"
	"github.com/laundrypro/portal/internal/api/handler"
	"github.com/laundrypro/portal/internal/api/middleware"
	"github.com/laundrypro/portal/internal/core/guard"
	"github.com/laundrypro/portal/internal/core/ports"
	"github.com/laundrypro/portal/internal/pkg/validation"
)

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Session   ports.SessionService
	Dashboard handler.DashboardSource
	Latch     *middleware.LoginLatch
	Checks    map[string]handler.Check
	Log       zerolog.Logger
	// Metrics receives the HTTP collectors and serves /metrics. Nil means
	// the default Prometheus registry.
	Metrics *prometheus.Registry
}

// subtree is a guarded role area of the portal.
type subtree struct {
	prefix string
	guard  guard.Guard
	layout string
	pages  []string
}

var subtrees = []subtree{
	{
		prefix: "/admin",
		guard:  guard.Admin,
		layout: handler.LayoutDashboard,
		pages: []string{
			"dashboard", "employees", "employees/add", "employees/edit/:id", "employees/:id",
			"customers", "suppliers", "suppliers/add", "suppliers/:id", "suppliers/edit/:id",
			"orders", "orders/new", "orders/:orderId",
			"purchase-orders", "purchase-orders/new", "purchase-orders/:orderId",
			"inventory", "invoices", "payments", "settings",
		},
	},
	{
		prefix: "/employee",
		guard:  guard.Employee,
		layout: handler.LayoutDashboard,
		pages: []string{
			"dashboard", "profile/:id", "orders", "orders/new", "orders/:orderId", "manage-orders",
			"customers", "customers/add", "customers/edit/:id", "customers/:id",
			"schedule", "tasks", "reports", "messages",
		},
	},
	{
		prefix: "/supplier",
		guard:  guard.Supplier,
		layout: handler.LayoutSupplier,
		pages:  []string{"dashboard", "orders", "orders/:orderId", "inventory", "payments", "settings"},
	},
	{
		prefix: "/customer",
		guard:  guard.Customer,
		layout: handler.LayoutCustomer,
		pages:  []string{"dashboard", "orders", "orders/new", "orders/:orderId", "payment-history", "support"},
	},
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.Echo{}
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log)

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if d.Metrics != nil {
		registerer, gatherer = d.Metrics, d.Metrics
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(requestLogger(d.Log))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Subsystem:  "portal",
		Registerer: registerer,
	}))
	e.Use(middleware.Auth(d.Session))
	if d.Latch != nil {
		e.Use(d.Latch.Middleware())
	}

	// --- Dependencies ---
	auth := handler.NewAuthHandler(d.Session)
	pages := handler.NewPageHandler(d.Dashboard)

	// --- Public routes ---
	e.GET("/", pages.Home)
	e.GET("/login", auth.LoginView)
	e.POST("/login", auth.Login)
	e.GET("/register", auth.RegisterView)
	e.POST("/register", auth.Register)
	e.GET("/forgot-password", auth.ForgotPasswordView)
	e.POST("/forgot-password", auth.ForgotPassword)
	e.GET("/reset-password/:token", auth.ResetPasswordView)
	e.POST("/reset-password/:token", auth.ResetPassword)
	e.GET("/setup-admin", auth.SetupAdminView)
	e.POST("/setup-admin", auth.SetupAdmin)
	e.POST("/logout", auth.Logout)

	// --- Protected routes ---
	profile := e.Group("/profile", middleware.RBAC(guard.For(guard.Protected)))
	profile.GET("", pages.Page("profile", handler.LayoutMain))
	profile.PUT("", auth.UpdateProfile)

	// --- Role subtrees ---
	for _, t := range subtrees {
		registerSubtree(e, pages, t)
	}

	// --- JSON API, probes and docs ---
	e.GET("/api/session", auth.Session)

	healthHandler := handler.NewHealthHandler()
	readyHandler := handler.NewReadinessHandler(d.Checks)
	e.GET("/health", healthHandler.Liveness)       // liveness  – is the process alive?
	e.GET("/health/ready", readyHandler.Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{Gatherer: gatherer}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	e.RouteNotFound("/*", pages.NotFound)

	return e
}

func registerSubtree(e *echo.Echo, pages *handler.PageHandler, t subtree) {
	g := e.Group(t.prefix, middleware.RBAC(guard.For(t.guard)))
	home := t.prefix + "/dashboard"
	role := strings.TrimPrefix(t.prefix, "/")

	for _, p := range t.pages {
		name := pageName(role, p)
		if p == "dashboard" {
			g.GET("/"+p, pages.Dashboard(name, t.layout))
			continue
		}
		g.GET("/"+p, pages.Page(name, t.layout))
	}

	g.GET("", handler.RedirectTo(home))
	g.GET("/", handler.RedirectTo(home))
	g.RouteNotFound("/*", handler.RedirectTo(home))
}

// pageName derives a page identifier from a route: "employees/edit/:id"
// under admin becomes "admin-employees-edit".
func pageName(role, route string) string {
	parts := []string{role}
	for _, seg := range strings.Split(route, "/") {
		if seg == "" || strings.HasPrefix(seg, ":") {
			continue
		}
		parts = append(parts, seg)
	}
	name := strings.Join(parts, "-")
	if strings.HasSuffix(route, ":id") || strings.HasSuffix(route, ":orderId") {
		if !strings.Contains(route, "edit/") {
			name += "-detail"
		}
	}
	return name
}

// requestLogger writes one structured line per request.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			ev := log.Info()
			if v.Status >= 500 {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency.Round(time.Microsecond)).
				Str("request_id", v.RequestID).
				Msg("request")
			return nil
		},
	})
}
