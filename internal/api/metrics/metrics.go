// Package metrics defines and registers the custom Prometheus metrics of the
// LaundryPro portal. It is the single source of truth for metric names,
// labels, and help strings. Metrics register with the default registry on
// package load through promauto.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "portal"

// ── Session metrics ───────────────────────────────────────────────────────────

// AuthTransitionsTotal counts auth state machine transitions.
// Labels:
//   - to: the phase entered ("authenticated", "anonymous")
//   - cause: what triggered it (e.g. "login", "logout", "forced_sign_out", "bootstrap")
var AuthTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "auth_transitions_total",
		Help:      "Total number of auth state transitions, by target phase and cause.",
	},
	[]string{"to", "cause"},
)

// UnauthorizedSignalsTotal counts 401 responses that forced a sign-out.
var UnauthorizedSignalsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unauthorized_signals_total",
		Help:      "Total number of 401 responses that triggered a forced sign-out.",
	},
)

// ── Routing metrics ───────────────────────────────────────────────────────────

// GuardDecisionsTotal counts route guard outcomes.
// Labels:
//   - guard: the gate that decided ("protected", "admin", "employee", ...)
//   - action: "render", "pending" or "redirect"
var GuardDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "guard_decisions_total",
		Help:      "Total number of route guard decisions, by guard and action.",
	},
	[]string{"guard", "action"},
)

// ── Backend metrics ───────────────────────────────────────────────────────────

// BackendRequestsTotal counts calls made through the API client.
// Labels:
//   - endpoint: logical operation (e.g. "login", "profile", "orders")
//   - outcome: "ok" or the error kind ("network", "timeout", "unauthorized", ...)
var BackendRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "backend_requests_total",
		Help:      "Total number of backend API calls, by endpoint and outcome.",
	},
	[]string{"endpoint", "outcome"},
)

// BackendRequestDuration measures backend call latency.
// Label:
//   - endpoint: logical operation
var BackendRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "backend_request_duration_seconds",
		Help:      "Duration of backend API calls, including classification.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"endpoint"},
)

// ── Dashboard metrics ─────────────────────────────────────────────────────────

// DashboardRefreshTotal counts dashboard poller refreshes.
// Label:
//   - result: "ok", "error" or "skipped" (not authenticated)
var DashboardRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dashboard_refresh_total",
		Help:      "Total number of dashboard refresh attempts, by result.",
	},
	[]string{"result"},
)
