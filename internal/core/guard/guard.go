// Package guard decides, for one navigation, whether a page is rendered, held
// behind a pending placeholder, or redirected. Decisions are pure functions of
// an auth snapshot and the target path; nothing here performs I/O.
package guard

import (
	"net/url"
	"strings"

	"github.com/laundrypro/portal/internal/core/domain"
)

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// Guard names a gate on a route subtree.
type Guard string

const (
	Protected Guard = "protected"
	Admin     Guard = "admin"
	Employee  Guard = "employee"
	Supplier  Guard = "supplier"
	Customer  Guard = "customer"
)

// Action is the outcome of a guard evaluation.
type Action string

const (
	Render   Action = "render"
	Pending  Action = "pending"
	Redirect Action = "redirect"
)

// Decision is what the router does with a navigation.
type Decision struct {
	Action   Action
	Location string
	// Guard is the gate that produced the decision.
	Guard Guard
}

// Allowed reports whether the user's role satisfies a role guard. Protected
// admits any authenticated user.
func (g Guard) Allowed(s domain.AuthState) bool {
	switch g {
	case Protected:
		return s.User != nil
	case Admin:
		return s.IsAdmin()
	case Employee:
		return s.IsEmployee()
	case Supplier:
		return s.IsSupplier()
	case Customer:
		return s.IsCustomer()
	default:
		return false
	}
}

// Evaluate runs a single guard.
//
//   - loading: Pending, never a redirect.
//   - no user: redirect to the login page with the requested path preserved.
//   - wrong role: redirect home, never to login.
func Evaluate(g Guard, s domain.AuthState, path string) Decision {
	if s.Loading {
		return Decision{Action: Pending, Guard: g}
	}
	if s.User == nil {
		return Decision{Action: Redirect, Location: LoginLocation(path), Guard: g}
	}
	if !g.Allowed(s) {
		return Decision{Action: Redirect, Location: HomePath, Guard: g}
	}
	return Decision{Action: Render, Guard: g}
}

// Chain is an ordered list of guards. The existence check always runs first.
type Chain []Guard

// For builds the chain protecting a role subtree: Protected, then role.
func For(role Guard) Chain {
	if role == Protected || role == "" {
		return Chain{Protected}
	}
	return Chain{Protected, role}
}

// Evaluate returns the first non-render decision, or Render.
func (c Chain) Evaluate(s domain.AuthState, path string) Decision {
	last := Decision{Action: Render, Guard: Protected}
	for _, g := range c {
		d := Evaluate(g, s, path)
		if d.Action != Render {
			return d
		}
		last = d
	}
	return last
}

// LoginLocation is the login URL that returns the user to path afterwards.
func LoginLocation(path string) string {
	next := SafeNext(path)
	if next == "" || next == HomePath || next == LoginPath {
		return LoginPath
	}
	return LoginPath + "?next=" + url.QueryEscape(next)
}

// SafeNext keeps only local absolute paths so a next parameter cannot send
// the user off-site.
func SafeNext(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return ""
	}
	return p
}

// Subtrees maps each guarded path prefix to the gate protecting it.
var Subtrees = map[string]Guard{
	"/admin":    Admin,
	"/employee": Employee,
	"/supplier": Supplier,
	"/customer": Customer,
	"/profile":  Protected,
}

// ForPath returns the chain guarding path, or nil for a public path.
func ForPath(path string) Chain {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	for prefix, g := range Subtrees {
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return For(g)
		}
	}
	return nil
}
