package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/api/middleware"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

type stubSession struct {
	state   domain.AuthState
	loginFn func(ctx context.Context, email, password string) (*domain.User, error)
	regFn   func(ctx context.Context, in ports.RegisterInput) (*domain.User, error)
	logouts int
}

func (s *stubSession) State() domain.AuthState { return s.state }
func (s *stubSession) Bootstrap(context.Context) domain.AuthState {
	return s.state
}

func (s *stubSession) Login(ctx context.Context, email, password string) (*domain.User, error) {
	return s.loginFn(ctx, email, password)
}

func (s *stubSession) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	return s.regFn(ctx, in)
}

func (s *stubSession) SetupAdmin(context.Context, ports.AdminSetupInput) (*domain.User, error) {
	return nil, &domain.APIError{Kind: domain.KindConflict, Status: 409, Reason: domain.ReasonAdminExists}
}

func (s *stubSession) AdminExists(context.Context) (bool, error) { return true, nil }

func (s *stubSession) Logout(context.Context) error {
	s.logouts++
	s.state = domain.AuthState{Phase: domain.PhaseAnonymous}
	return nil
}

func (s *stubSession) RefreshProfile(context.Context) (*domain.User, error) {
	return s.state.User, nil
}

func (s *stubSession) UpdateProfile(_ context.Context, fields map[string]any) (*domain.User, error) {
	if s.state.User == nil {
		return nil, domain.ErrNoSession
	}
	u := s.state.User.Clone()
	if name, ok := fields["name"].(string); ok {
		u.Name = name
	}
	return u, nil
}

func (s *stubSession) ForgotPassword(context.Context, string) error { return nil }

func (s *stubSession) VerifyResetToken(_ context.Context, token string) error {
	if token != "good" {
		return &domain.APIError{Kind: domain.KindNotFound, Status: 404}
	}
	return nil
}

func (s *stubSession) ResetPassword(context.Context, string, string) error { return nil }

func anonymous() *stubSession {
	return &stubSession{state: domain.AuthState{Phase: domain.PhaseAnonymous}}
}

func signedIn(role domain.Role) *stubSession {
	return &stubSession{state: domain.AuthState{
		Phase: domain.PhaseAuthenticated,
		User:  &domain.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: role},
	}}
}

func newTestRouter(s *stubSession, latch *middleware.LoginLatch) http.Handler {
	return NewRouter(Deps{Session: s, Latch: latch, Log: zerolog.Nop(), Metrics: prometheus.NewRegistry()})
}

func serve(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_AnonymousRedirectsToLogin(t *testing.T) {
	h := newTestRouter(anonymous(), nil)

	for _, path := range []string{"/admin/dashboard", "/employee/orders", "/supplier/inventory", "/customer/support", "/profile", "/admin/nowhere"} {
		rec := serve(h, http.MethodGet, path, "")
		if rec.Code != http.StatusFound {
			t.Fatalf("%s: expected 302, got %d", path, rec.Code)
		}
		loc := rec.Header().Get("Location")
		if !strings.HasPrefix(loc, "/login?next=") {
			t.Fatalf("%s: expected login redirect, got %q", path, loc)
		}
	}
}

func TestRouter_PendingWhileLoading(t *testing.T) {
	s := &stubSession{state: domain.AuthState{
		Phase:       domain.PhaseBootstrapping,
		Loading:     true,
		Provisional: &domain.User{ID: "u1", Role: domain.RoleAdmin},
	}}
	h := newTestRouter(s, nil)

	rec := serve(h, http.MethodGet, "/admin/dashboard", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Fatalf("expected Retry-After header")
	}
	var body middleware.PendingResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if body.Status != "pending" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestRouter_RoleMismatchGoesHome(t *testing.T) {
	h := newTestRouter(signedIn(domain.RoleCustomer), nil)

	rec := serve(h, http.MethodGet, "/admin/dashboard", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect home, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestRouter_RendersPageWithParams(t *testing.T) {
	h := newTestRouter(signedIn(domain.RoleAdmin), nil)

	rec := serve(h, http.MethodGet, "/admin/employees/edit/42", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var view map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if view["page"] != "admin-employees-edit" || view["layout"] != "dashboard" {
		t.Fatalf("unexpected view: %+v", view)
	}
	params, _ := view["params"].(map[string]any)
	if params["id"] != "42" {
		t.Fatalf("expected id param, got %+v", view["params"])
	}
}

func TestRouter_EmployeeSubtreeAdmitsAdmin(t *testing.T) {
	h := newTestRouter(signedIn(domain.RoleAdmin), nil)

	rec := serve(h, http.MethodGet, "/employee/orders/7", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRouter_SubtreeIndexAndUnknownRedirectToDashboard(t *testing.T) {
	h := newTestRouter(signedIn(domain.RoleSupplier), nil)

	for _, path := range []string{"/supplier", "/supplier/", "/supplier/does/not/exist"} {
		rec := serve(h, http.MethodGet, path, "")
		if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/supplier/dashboard" {
			t.Fatalf("%s: expected redirect to dashboard, got %d %q", path, rec.Code, rec.Header().Get("Location"))
		}
	}
}

func TestRouter_UnknownPathIsNotFound(t *testing.T) {
	h := newTestRouter(anonymous(), nil)

	rec := serve(h, http.MethodGet, "/no-such-page", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"not-found"`) {
		t.Fatalf("expected not-found view, got %s", rec.Body.String())
	}
}

func TestRouter_LoginRedirectsToNextOrHome(t *testing.T) {
	s := anonymous()
	s.loginFn = func(ctx context.Context, email, password string) (*domain.User, error) {
		return &domain.User{ID: "u1", Email: email, Role: domain.RoleEmployee}, nil
	}
	h := newTestRouter(s, nil)

	cases := []struct{ body, want string }{
		{`{"email":"e@example.com","password":"secret1","next":"/employee/tasks"}`, "/employee/tasks"},
		{`{"email":"e@example.com","password":"secret1"}`, "/employee/dashboard"},
		{`{"email":"e@example.com","password":"secret1","next":"//evil.example"}`, "/employee/dashboard"},
	}
	for _, tc := range cases {
		rec := serve(h, http.MethodPost, "/login", tc.body)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Redirect string `json:"redirect"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid json: %v", err)
		}
		if resp.Redirect != tc.want {
			t.Fatalf("body %s: expected %q, got %q", tc.body, tc.want, resp.Redirect)
		}
	}
}

func TestRouter_InvalidCredentials(t *testing.T) {
	s := anonymous()
	s.loginFn = func(context.Context, string, string) (*domain.User, error) {
		return nil, &domain.APIError{Kind: domain.KindInvalidCredentials, Status: 401}
	}
	h := newTestRouter(s, nil)

	rec := serve(h, http.MethodPost, "/login", `{"email":"e@example.com","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_AdminSetupConflictHintsLogin(t *testing.T) {
	h := newTestRouter(anonymous(), nil)

	rec := serve(h, http.MethodPost, "/setup-admin", `{"name":"A","email":"a@example.com","password":"secret1","confirmPassword":"secret1","secretKey":"k"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["action"] != "login" || resp["kind"] != "conflict" {
		t.Fatalf("unexpected body: %+v", resp)
	}
}

func TestRouter_ValidationErrorCarriesFields(t *testing.T) {
	s := anonymous()
	s.regFn = func(context.Context, ports.RegisterInput) (*domain.User, error) {
		return nil, &domain.APIError{Kind: domain.KindValidation, Status: 422, Fields: map[string]string{"email": "email is taken"}}
	}
	h := newTestRouter(s, nil)

	rec := serve(h, http.MethodPost, "/register", `{"name":"B","email":"b@example.com","password":"secret1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "email is taken") {
		t.Fatalf("expected field message, got %s", rec.Body.String())
	}
}

func TestRouter_NetworkErrorIsRetryable(t *testing.T) {
	s := anonymous()
	s.loginFn = func(context.Context, string, string) (*domain.User, error) {
		return nil, &domain.APIError{Kind: domain.KindTimeout}
	}
	h := newTestRouter(s, nil)

	rec := serve(h, http.MethodPost, "/login", `{"email":"e@example.com","password":"secret1"}`)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"retryable":true`) {
		t.Fatalf("expected retryable flag, got %s", rec.Body.String())
	}
}

func TestRouter_ProfileUpdateWithoutSessionGoesToLogin(t *testing.T) {
	h := newTestRouter(anonymous(), nil)

	rec := serve(h, http.MethodPut, "/profile", `{"name":"X"}`)
	if rec.Code != http.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
}

func TestRouter_ForcedLoginLatch(t *testing.T) {
	latch := &middleware.LoginLatch{}
	h := newTestRouter(signedIn(domain.RoleCustomer), latch)

	latch.OnAuthEvent(domain.AuthEvent{Kind: domain.EventForcedSignOut})

	// API calls do not consume the latch.
	if rec := serve(h, http.MethodGet, "/api/session", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from session api, got %d", rec.Code)
	}

	rec := serve(h, http.MethodGet, "/customer/orders", "")
	if rec.Code != http.StatusFound || rec.Header().Get("Location") != "/login" {
		t.Fatalf("expected one forced login redirect, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = serve(h, http.MethodGet, "/customer/orders", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected latch to fire once, got %d", rec.Code)
	}
}

func TestRouter_ResetPasswordVerifiesToken(t *testing.T) {
	h := newTestRouter(anonymous(), nil)

	if rec := serve(h, http.MethodGet, "/reset-password/good", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/reset-password/bad", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	rec := serve(h, http.MethodPost, "/reset-password/good", `{"password":"secret1","confirmPassword":"other1"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 on mismatch, got %d", rec.Code)
	}
}

func TestRouter_HealthAndSession(t *testing.T) {
	h := newTestRouter(signedIn(domain.RoleManager), nil)

	if rec := serve(h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := serve(h, http.MethodGet, "/health/ready", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with no checks, got %d", rec.Code)
	}

	rec := serve(h, http.MethodGet, "/api/session", "")
	var resp struct {
		Phase string `json:"phase"`
		Home  string `json:"home"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Phase != "authenticated" || resp.Home != "/employee/dashboard" {
		t.Fatalf("unexpected session: %+v", resp)
	}
}

func TestPageName(t *testing.T) {
	cases := []struct{ role, route, want string }{
		{"admin", "dashboard", "admin-dashboard"},
		{"admin", "employees/edit/:id", "admin-employees-edit"},
		{"admin", "employees/:id", "admin-employees-detail"},
		{"customer", "orders/:orderId", "customer-orders-detail"},
		{"employee", "manage-orders", "employee-manage-orders"},
	}
	for _, tc := range cases {
		if got := pageName(tc.role, tc.route); got != tc.want {
			t.Fatalf("pageName(%q, %q) = %q, want %q", tc.role, tc.route, got, tc.want)
		}
	}
}
