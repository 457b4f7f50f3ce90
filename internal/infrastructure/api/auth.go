package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
	"github.com/laundrypro/portal/internal/pkg/validation"
)

var _ ports.AuthClient = (*Client)(nil)

// Login exchanges credentials for a session. A 401 or 403 means the
// credentials were wrong.
func (c *Client) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return nil, err
	}
	if err := validation.Var("password", password, "required"); err != nil {
		return nil, err
	}

	raw, err := c.do(ctx, call{
		endpoint: "login",
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     map[string]string{"email": email, "password": password},
		entry:    true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrForbidden) {
			apiErr, _ := domain.AsAPIError(err)
			return nil, &domain.APIError{
				Kind:    domain.KindInvalidCredentials,
				Status:  apiErr.Status,
				Message: "invalid email or password",
				Err:     err,
			}
		}
		return nil, err
	}

	s := decodeSession(raw)
	if !s.Valid() {
		return nil, malformed("login", nil)
	}
	return s, nil
}

// Register creates an account and returns the session issued for it.
func (c *Client) Register(ctx context.Context, in ports.RegisterInput) (*domain.Session, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	body := make(map[string]any, len(in.Extra)+5)
	for k, v := range in.Extra {
		body[k] = v
	}
	body["name"] = in.Name
	body["email"] = in.Email
	body["password"] = in.Password
	if in.Role != domain.RoleUnknown {
		body["role"] = in.Role
	}
	if in.Phone != "" {
		body["phone"] = in.Phone
	}

	raw, err := c.do(ctx, call{
		endpoint: "register",
		method:   http.MethodPost,
		path:     "/auth/register",
		body:     body,
		entry:    true,
	})
	if err != nil {
		return nil, err
	}

	s := decodeSession(raw)
	if !s.Valid() {
		return nil, malformed("register", nil)
	}
	return s, nil
}

// FetchProfile returns the user the current token belongs to.
func (c *Client) FetchProfile(ctx context.Context) (*domain.User, error) {
	raw, err := c.do(ctx, call{
		endpoint: "profile",
		method:   http.MethodGet,
		path:     "/auth/profile",
		timeout:  profileTimeout,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser("profile", raw)
}

// UpdateProfile sends the changed fields and returns the updated user.
func (c *Client) UpdateProfile(ctx context.Context, fields map[string]any) (*domain.User, error) {
	raw, err := c.do(ctx, call{
		endpoint: "update_profile",
		method:   http.MethodPut,
		path:     "/auth/profile",
		body:     fields,
		timeout:  profileTimeout,
	})
	if err != nil {
		return nil, err
	}
	return decodeUser("update_profile", raw)
}

// Logout notifies the backend. Backends without a logout route answer 404 or
// 405, which counts as done. A 401 here means the token is already dead and is
// not signalled.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, call{
		endpoint: "logout",
		method:   http.MethodPost,
		path:     "/auth/logout",
		entry:    true,
	})
	if apiErr, ok := domain.AsAPIError(err); ok &&
		(apiErr.Status == http.StatusNotFound || apiErr.Status == http.StatusMethodNotAllowed) {
		return nil
	}
	return err
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	if err := validation.Var("email", email, "required,email"); err != nil {
		return err
	}
	_, err := c.do(ctx, call{
		endpoint: "forgot_password",
		method:   http.MethodPost,
		path:     "/auth/forgot-password",
		body:     map[string]string{"email": email},
		entry:    true,
	})
	return err
}

func (c *Client) VerifyResetToken(ctx context.Context, token string) error {
	if err := validation.Var("token", token, "required"); err != nil {
		return err
	}
	_, err := c.do(ctx, call{
		endpoint: "verify_reset_token",
		method:   http.MethodGet,
		path:     "/auth/reset-password/" + url.PathEscape(token),
		entry:    true,
	})
	return err
}

func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	if err := validation.Var("token", token, "required"); err != nil {
		return err
	}
	if err := validation.Var("password", password, "required,min=6"); err != nil {
		return err
	}
	_, err := c.do(ctx, call{
		endpoint: "reset_password",
		method:   http.MethodPost,
		path:     "/auth/reset-password",
		body:     map[string]string{"token": token, "password": password},
		entry:    true,
	})
	return err
}

// AdminExists reports whether the one admin account has been created. A
// backend without the route (404) has no admin.
func (c *Client) AdminExists(ctx context.Context) (bool, error) {
	raw, err := c.do(ctx, call{
		endpoint: "admin_exists",
		method:   http.MethodGet,
		path:     "/admin/admin-exists",
		timeout:  adminExistsTimeout,
		entry:    true,
	})
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var body struct {
		AdminExists *bool `json:"adminExists"`
		Exists      *bool `json:"exists"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return false, malformed("admin_exists", err)
	}
	switch {
	case body.AdminExists != nil:
		return *body.AdminExists, nil
	case body.Exists != nil:
		return *body.Exists, nil
	}
	return false, malformed("admin_exists", nil)
}

// RegisterAdmin creates the admin account. The returned session is nil when
// the backend created the account without issuing a token; callers then log
// in with the submitted credentials.
func (c *Client) RegisterAdmin(ctx context.Context, in ports.AdminSetupInput) (*domain.Session, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	raw, err := c.do(ctx, call{
		endpoint: "register_admin",
		method:   http.MethodPost,
		path:     "/admin/register-admin",
		body:     in,
		timeout:  registerAdminTimeout,
		entry:    true,
	})
	if err != nil {
		return nil, err
	}
	if s := decodeSession(raw); s.Valid() {
		return s, nil
	}
	return nil, nil
}

// decodeSession reads {token, user}. A token next to flat user fields is
// accepted too.
func decodeSession(raw json.RawMessage) *domain.Session {
	var body struct {
		Token string       `json:"token"`
		User  *domain.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	s := &domain.Session{Token: body.Token, User: body.User}
	if s.User == nil && s.Token != "" {
		var u domain.User
		if json.Unmarshal(raw, &u) == nil && (u.ID != "" || u.Email != "") {
			delete(u.Extra, "token")
			s.User = &u
		}
	}
	return s
}

// decodeUser accepts {user: {...}}, {data: {...}} and a bare user object.
func decodeUser(endpoint string, raw json.RawMessage) (*domain.User, error) {
	var wrapped map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, malformed(endpoint, err)
	}
	target := raw
	if v, ok := wrapped["user"]; ok {
		target = v
	} else if v, ok := wrapped["data"]; ok {
		target = v
	}

	var u domain.User
	if err := json.Unmarshal(target, &u); err != nil {
		return nil, malformed(endpoint, err)
	}
	if u.ID == "" && u.Email == "" {
		return nil, malformed(endpoint, nil)
	}
	return &u, nil
}
