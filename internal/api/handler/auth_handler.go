package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/guard"
	"github.com/laundrypro/portal/internal/core/ports"
)

type AuthHandler struct {
	session ports.SessionService
}

func NewAuthHandler(session ports.SessionService) *AuthHandler {
	return &AuthHandler{session: session}
}

type loginRequest struct {
	Email    string `json:"email"    form:"email"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next"     form:"next"`
}

type adminSetupRequest struct {
	Name            string `json:"name"            form:"name"`
	Email           string `json:"email"           form:"email"`
	Password        string `json:"password"        form:"password"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword"`
	SecretKey       string `json:"secretKey"       form:"secretKey"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" form:"email"`
}

type resetPasswordRequest struct {
	Password        string `json:"password"        form:"password"        validate:"required,min=6"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required,eqfield=Password"`
}

// authResponse is returned by every flow that ends signed in.
type authResponse struct {
	User     *domain.User `json:"user,omitempty"`
	Redirect string       `json:"redirect"`
}

type messageResponse struct {
	Message  string `json:"message"`
	Redirect string `json:"redirect,omitempty"`
}

type sessionResponse struct {
	Phase   domain.Phase `json:"phase"`
	Loading bool         `json:"loading"`
	User    *domain.User `json:"user,omitempty"`
	Home    string       `json:"home"`
}

// Session reports the current auth state.
//
// @Summary      Current session
// @Tags         session
// @Produce      json
// @Success      200  {object}  sessionResponse
// @Router       /api/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	s := h.session.State()
	resp := sessionResponse{Phase: s.Phase, Loading: s.Loading, Home: guard.HomePath}
	if s.Authenticated() {
		resp.User = s.User
		resp.Home = s.User.Role.HomePath()
	}
	return c.JSON(http.StatusOK, resp)
}

// LoginView renders the login page. Signed-in users go straight on.
func (h *AuthHandler) LoginView(c echo.Context) error {
	next := c.QueryParam("next")
	if u := ctxUser(c); u != nil {
		return c.Redirect(http.StatusFound, landing(u, next))
	}
	return c.JSON(http.StatusOK, View{
		Page:   "login",
		Layout: LayoutMain,
		Path:   c.Request().URL.Path,
		Data:   map[string]string{"next": guard.SafeNext(next)},
	})
}

// Login signs in and returns where to go next.
//
// @Summary      Sign in
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials and optional next path"
// @Success      200   {object}  authResponse
// @Failure      401   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Failure      503   {object}  ErrorResponse
// @Router       /login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Next == "" {
		req.Next = c.QueryParam("next")
	}

	user, err := h.session.Login(c.Request().Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, authResponse{User: user, Redirect: landing(user, req.Next)})
}

func (h *AuthHandler) RegisterView(c echo.Context) error {
	if u := ctxUser(c); u != nil {
		return c.Redirect(http.StatusFound, u.Role.HomePath())
	}
	return c.JSON(http.StatusOK, View{Page: "register", Layout: LayoutMain, Path: c.Request().URL.Path})
}

// Register creates an account and signs in with it. Fields beyond the
// common ones are forwarded to the backend as given.
//
// @Summary      Register
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      map[string]any  true  "name, email, password, confirmPassword, role and role-specific fields"
// @Success      201   {object}  authResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	body := map[string]any{}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	in := ports.RegisterInput{
		Name:            takeString(body, "name"),
		Email:           strings.TrimSpace(takeString(body, "email")),
		Password:        takeString(body, "password"),
		ConfirmPassword: takeString(body, "confirmPassword"),
		Role:            domain.ParseRole(takeString(body, "role")),
		Phone:           takeString(body, "phone"),
	}
	if len(body) > 0 {
		in.Extra = body
	}

	user, err := h.session.Register(c.Request().Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{User: user, Redirect: user.Role.HomePath()})
}

// SetupAdminView shows whether the admin account still has to be created.
func (h *AuthHandler) SetupAdminView(c echo.Context) error {
	data := map[string]any{}
	exists, err := h.session.AdminExists(c.Request().Context())
	switch {
	case err == nil:
		data["adminExists"] = exists
	case errors.Is(err, domain.ErrNetwork):
		// The form stays usable; the backend has the final word on submit.
		data["adminExists"] = false
		data["checkFailed"] = true
	default:
		return err
	}
	return c.JSON(http.StatusOK, View{Page: "setup-admin", Layout: LayoutMain, Path: c.Request().URL.Path, Data: data})
}

// SetupAdmin creates the single admin account.
//
// @Summary      Create the admin account
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      adminSetupRequest  true  "Admin details and setup key"
// @Success      201   {object}  authResponse
// @Failure      403   {object}  ErrorResponse
// @Failure      409   {object}  ErrorResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /setup-admin [post]
func (h *AuthHandler) SetupAdmin(c echo.Context) error {
	var req adminSetupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.session.SetupAdmin(c.Request().Context(), ports.AdminSetupInput{
		Name:            req.Name,
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		SecretKey:       req.SecretKey,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{User: user, Redirect: user.Role.HomePath()})
}

// Logout ends the session. It succeeds without a session too.
//
// @Summary      Sign out
// @Tags         auth
// @Produce      json
// @Success      200  {object}  messageResponse
// @Router       /logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	if err := h.session.Logout(c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "signed out", Redirect: guard.LoginPath})
}

func (h *AuthHandler) ForgotPasswordView(c echo.Context) error {
	return c.JSON(http.StatusOK, View{Page: "forgot-password", Layout: LayoutMain, Path: c.Request().URL.Path})
}

// ForgotPassword asks the backend to mail a reset link.
//
// @Summary      Request a password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      forgotPasswordRequest  true  "Account email"
// @Success      200   {object}  messageResponse
// @Failure      422   {object}  ErrorResponse
// @Router       /forgot-password [post]
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
	var req forgotPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.session.ForgotPassword(c.Request().Context(), strings.TrimSpace(req.Email)); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "if the address is registered, a reset link is on its way"})
}

// ResetPasswordView checks the reset token before showing the form.
func (h *AuthHandler) ResetPasswordView(c echo.Context) error {
	token := c.Param("token")
	if err := h.session.VerifyResetToken(c.Request().Context(), token); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, View{
		Page:   "reset-password",
		Layout: LayoutMain,
		Path:   c.Request().URL.Path,
		Params: ctxParams(c),
		Data:   map[string]bool{"valid": true},
	})
}

// ResetPassword sets a new password with a reset token.
//
// @Summary      Reset a password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        token  path      string                true  "Reset token"
// @Param        body   body      resetPasswordRequest  true  "New password"
// @Success      200    {object}  messageResponse
// @Failure      404    {object}  ErrorResponse
// @Failure      422    {object}  ErrorResponse
// @Router       /reset-password/{token} [post]
func (h *AuthHandler) ResetPassword(c echo.Context) error {
	var req resetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	if err := h.session.ResetPassword(c.Request().Context(), c.Param("token"), req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated", Redirect: guard.LoginPath})
}

// UpdateProfile changes fields of the signed-in user's profile.
//
// @Summary      Update the profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Param        body  body      map[string]any  true  "Fields to change"
// @Success      200   {object}  domain.User
// @Failure      422   {object}  ErrorResponse
// @Router       /profile [put]
func (h *AuthHandler) UpdateProfile(c echo.Context) error {
	fields := map[string]any{}
	if err := c.Bind(&fields); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	for _, k := range []string{"role", "password", "_id", "id"} {
		delete(fields, k)
	}
	user, err := h.session.UpdateProfile(c.Request().Context(), fields)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// takeString removes key from m and returns it when it holds a string.
func takeString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	delete(m, key)
	s, _ := v.(string)
	return s
}
