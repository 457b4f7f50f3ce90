package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/api/handler"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/guard"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps classified backend errors to their appropriate HTTP status codes.
//   - Sends a lost session to the login page instead of an error body.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"error": "<message>", ...}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		if errors.Is(err, domain.ErrUnauthorized) || errors.Is(err, domain.ErrNoSession) {
			_ = c.Redirect(http.StatusFound, guard.LoginLocation(c.Request().URL.RequestURI()))
			return
		}

		code, body := resolveError(err, log, c)
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.ErrorResponse) {
	// Echo's own errors (bind failures, 404 from router, etc.)
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, handler.ErrorResponse{Error: fmt.Sprintf("%v", he.Message)}
	}

	apiErr, ok := domain.AsAPIError(err)
	if !ok {
		// Unexpected error: log the real cause, return a generic message.
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("unhandled error")
		return http.StatusInternalServerError, handler.ErrorResponse{Error: "internal server error"}
	}

	body := handler.ErrorResponse{
		Error:     apiErr.UserMessage(),
		Kind:      string(apiErr.Kind),
		Retryable: apiErr.Retryable(),
	}

	switch apiErr.Kind {
	case domain.KindValidation:
		body.Fields = apiErr.Fields
		return http.StatusUnprocessableEntity, body
	case domain.KindConflict:
		if apiErr.Reason == domain.ReasonAdminExists || apiErr.Reason == domain.ReasonUserExists {
			body.Action = "login"
		}
		return http.StatusConflict, body
	case domain.KindForbidden:
		return http.StatusForbidden, body
	case domain.KindInvalidCredentials:
		return http.StatusUnauthorized, body
	case domain.KindNotFound:
		return http.StatusNotFound, body
	case domain.KindNetwork, domain.KindTimeout:
		return http.StatusServiceUnavailable, body
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("backend error")
	return http.StatusInternalServerError, body
}
