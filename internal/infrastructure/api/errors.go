package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/laundrypro/portal/internal/core/domain"
)

type errorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Status  string          `json:"status"`
	Errors  json.RawMessage `json:"errors"`
}

// classifyTransport maps a failed round trip to Timeout or Network.
func classifyTransport(err error) *domain.APIError {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &domain.APIError{Kind: domain.KindTimeout, Message: "request timed out", Err: err}
	}
	return &domain.APIError{Kind: domain.KindNetwork, Message: "backend unreachable", Err: err}
}

// classifyStatus maps a non-2xx response to an *APIError. A recognised
// "status" reason in the body wins over the HTTP code.
func classifyStatus(status int, body []byte) *domain.APIError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)

	e := &domain.APIError{Status: status, Reason: eb.Status, Message: eb.Message}
	if e.Message == "" {
		var s string
		if json.Unmarshal(eb.Error, &s) == nil {
			e.Message = s
		}
	}

	switch eb.Status {
	case domain.ReasonAdminExists, domain.ReasonUserExists:
		e.Kind = domain.KindConflict
		return e
	case domain.ReasonInvalidSecret:
		e.Kind = domain.KindForbidden
		return e
	}

	switch {
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		e.Kind = domain.KindValidation
		e.Fields = parseFieldErrors(eb.Errors)
	case status == http.StatusUnauthorized:
		e.Kind = domain.KindUnauthorized
	case status == http.StatusForbidden:
		e.Kind = domain.KindForbidden
	case status == http.StatusNotFound:
		e.Kind = domain.KindNotFound
	case status == http.StatusConflict:
		e.Kind = domain.KindConflict
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Kind = domain.KindTimeout
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		e.Kind = domain.KindNetwork
	default:
		e.Kind = domain.KindServer
	}
	if e.Message == "" {
		e.Message = strings.ToLower(http.StatusText(status))
	}
	return e
}

// parseFieldErrors accepts {"field": "msg"}, {"field": {"message": "msg"}}
// and [{"path"|"param"|"field": ..., "msg"|"message": ...}].
func parseFieldErrors(raw json.RawMessage) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[string]string)

	var asMap map[string]json.RawMessage
	if json.Unmarshal(raw, &asMap) == nil {
		for k, v := range asMap {
			if msg := messageOf(v); msg != "" {
				out[k] = msg
			}
		}
		return nilIfEmpty(out)
	}

	var asList []map[string]json.RawMessage
	if json.Unmarshal(raw, &asList) == nil {
		for i, item := range asList {
			field := firstString(item, "path", "param", "field")
			if field == "" {
				field = fmt.Sprintf("_%d", i)
			}
			msg := firstString(item, "msg", "message")
			if _, seen := out[field]; !seen && msg != "" {
				out[field] = msg
			}
		}
	}
	return nilIfEmpty(out)
}

func messageOf(v json.RawMessage) string {
	var s string
	if json.Unmarshal(v, &s) == nil {
		return s
	}
	var obj map[string]json.RawMessage
	if json.Unmarshal(v, &obj) == nil {
		return firstString(obj, "message", "msg")
	}
	return ""
}

func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		var s string
		if raw, ok := m[k]; ok && json.Unmarshal(raw, &s) == nil && s != "" {
			return s
		}
	}
	return ""
}

func nilIfEmpty(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	return m
}
