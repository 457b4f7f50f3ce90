package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorKind classifies every failure the API client can surface.
type ErrorKind string

const (
	KindNetwork            ErrorKind = "network"
	KindTimeout            ErrorKind = "timeout"
	KindInvalidCredentials ErrorKind = "invalid_credentials"
	KindUnauthorized       ErrorKind = "unauthorized"
	KindForbidden          ErrorKind = "forbidden"
	KindValidation         ErrorKind = "validation"
	KindConflict           ErrorKind = "conflict"
	KindNotFound           ErrorKind = "not_found"
	KindServer             ErrorKind = "server"
)

// Reasons reported by the backend in the "status" field of an error body.
const (
	ReasonAdminExists   = "admin_exists"
	ReasonInvalidSecret = "invalid_secret"
	ReasonUserExists    = "user_exists"
)

// Sentinels usable with errors.Is against any *APIError of the same kind.
var (
	ErrNetwork            = &APIError{Kind: KindNetwork}
	ErrTimeout            = &APIError{Kind: KindTimeout}
	ErrInvalidCredentials = &APIError{Kind: KindInvalidCredentials}
	ErrUnauthorized       = &APIError{Kind: KindUnauthorized}
	ErrForbidden          = &APIError{Kind: KindForbidden}
	ErrValidation         = &APIError{Kind: KindValidation}
	ErrConflict           = &APIError{Kind: KindConflict}
	ErrNotFound           = &APIError{Kind: KindNotFound}
	ErrServer             = &APIError{Kind: KindServer}
)

// Session store errors.
var (
	ErrNoSession      = errors.New("no session")
	ErrSessionCorrupt = errors.New("session slot corrupt")
)

// APIError is a classified backend or transport failure.
type APIError struct {
	Kind    ErrorKind
	Status  int
	Reason  string
	Message string
	// Fields carries field-level messages for KindValidation.
	Fields map[string]string
	Err    error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Fields[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Err != nil && e.Message == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// Is matches on kind. A timeout is also a network error.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return t.Kind == KindNetwork && e.Kind == KindTimeout
}

// Retryable reports whether repeating the same call may succeed.
func (e *APIError) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout || e.Kind == KindServer
}

// UserMessage is the human-readable text shown on the originating form.
func (e *APIError) UserMessage() string {
	switch e.Reason {
	case ReasonAdminExists:
		return "An admin account already exists. Only one admin is allowed; please sign in instead."
	case ReasonInvalidSecret:
		return "The admin setup key was rejected."
	case ReasonUserExists:
		return "An account with this email already exists; please sign in instead."
	}
	if e.Message != "" {
		return e.Message
	}
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return "The service is unreachable right now. Please try again."
	case KindInvalidCredentials:
		return "Invalid email or password."
	case KindUnauthorized:
		return "Your session has expired. Please sign in again."
	case KindForbidden:
		return "You do not have access to this action."
	case KindValidation:
		return "Please correct the highlighted fields."
	case KindConflict:
		return "This record already exists."
	case KindNotFound:
		return "Not found."
	default:
		return "Something went wrong. Please try again."
	}
}

// AsAPIError extracts the classified error, if any.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindServer for unclassified errors.
func KindOf(err error) ErrorKind {
	if ae, ok := AsAPIError(err); ok {
		return ae.Kind
	}
	return KindServer
}
