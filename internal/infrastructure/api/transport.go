package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/laundrypro/portal/internal/core/ports"
)

type ctxKey int

const entryCallKey ctxKey = iota

// withEntryCall marks a request as an auth entry call (login, register,
// password reset, admin setup). A 401 on such a call is a normal answer and
// never signals a session loss.
func withEntryCall(ctx context.Context) context.Context {
	return context.WithValue(ctx, entryCallKey, true)
}

func isEntryCall(ctx context.Context) bool {
	v, _ := ctx.Value(entryCallKey).(bool)
	return v
}

// authTransport is the request interceptor.
type authTransport struct {
	next  http.RoundTripper
	token func() string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", "application/json")
	if r.Body != nil && r.Header.Get("Content-Type") == "" {
		r.Header.Set("Content-Type", "application/json")
	}
	if r.Header.Get("X-Request-ID") == "" {
		r.Header.Set("X-Request-ID", uuid.NewString())
	}
	tok, pinned := ports.TokenFrom(r.Context())
	if !pinned {
		tok = t.token()
	}
	if tok != "" {
		r.Header.Set("Authorization", "Bearer "+tok)
	} else {
		r.Header.Del("Authorization")
	}
	return t.next.RoundTrip(r)
}

// unauthorizedTransport is the response interceptor. It reports a 401 that
// answered a request carrying a token, unless the request was an entry call.
type unauthorizedTransport struct {
	next   http.RoundTripper
	notify func(token string)
}

func (t *unauthorizedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}
	if isEntryCall(req.Context()) {
		return resp, nil
	}
	if tok := bearer(req.Header.Get("Authorization")); tok != "" {
		t.notify(tok)
	}
	return resp, nil
}

func bearer(h string) string {
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}
