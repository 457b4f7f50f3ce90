// Package api is the single client for every LaundryPro backend call. It
// attaches the bearer token, reports session loss on 401 and classifies every
// failure as *domain.APIError.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/laundrypro/portal/internal/api/metrics"
	"github.com/laundrypro/portal/internal/core/domain"
)

const (
	DefaultBaseURL = "https://laundrypro-backend-production.up.railway.app/api"
	DefaultTimeout = 30 * time.Second

	profileTimeout       = 15 * time.Second
	adminExistsTimeout   = 10 * time.Second
	registerAdminTimeout = 30 * time.Second

	maxBodyBytes = 1 << 20
)

// Options configures a Client. Zero values pick the defaults.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Log       zerolog.Logger
}

// Client talks to the backend. The token source and unauthorized handler are
// bound after construction because the auth context that provides them is
// itself built on top of the client.
type Client struct {
	base    *url.URL
	http    *http.Client
	timeout time.Duration
	log     zerolog.Logger

	mu             sync.RWMutex
	tokens         func() string
	onUnauthorized func(token string)
	lastSignalled  string
}

func New(opts Options) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", raw)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	next := opts.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	c := &Client{
		base:    base,
		timeout: timeout,
		log:     opts.Log.With().Str("component", "api_client").Logger(),
	}
	c.http = &http.Client{
		Transport: &authTransport{
			token: c.token,
			next:  &unauthorizedTransport{next: next, notify: c.signalUnauthorized},
		},
		CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
	}
	return c, nil
}

// SetTokenSource binds the function consulted for the bearer token on every
// request.
func (c *Client) SetTokenSource(fn func() string) {
	c.mu.Lock()
	c.tokens = fn
	c.mu.Unlock()
}

// OnUnauthorized binds the handler fired when a request carrying a token is
// answered with 401. It fires once per token until ClearUnauthorized.
func (c *Client) OnUnauthorized(fn func(token string)) {
	c.mu.Lock()
	c.onUnauthorized = fn
	c.mu.Unlock()
}

// ClearUnauthorized forgets the last signalled token so a fresh session
// carrying the same token string is signalled again on its first 401.
func (c *Client) ClearUnauthorized() {
	c.mu.Lock()
	c.lastSignalled = ""
	c.mu.Unlock()
}

func (c *Client) token() string {
	c.mu.RLock()
	fn := c.tokens
	c.mu.RUnlock()
	if fn == nil {
		return ""
	}
	return fn()
}

func (c *Client) signalUnauthorized(token string) {
	c.mu.Lock()
	if token == c.lastSignalled {
		c.mu.Unlock()
		return
	}
	c.lastSignalled = token
	fn := c.onUnauthorized
	c.mu.Unlock()

	metrics.UnauthorizedSignalsTotal.Inc()
	c.log.Warn().Msg("backend rejected the session token")
	if fn != nil {
		fn(token)
	}
}

// call describes one backend request.
type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	body     any
	timeout  time.Duration
	entry    bool
}

// do performs the call and returns the response payload with any
// {success, data} envelope removed.
func (c *Client) do(ctx context.Context, cl call) (json.RawMessage, error) {
	start := time.Now()
	payload, err := c.roundTrip(ctx, cl)

	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	metrics.BackendRequestsTotal.WithLabelValues(cl.endpoint, outcome).Inc()
	metrics.BackendRequestDuration.WithLabelValues(cl.endpoint).Observe(time.Since(start).Seconds())
	return payload, err
}

func (c *Client) roundTrip(ctx context.Context, cl call) (json.RawMessage, error) {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if cl.entry {
		ctx = withEntryCall(ctx)
	}

	u := *c.base
	u.Path = c.base.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s request: %w", cl.endpoint, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", cl.endpoint, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		apiErr := classifyTransport(err)
		c.log.Debug().Err(err).Str("endpoint", cl.endpoint).Str("kind", string(apiErr.Kind)).Msg("backend call failed")
		return nil, apiErr
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransport(err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := classifyStatus(resp.StatusCode, raw)
		c.log.Debug().
			Str("endpoint", cl.endpoint).
			Int("status", resp.StatusCode).
			Str("kind", string(apiErr.Kind)).
			Msg("backend returned an error")
		return nil, apiErr
	}
	return unwrapEnvelope(raw), nil
}

// unwrapEnvelope returns data from {"success": true, "data": ...} and the
// body unchanged otherwise.
func unwrapEnvelope(raw []byte) json.RawMessage {
	var env struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if json.Unmarshal(raw, &env) == nil && env.Success != nil && *env.Success && len(env.Data) > 0 {
		return env.Data
	}
	return raw
}

func malformed(endpoint string, err error) error {
	return &domain.APIError{
		Kind:    domain.KindServer,
		Message: "unexpected " + endpoint + " response",
		Err:     err,
	}
}
