package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/laundrypro/portal/internal/api/metrics"
	"github.com/laundrypro/portal/internal/core/domain"
	"github.com/laundrypro/portal/internal/core/ports"
)

const (
	DefaultBootstrapTimeout = 15 * time.Second
	defaultLogoutTimeout    = 10 * time.Second
)

// AuthContextOptions tunes an AuthContext. Zero values pick the defaults.
type AuthContextOptions struct {
	BootstrapTimeout time.Duration
	LogoutTimeout    time.Duration
	Now              func() time.Time
}

// AuthContext owns the session of the process. There is exactly one per
// process; it is created in main and passed to whoever needs it.
//
// Every sequence that changes the session (bootstrap resolution, login,
// logout, forced sign-out) runs under opMu so the store and the in-memory
// state always move together. mu guards the fields read by snapshots.
type AuthContext struct {
	client ports.AuthClient
	store  ports.SessionStore
	events ports.AuthEventRecorder
	log    zerolog.Logger

	bootstrapTimeout time.Duration
	logoutTimeout    time.Duration
	now              func() time.Time

	opMu sync.Mutex

	mu           sync.RWMutex
	state        domain.AuthState
	token        string
	epoch        uint64
	bootstrapped bool
	subscribers  []func(domain.AuthEvent)

	sf singleflight.Group
	bg sync.WaitGroup

	// pending holds events not yet handed to the recorder. One drain
	// goroutine at most works through it, oldest first.
	evMu     sync.Mutex
	pending  []domain.AuthEvent
	draining bool
}

var _ ports.SessionService = (*AuthContext)(nil)

func NewAuthContext(
	client ports.AuthClient,
	store ports.SessionStore,
	events ports.AuthEventRecorder,
	log zerolog.Logger,
	opts AuthContextOptions,
) *AuthContext {
	if opts.BootstrapTimeout <= 0 {
		opts.BootstrapTimeout = DefaultBootstrapTimeout
	}
	if opts.LogoutTimeout <= 0 {
		opts.LogoutTimeout = defaultLogoutTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &AuthContext{
		client:           client,
		store:            store,
		events:           events,
		log:              log.With().Str("component", "auth_context").Logger(),
		bootstrapTimeout: opts.BootstrapTimeout,
		logoutTimeout:    opts.LogoutTimeout,
		now:              opts.Now,
		state:            domain.AuthState{Phase: domain.PhaseBootstrapping, Loading: true},
	}
}

// State returns a snapshot safe to read without further locking.
func (a *AuthContext) State() domain.AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s := a.state
	s.User = s.User.Clone()
	s.Provisional = s.Provisional.Clone()
	return s
}

// Token is the bearer token source for the API client.
func (a *AuthContext) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AuthContext) User() *domain.User { return a.State().User }
func (a *AuthContext) IsAdmin() bool      { return a.State().IsAdmin() }
func (a *AuthContext) IsManager() bool    { return a.State().IsManager() }
func (a *AuthContext) IsEmployee() bool   { return a.State().IsEmployee() }
func (a *AuthContext) IsSupplier() bool   { return a.State().IsSupplier() }
func (a *AuthContext) IsCustomer() bool   { return a.State().IsCustomer() }

// Subscribe registers fn for every auth event. fn runs synchronously on the
// goroutine that caused the event and must not block.
func (a *AuthContext) Subscribe(fn func(domain.AuthEvent)) {
	a.mu.Lock()
	a.subscribers = append(a.subscribers, fn)
	a.mu.Unlock()
}

// Bootstrap resolves the persisted session once per process. Concurrent
// callers share the same resolution; later calls return the current state.
func (a *AuthContext) Bootstrap(ctx context.Context) domain.AuthState {
	_, _, _ = a.sf.Do("bootstrap", func() (any, error) {
		a.mu.Lock()
		if a.bootstrapped {
			a.mu.Unlock()
			return nil, nil
		}
		a.bootstrapped = true
		epoch := a.epoch
		a.mu.Unlock()

		a.bootstrap(ctx, epoch)
		return nil, nil
	})
	return a.State()
}

func (a *AuthContext) bootstrap(ctx context.Context, epoch uint64) {
	sess, err := a.store.Load(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("session slot unreadable; starting anonymous")
		a.resolveAnonymous(ctx, epoch, "store_unreadable", false)
		return
	}
	if sess == nil {
		a.resolveAnonymous(ctx, epoch, "no_session", false)
		return
	}

	a.mu.Lock()
	if a.epoch != epoch {
		a.mu.Unlock()
		return
	}
	a.token = sess.Token
	a.state.Provisional = sess.User.Clone()
	a.mu.Unlock()

	if tokenExpired(sess.Token, a.now()) {
		a.log.Info().Msg("persisted token expired; clearing session")
		a.resolveAnonymous(ctx, epoch, "token_expired", true)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, a.bootstrapTimeout)
	defer cancel()

	user, err := a.client.FetchProfile(fetchCtx)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
			a.resolveAnonymous(ctx, epoch, string(domain.KindOf(err)), true)
		default:
			// Transient: keep the slot so the next start retries.
			a.log.Warn().Err(err).Msg("session validation failed; starting anonymous")
			a.resolveAnonymous(ctx, epoch, string(domain.KindOf(err)), false)
		}
		return
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()

	if !a.current(epoch) {
		a.log.Debug().Msg("dropping stale bootstrap result")
		return
	}
	fresh := &domain.Session{Token: sess.Token, User: user}
	if err := a.store.Save(ctx, fresh); err != nil {
		a.log.Warn().Err(err).Msg("failed to refresh persisted session")
	}
	a.setAuthenticated(fresh, "bootstrap")
	a.emit(domain.AuthEvent{Kind: domain.EventBootstrapResolved, UserID: user.ID, Email: user.Email, Role: user.Role})
}

// resolveAnonymous ends a bootstrap without a session.
func (a *AuthContext) resolveAnonymous(ctx context.Context, epoch uint64, reason string, clear bool) {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if !a.current(epoch) {
		return
	}
	if clear {
		if err := a.store.Clear(ctx); err != nil {
			a.log.Warn().Err(err).Msg("failed to clear rejected session")
		}
	}
	a.setAnonymous("bootstrap")

	kind := domain.EventBootstrapResolved
	if reason != "no_session" {
		kind = domain.EventBootstrapFailed
	}
	a.emit(domain.AuthEvent{Kind: kind, Reason: reason})
}

// Login authenticates with the backend and commits the session. On failure
// the state is left untouched and the classified error returned.
func (a *AuthContext) Login(ctx context.Context, email, password string) (*domain.User, error) {
	sess, err := a.client.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := a.commit(ctx, sess, domain.EventLogin); err != nil {
		return nil, err
	}
	return sess.User.Clone(), nil
}

// Register creates an account and signs in with it. Asking for the admin role
// is refused with a conflict once an admin exists.
func (a *AuthContext) Register(ctx context.Context, in ports.RegisterInput) (*domain.User, error) {
	if in.Role == domain.RoleAdmin {
		exists, err := a.client.AdminExists(ctx)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, &domain.APIError{
				Kind:    domain.KindConflict,
				Reason:  domain.ReasonAdminExists,
				Message: "an admin account already exists",
			}
		}
	}

	sess, err := a.client.Register(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := a.commit(ctx, sess, domain.EventRegister); err != nil {
		return nil, err
	}
	return sess.User.Clone(), nil
}

// AdminExists reports whether the admin account has been created.
func (a *AuthContext) AdminExists(ctx context.Context) (bool, error) {
	return a.client.AdminExists(ctx)
}

// ForgotPassword, VerifyResetToken and ResetPassword never touch the session;
// they run through the context so every backend call shares one client.

func (a *AuthContext) ForgotPassword(ctx context.Context, email string) error {
	return a.client.ForgotPassword(ctx, email)
}

func (a *AuthContext) VerifyResetToken(ctx context.Context, token string) error {
	return a.client.VerifyResetToken(ctx, token)
}

func (a *AuthContext) ResetPassword(ctx context.Context, token, password string) error {
	return a.client.ResetPassword(ctx, token, password)
}

// SetupAdmin creates the single admin account. Conflict and Forbidden
// answers leave any current session as it is.
func (a *AuthContext) SetupAdmin(ctx context.Context, in ports.AdminSetupInput) (*domain.User, error) {
	sess, err := a.client.RegisterAdmin(ctx, in)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		// Account created without a token.
		return a.Login(ctx, in.Email, in.Password)
	}
	if err := a.commit(ctx, sess, domain.EventAdminSetup); err != nil {
		return nil, err
	}
	return sess.User.Clone(), nil
}

// commit persists sess and makes it current. Any bootstrap still in flight
// becomes stale.
func (a *AuthContext) commit(ctx context.Context, sess *domain.Session, kind domain.AuthEventKind) error {
	a.opMu.Lock()
	defer a.opMu.Unlock()

	if err := a.store.Save(ctx, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	a.mu.Lock()
	a.epoch++
	a.bootstrapped = true
	a.mu.Unlock()

	a.setAuthenticated(sess, string(kind))
	a.emit(domain.AuthEvent{Kind: kind, UserID: sess.User.ID, Email: sess.User.Email, Role: sess.User.Role})
	return nil
}

// Logout ends the session locally and then tells the backend in the
// background. Calling it without a session is a no-op.
func (a *AuthContext) Logout(ctx context.Context) error {
	token, user, err := a.signOut(ctx, "logout")
	if token != "" {
		a.bg.Add(1)
		go func() {
			defer a.bg.Done()
			nctx, cancel := context.WithTimeout(ports.WithToken(context.Background(), token), a.logoutTimeout)
			defer cancel()
			if err := a.client.Logout(nctx); err != nil {
				a.log.Debug().Err(err).Msg("backend logout failed")
			}
		}()
	}
	if user != nil {
		a.emit(domain.AuthEvent{Kind: domain.EventLogout, UserID: user.ID, Email: user.Email, Role: user.Role})
	}
	return err
}

// ForceSignOut ends the session without notifying the backend.
func (a *AuthContext) ForceSignOut(reason string) {
	_, user, err := a.signOut(context.Background(), "forced_sign_out")
	a.forced(reason, user, err)
}

// HandleUnauthorized is the API client's 401 handler. Signals for a token
// other than the current one are stale and ignored.
func (a *AuthContext) HandleUnauthorized(token string) {
	if token == "" || token != a.Token() {
		return
	}
	a.ForceSignOut("unauthorized")
}

// SessionChanged reacts to another process rewriting the session slot. A
// vanished or replaced slot ends this process's session. A replaced slot
// belongs to its new writer and is left in place.
func (a *AuthContext) SessionChanged(ctx context.Context) {
	a.opMu.Lock()
	token := a.Token()
	if token == "" {
		a.opMu.Unlock()
		return
	}
	sess, err := a.store.Load(ctx)
	if err != nil {
		a.opMu.Unlock()
		a.log.Warn().Err(err).Msg("failed to reload session slot")
		return
	}
	if sess != nil && sess.Token == token {
		a.opMu.Unlock()
		return
	}
	_, user, err := a.signOutLocked(ctx, "session_changed", sess == nil)
	a.opMu.Unlock()
	a.forced("session_changed", user, err)
}

func (a *AuthContext) forced(reason string, user *domain.User, err error) {
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to clear session slot on forced sign-out")
	}
	ev := domain.AuthEvent{Kind: domain.EventForcedSignOut, Reason: reason}
	if user != nil {
		ev.UserID, ev.Email, ev.Role = user.ID, user.Email, user.Role
	}
	a.log.Info().Str("reason", reason).Msg("session ended")
	a.emit(ev)
}

func (a *AuthContext) signOut(ctx context.Context, cause string) (string, *domain.User, error) {
	a.opMu.Lock()
	defer a.opMu.Unlock()
	return a.signOutLocked(ctx, cause, true)
}

// signOutLocked runs with opMu held.
func (a *AuthContext) signOutLocked(ctx context.Context, cause string, clear bool) (string, *domain.User, error) {
	a.mu.Lock()
	token, user := a.token, a.state.User
	a.epoch++
	a.bootstrapped = true
	a.mu.Unlock()

	var err error
	if clear {
		err = a.store.Clear(ctx)
	}
	if token != "" || user != nil {
		a.setAnonymous(cause)
	} else {
		a.mu.Lock()
		a.state = domain.AuthState{Phase: domain.PhaseAnonymous}
		a.mu.Unlock()
	}
	return token, user, err
}

// RefreshProfile re-reads the user of the current session.
func (a *AuthContext) RefreshProfile(ctx context.Context) (*domain.User, error) {
	return a.updateUser(ctx, func(ctx context.Context) (*domain.User, error) {
		return a.client.FetchProfile(ctx)
	})
}

// UpdateProfile changes profile fields and keeps the cached user in sync.
func (a *AuthContext) UpdateProfile(ctx context.Context, fields map[string]any) (*domain.User, error) {
	return a.updateUser(ctx, func(ctx context.Context) (*domain.User, error) {
		return a.client.UpdateProfile(ctx, fields)
	})
}

func (a *AuthContext) updateUser(ctx context.Context, fetch func(context.Context) (*domain.User, error)) (*domain.User, error) {
	a.mu.RLock()
	token, epoch := a.token, a.epoch
	authed := a.state.Phase == domain.PhaseAuthenticated
	a.mu.RUnlock()
	if !authed || token == "" {
		return nil, domain.ErrNoSession
	}

	user, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	a.opMu.Lock()
	defer a.opMu.Unlock()
	if !a.current(epoch) {
		return nil, domain.ErrNoSession
	}
	sess := &domain.Session{Token: token, User: user}
	if err := a.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	a.mu.Lock()
	a.state.User = user.Clone()
	a.mu.Unlock()
	return user.Clone(), nil
}

// Wait blocks until background logout notifications and event recording
// have finished.
func (a *AuthContext) Wait() {
	a.bg.Wait()
}

func (a *AuthContext) current(epoch uint64) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.epoch == epoch
}

func (a *AuthContext) setAuthenticated(sess *domain.Session, cause string) {
	a.mu.Lock()
	a.token = sess.Token
	a.state = domain.AuthState{Phase: domain.PhaseAuthenticated, User: sess.User.Clone()}
	a.mu.Unlock()
	metrics.AuthTransitionsTotal.WithLabelValues(string(domain.PhaseAuthenticated), cause).Inc()
}

func (a *AuthContext) setAnonymous(cause string) {
	a.mu.Lock()
	a.token = ""
	a.state = domain.AuthState{Phase: domain.PhaseAnonymous}
	a.mu.Unlock()
	metrics.AuthTransitionsTotal.WithLabelValues(string(domain.PhaseAnonymous), cause).Inc()
}

// emit fans ev out to subscribers and queues it for the recorder.
func (a *AuthContext) emit(ev domain.AuthEvent) {
	if ev.At.IsZero() {
		ev.At = a.now()
	}
	a.mu.RLock()
	subs := append([]func(domain.AuthEvent){}, a.subscribers...)
	a.mu.RUnlock()
	for _, fn := range subs {
		fn(ev)
	}

	if a.events == nil {
		return
	}
	a.evMu.Lock()
	a.pending = append(a.pending, ev)
	if a.draining {
		a.evMu.Unlock()
		return
	}
	a.draining = true
	a.bg.Add(1)
	a.evMu.Unlock()
	go a.drainEvents()
}

// drainEvents records pending events in emission order and exits once the
// queue is empty.
func (a *AuthContext) drainEvents() {
	defer a.bg.Done()
	for {
		a.evMu.Lock()
		if len(a.pending) == 0 {
			a.draining = false
			a.evMu.Unlock()
			return
		}
		ev := a.pending[0]
		a.pending = a.pending[1:]
		a.evMu.Unlock()

		if err := a.events.Record(context.Background(), ev); err != nil {
			a.log.Warn().Err(err).Str("event", string(ev.Kind)).Msg("failed to record auth event")
		}
	}
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// The signature is not checked; opaque tokens never count as expired.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
