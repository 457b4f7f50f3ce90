package domain

import "time"

// SessionSlot is the fixed name of the durable session slot.
const SessionSlot = "laundrypro.session"

// Session pairs the bearer token with the user it was issued for. The two are
// always stored, loaded and cleared together.
type Session struct {
	Token   string    `json:"token"`
	User    *User     `json:"user"`
	SavedAt time.Time `json:"saved_at,omitempty"`
}

// Valid reports whether both halves of the session are present.
func (s *Session) Valid() bool {
	return s != nil && s.Token != "" && s.User != nil
}

// Clone deep-copies the session.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	return &Session{Token: s.Token, User: s.User.Clone(), SavedAt: s.SavedAt}
}

// AuthEventKind names a session lifecycle transition worth auditing.
type AuthEventKind string

const (
	EventLogin             AuthEventKind = "login"
	EventRegister          AuthEventKind = "register"
	EventAdminSetup        AuthEventKind = "admin_setup"
	EventLogout            AuthEventKind = "logout"
	EventForcedSignOut     AuthEventKind = "forced_sign_out"
	EventBootstrapResolved AuthEventKind = "bootstrap_resolved"
	EventBootstrapFailed   AuthEventKind = "bootstrap_failed"
)

// AuthEvent is a single audited transition.
type AuthEvent struct {
	Kind   AuthEventKind
	UserID string
	Email  string
	Role   Role
	Reason string
	At     time.Time
}
