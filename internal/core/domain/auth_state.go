package domain

// Phase is the coarse position of the auth state machine.
type Phase string

const (
	PhaseBootstrapping Phase = "bootstrapping"
	PhaseAuthenticated Phase = "authenticated"
	PhaseAnonymous     Phase = "anonymous"
)

// AuthState is an immutable snapshot of the auth context. Guards and handlers
// decide on a snapshot and never on live state.
type AuthState struct {
	Phase   Phase `json:"phase"`
	User    *User `json:"user"`
	Loading bool  `json:"loading"`
	// Provisional is the cached user shown while Loading. It is never used
	// for authorization.
	Provisional *User `json:"provisional,omitempty"`
}

// Authenticated reports whether the snapshot carries a validated user.
func (s AuthState) Authenticated() bool {
	return !s.Loading && s.User != nil
}

// HasRole reports whether the user holds exactly role r.
func (s AuthState) HasRole(r Role) bool {
	return s.User != nil && r != RoleUnknown && s.User.Role == r
}

func (s AuthState) IsAdmin() bool    { return s.HasRole(RoleAdmin) }
func (s AuthState) IsManager() bool  { return s.HasRole(RoleManager) }
func (s AuthState) IsSupplier() bool { return s.HasRole(RoleSupplier) }
func (s AuthState) IsCustomer() bool { return s.HasRole(RoleCustomer) }

// IsEmployee admits every role allowed into employee resources: employees,
// managers and admins.
func (s AuthState) IsEmployee() bool {
	return s.HasRole(RoleEmployee) || s.HasRole(RoleManager) || s.HasRole(RoleAdmin)
}
