package domain

import (
	"encoding/json"
	"strings"
)

// Role is the principal's authorization class.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
	RoleManager  Role = "manager"
	RoleSupplier Role = "supplier"
	RoleCustomer Role = "customer"

	// RoleUnknown is what ParseRole yields for anything it does not recognise.
	// It satisfies no role predicate.
	RoleUnknown Role = ""
)

var roleSynonyms = map[string]Role{
	"admin":    RoleAdmin,
	"employee": RoleEmployee,
	"staff":    RoleEmployee,
	"manager":  RoleManager,
	"supplier": RoleSupplier,
	"vendor":   RoleSupplier,
	"customer": RoleCustomer,
	"client":   RoleCustomer,
}

// ParseRole canonicalises a backend role string. Case and surrounding
// whitespace are ignored and known synonyms collapse onto a single value, so
// exactly one Role satisfies each predicate.
func ParseRole(s string) Role {
	if r, ok := roleSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r
	}
	return RoleUnknown
}

// Valid reports whether r is one of the five known roles.
func (r Role) Valid() bool {
	return r != RoleUnknown && roleSynonyms[string(r)] == r
}

// HomePath is the dashboard a freshly signed-in user of this role lands on.
func (r Role) HomePath() string {
	switch r {
	case RoleAdmin:
		return "/admin/dashboard"
	case RoleEmployee, RoleManager:
		return "/employee/dashboard"
	case RoleSupplier:
		return "/supplier/dashboard"
	case RoleCustomer:
		return "/customer/dashboard"
	default:
		return "/"
	}
}

// UnmarshalJSON routes every decoded role through ParseRole.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// User is the authenticated principal. Role-specific attributes (address,
// department, salary, ...) are kept opaque in Extra.
type User struct {
	ID    string
	Name  string
	Email string
	Role  Role
	Extra map[string]json.RawMessage
}

var userKnownFields = map[string]struct{}{
	"_id": {}, "id": {}, "name": {}, "email": {}, "role": {},
}

// UnmarshalJSON accepts both "_id" and "id" and keeps unknown keys in Extra.
func (u *User) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	var out User
	for _, key := range []string{"id", "_id"} {
		if v, ok := raw[key]; ok && out.ID == "" {
			_ = json.Unmarshal(v, &out.ID)
		}
	}
	if v, ok := raw["name"]; ok {
		_ = json.Unmarshal(v, &out.Name)
	}
	if v, ok := raw["email"]; ok {
		_ = json.Unmarshal(v, &out.Email)
	}
	if v, ok := raw["role"]; ok {
		if err := json.Unmarshal(v, &out.Role); err != nil {
			out.Role = RoleUnknown
		}
	}
	for k, v := range raw {
		if _, known := userKnownFields[k]; known {
			continue
		}
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = v
	}

	*u = out
	return nil
}

// MarshalJSON writes the canonical fields alongside Extra.
func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+4)
	for k, v := range u.Extra {
		out[k] = v
	}
	out["id"] = u.ID
	out["name"] = u.Name
	out["email"] = u.Email
	out["role"] = string(u.Role)
	return json.Marshal(out)
}

// Clone returns a deep copy so callers never share Extra with the auth state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(u.Extra))
		for k, v := range u.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}
