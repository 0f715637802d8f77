package auth

// Package auth contains domain-level types for authentication, sessions and
// role-based permissions. It is pure and free of framework/adapter concerns.

import "strings"

// Role represents a frontend authorization role.
// Keep string form for easy persistence.
// Valid values are defined as constants below.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleCashier Role = "cashier"
	RoleViewer  Role = "viewer"
)

// Roles lists every valid role, most privileged first.
func Roles() []Role {
	return []Role{RoleAdmin, RoleManager, RoleCashier, RoleViewer}
}

// Valid reports whether r is one of the four defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleCashier, RoleViewer:
		return true
	default:
		return false
	}
}

// ParseRole converts a persisted role string into a Role.
// ok is false when s names no known role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", false
	}
	return r, true
}

// User is the normalized signed-in principal the client works with.
// The JSON layout matches the persisted user record.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	Role          Role   `json:"role"`
	Avatar        string `json:"avatar,omitempty"`
	PointOfSaleID string `json:"pointOfSaleId,omitempty"`
}

// BackendUser is the user record as returned by the identity backend, before
// role normalization. Adapters map provider-specific payloads into this shape.
type BackendUser struct {
	Email       string
	Role        string // backend role vocabulary (OWNER, MANAGER, EMPLOYEE, ...)
	CompanyID   string
	FirstName   string
	LastName    string
	PhoneNumber string
}

// DisplayName joins first and last name, trimmed.
func (u BackendUser) DisplayName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// TokenPair holds the bearer credentials of a session.
// RefreshToken may be empty on a refresh response that does not rotate it.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Credentials are the login inputs.
type Credentials struct {
	Email    string
	Password string
}

// LoginResult is what a successful login yields.
type LoginResult struct {
	Tokens TokenPair
	User   BackendUser
}

// Registration describes a new business account.
type Registration struct {
	Email         string
	Password      string
	BusinessName  string
	OwnerName     string
	OwnerLastName string
	PhoneNumber   int64
}

// State is the lifecycle state of the session manager.
type State string

const (
	StateUnknown         State = "unknown"
	StateRestoring       State = "restoring"
	StateAuthenticated   State = "authenticated"
	StateUnauthenticated State = "unauthenticated"
)
