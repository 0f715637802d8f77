package auth

// Checker is the capability surface guards evaluate against.
// The session manager satisfies it.
type Checker interface {
	IsAuthenticated() bool
	HasPermission(p Permission) bool
	HasAnyPermission(ps []Permission) bool
	HasAllPermissions(ps []Permission) bool
	HasRole(r Role) bool
}

// Allows reports whether p is in granted.
func Allows(granted []Permission, p Permission) bool {
	for _, g := range granted {
		if g == p {
			return true
		}
	}
	return false
}

// AllowsAny reports whether at least one of ps is in granted. Empty ps denies.
func AllowsAny(granted []Permission, ps []Permission) bool {
	for _, p := range ps {
		if Allows(granted, p) {
			return true
		}
	}
	return false
}

// AllowsAll reports whether every one of ps is in granted. Empty ps is vacuously true.
func AllowsAll(granted []Permission, ps []Permission) bool {
	for _, p := range ps {
		if !Allows(granted, p) {
			return false
		}
	}
	return true
}

// PermissionRequirement gates content on permissions.
// Permission wins when set, then a non-empty Any, then a non-empty All.
// A requirement that names nothing denies.
type PermissionRequirement struct {
	Permission Permission
	Any        []Permission
	All        []Permission
}

// Evaluate reports whether c satisfies the requirement.
func (r PermissionRequirement) Evaluate(c Checker) bool {
	if c == nil {
		return false
	}
	switch {
	case r.Permission != "":
		return c.HasPermission(r.Permission)
	case len(r.Any) > 0:
		return c.HasAnyPermission(r.Any)
	case len(r.All) > 0:
		return c.HasAllPermissions(r.All)
	default:
		return false
	}
}

// RoleRequirement gates content on role membership and permissions.
// An empty requirement admits any authenticated user.
type RoleRequirement struct {
	Roles       []Role
	Permissions []Permission
	// RequireAll switches the Permissions check from any-of to all-of.
	RequireAll bool
}

// Evaluate reports whether c satisfies the requirement.
func (r RoleRequirement) Evaluate(c Checker) bool {
	if c == nil || !c.IsAuthenticated() {
		return false
	}

	if len(r.Roles) > 0 {
		matched := false
		for _, role := range r.Roles {
			if c.HasRole(role) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	if len(r.Permissions) == 0 {
		return true
	}
	if r.RequireAll {
		for _, p := range r.Permissions {
			if !c.HasPermission(p) {
				return false
			}
		}
		return true
	}
	for _, p := range r.Permissions {
		if c.HasPermission(p) {
			return true
		}
	}
	return false
}
