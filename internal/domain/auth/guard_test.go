package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// roleChecker evaluates capabilities straight off the role table.
type roleChecker struct {
	role          Role
	authenticated bool
}

func (c roleChecker) IsAuthenticated() bool { return c.authenticated }

func (c roleChecker) HasPermission(p Permission) bool {
	return c.authenticated && RoleGrants(c.role, p)
}

func (c roleChecker) HasAnyPermission(ps []Permission) bool {
	return c.authenticated && AllowsAny(PermissionsFor(c.role), ps)
}

func (c roleChecker) HasAllPermissions(ps []Permission) bool {
	return c.authenticated && AllowsAll(PermissionsFor(c.role), ps)
}

func (c roleChecker) HasRole(r Role) bool { return c.authenticated && c.role == r }

func TestAllowsAnyAll_Empty(t *testing.T) {
	granted := PermissionsFor(RoleAdmin)
	assert.False(t, AllowsAny(granted, nil))
	assert.True(t, AllowsAll(granted, nil))
	assert.True(t, AllowsAll(nil, []Permission{}))
}

func TestAllowsAnyAll(t *testing.T) {
	cashier := PermissionsFor(RoleCashier)
	assert.True(t, AllowsAny(cashier, []Permission{PermViewDashboard, PermUsePOS}))
	assert.False(t, AllowsAll(cashier, []Permission{PermViewDashboard, PermUsePOS}))
	assert.True(t, AllowsAll(cashier, []Permission{PermUseChat, PermUsePOS}))
}

func TestPermissionRequirement(t *testing.T) {
	cashier := roleChecker{role: RoleCashier, authenticated: true}

	tests := []struct {
		name string
		req  PermissionRequirement
		want bool
	}{
		{"single granted", PermissionRequirement{Permission: PermUsePOS}, true},
		{"single denied", PermissionRequirement{Permission: PermViewDashboard}, false},
		{"single wins over any", PermissionRequirement{Permission: PermViewDashboard, Any: []Permission{PermUsePOS}}, false},
		{"any", PermissionRequirement{Any: []Permission{PermViewDashboard, PermUsePOS}}, true},
		{"any wins over all", PermissionRequirement{Any: []Permission{PermUsePOS}, All: []Permission{PermManageUsers}}, true},
		{"all denied", PermissionRequirement{All: []Permission{PermUsePOS, PermManageUsers}}, false},
		{"all granted", PermissionRequirement{All: []Permission{PermUsePOS, PermUseChat}}, true},
		{"empty requirement denies", PermissionRequirement{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Evaluate(cashier))
		})
	}

	assert.False(t, PermissionRequirement{Permission: PermUsePOS}.Evaluate(nil))
}

func TestRoleRequirement(t *testing.T) {
	manager := roleChecker{role: RoleManager, authenticated: true}
	anonymous := roleChecker{}

	tests := []struct {
		name    string
		req     RoleRequirement
		checker Checker
		want    bool
	}{
		{"unauthenticated denies", RoleRequirement{}, anonymous, false},
		{"empty admits authenticated", RoleRequirement{}, manager, true},
		{"role match", RoleRequirement{Roles: []Role{RoleAdmin, RoleManager}}, manager, true},
		{"role mismatch", RoleRequirement{Roles: []Role{RoleAdmin}}, manager, false},
		{"any permission", RoleRequirement{Permissions: []Permission{PermManageUsers, PermViewReports}}, manager, true},
		{"all permissions denied", RoleRequirement{Permissions: []Permission{PermManageUsers, PermViewReports}, RequireAll: true}, manager, false},
		{"all permissions granted", RoleRequirement{Permissions: []Permission{PermUsePOS, PermViewReports}, RequireAll: true}, manager, true},
		{"role ok permission denied", RoleRequirement{Roles: []Role{RoleManager}, Permissions: []Permission{PermManageSettings}}, manager, false},
		{"nil checker", RoleRequirement{}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.req.Evaluate(tt.checker))
		})
	}
}
