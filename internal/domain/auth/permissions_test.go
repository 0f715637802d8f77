package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPermissionsFor_Table(t *testing.T) {
	assert.ElementsMatch(t, AllPermissions(), PermissionsFor(RoleAdmin))
	assert.Len(t, PermissionsFor(RoleAdmin), 16)

	manager := PermissionsFor(RoleManager)
	assert.Len(t, manager, 14)
	assert.NotContains(t, manager, PermManageUsers)
	assert.NotContains(t, manager, PermManageSettings)
	assert.Contains(t, manager, PermViewReports)

	assert.ElementsMatch(t, []Permission{
		PermViewProducts, PermUsePOS, PermApplyDiscount, PermUseChat, PermViewProfile, PermEditOwnProfile,
	}, PermissionsFor(RoleCashier))

	assert.ElementsMatch(t, []Permission{
		PermViewDashboard, PermViewProducts, PermViewProfile,
	}, PermissionsFor(RoleViewer))
}

func TestPermissionsFor_ReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleViewer)
	perms[0] = PermManageUsers

	assert.False(t, RoleGrants(RoleViewer, PermManageUsers))
	assert.Equal(t, PermViewDashboard, PermissionsFor(RoleViewer)[0])

	all := AllPermissions()
	all[0] = "tampered"
	assert.Equal(t, PermViewDashboard, AllPermissions()[0])
}

func TestPermissionsFor_UnknownRole(t *testing.T) {
	assert.Empty(t, PermissionsFor(Role("owner")))
	assert.False(t, RoleGrants(Role("owner"), PermViewProfile))
	assert.False(t, RoleGrants("", PermViewProfile))
}

func TestRoleGrants_Examples(t *testing.T) {
	assert.True(t, RoleGrants(RoleCashier, PermUsePOS))
	assert.False(t, RoleGrants(RoleCashier, PermViewDashboard))
	assert.False(t, RoleGrants(RoleViewer, PermUsePOS))
	assert.True(t, RoleGrants(RoleManager, PermVoidTransaction))
	assert.False(t, RoleGrants(RoleManager, PermManageUsers))
	assert.True(t, RoleGrants(RoleAdmin, PermManageSettings))
}

func TestParsePermission(t *testing.T) {
	p, ok := ParsePermission("use_pos")
	assert.True(t, ok)
	assert.Equal(t, PermUsePOS, p)

	_, ok = ParsePermission("fly")
	assert.False(t, ok)
}
