package auth

// Permission names a single capability in the client.
type Permission string

const (
	// Dashboard
	PermViewDashboard Permission = "view_dashboard"
	PermViewAnalytics Permission = "view_analytics"
	PermViewAIInsight Permission = "view_ai_insights"

	// Products
	PermViewProducts  Permission = "view_products"
	PermCreateProduct Permission = "create_product"
	PermEditProduct   Permission = "edit_product"
	PermDeleteProduct Permission = "delete_product"

	// POS
	PermUsePOS          Permission = "use_pos"
	PermVoidTransaction Permission = "void_transaction"
	PermApplyDiscount   Permission = "apply_discount"

	// Chat
	PermUseChat Permission = "use_chat"

	// Profile
	PermViewProfile    Permission = "view_profile"
	PermEditOwnProfile Permission = "edit_own_profile"

	// Administration
	PermManageUsers    Permission = "manage_users"
	PermManageSettings Permission = "manage_settings"
	PermViewReports    Permission = "view_reports"
)

var allPermissions = []Permission{
	PermViewDashboard,
	PermViewAnalytics,
	PermViewAIInsight,
	PermViewProducts,
	PermCreateProduct,
	PermEditProduct,
	PermDeleteProduct,
	PermUsePOS,
	PermVoidTransaction,
	PermApplyDiscount,
	PermUseChat,
	PermViewProfile,
	PermEditOwnProfile,
	PermManageUsers,
	PermManageSettings,
	PermViewReports,
}

// AllPermissions lists every permission in declaration order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// Valid reports whether p is a known permission.
func (p Permission) Valid() bool {
	_, ok := permissionIndex[p]
	return ok
}

// ParsePermission converts s into a known Permission.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	return p, p.Valid()
}

var permissionIndex = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// rolePermissions is the static role → permission table. Built once, never mutated.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: allPermissions,
	RoleManager: {
		PermViewDashboard,
		PermViewAnalytics,
		PermViewAIInsight,
		PermViewProducts,
		PermCreateProduct,
		PermEditProduct,
		PermDeleteProduct,
		PermUsePOS,
		PermVoidTransaction,
		PermApplyDiscount,
		PermUseChat,
		PermViewProfile,
		PermEditOwnProfile,
		PermViewReports,
	},
	RoleCashier: {
		PermViewProducts,
		PermUsePOS,
		PermApplyDiscount,
		PermUseChat,
		PermViewProfile,
		PermEditOwnProfile,
	},
	RoleViewer: {
		PermViewDashboard,
		PermViewProducts,
		PermViewProfile,
	},
}

var roleGrants = func() map[Role]map[Permission]struct{} {
	out := make(map[Role]map[Permission]struct{}, len(rolePermissions))
	for role, perms := range rolePermissions {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
		}
		out[role] = set
	}
	return out
}()

// PermissionsFor returns a copy of the permissions granted to role.
// An unknown role yields an empty slice.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// RoleGrants reports whether role holds permission p.
func RoleGrants(role Role, p Permission) bool {
	_, ok := roleGrants[role][p]
	return ok
}
