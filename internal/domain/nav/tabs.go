// Package nav describes the client's navigation tabs and filters them by the
// capabilities of the signed-in user.
package nav

import (
	"slices"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// Tab is one entry of the main navigation.
type Tab struct {
	Name               string
	Title              string
	Icon               string
	RequiredPermission domainauth.Permission // empty means visible to everyone
	AllowedRoles       []domainauth.Role     // empty means any role
}

// DefaultTabs returns the standard tab layout, in display order.
func DefaultTabs() []Tab {
	return []Tab{
		{Name: "chat/index", Title: "Chat", Icon: "chatbubbles-outline", RequiredPermission: domainauth.PermUseChat},
		{Name: "products/index", Title: "Products", Icon: "pricetags-outline", RequiredPermission: domainauth.PermViewProducts},
		{Name: "dashboard/index", Title: "Dashboard", Icon: "grid-outline", RequiredPermission: domainauth.PermViewDashboard},
		{Name: "pos/index", Title: "POS", Icon: "calculator-outline", RequiredPermission: domainauth.PermUsePOS},
		{Name: "profile/index", Title: "Profile", Icon: "person-outline", RequiredPermission: domainauth.PermViewProfile},
	}
}

// VisibleTabs keeps the tabs checker may see, preserving order.
// A nil checker only sees tabs without requirements.
func VisibleTabs(tabs []Tab, checker domainauth.Checker) []Tab {
	out := make([]Tab, 0, len(tabs))
	for _, tab := range tabs {
		if tab.visibleTo(checker) {
			out = append(out, tab)
		}
	}
	return out
}

func (t Tab) visibleTo(checker domainauth.Checker) bool {
	if t.RequiredPermission == "" && len(t.AllowedRoles) == 0 {
		return true
	}
	if checker == nil || !checker.IsAuthenticated() {
		return false
	}
	if t.RequiredPermission != "" && !checker.HasPermission(t.RequiredPermission) {
		return false
	}
	if len(t.AllowedRoles) > 0 && !slices.ContainsFunc(t.AllowedRoles, checker.HasRole) {
		return false
	}
	return true
}
