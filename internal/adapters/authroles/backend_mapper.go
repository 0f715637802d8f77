package authroles

import (
	"log/slog"
	"strings"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// backendRoles is the backend vocabulary understood by the client.
var backendRoles = map[string]domainauth.Role{
	"OWNER":    domainauth.RoleAdmin,
	"ADMIN":    domainauth.RoleAdmin,
	"MANAGER":  domainauth.RoleManager,
	"EMPLOYEE": domainauth.RoleCashier,
}

// BackendRoleMapper maps backend role strings to frontend roles.
// Unrecognized roles map to the least-privileged role.
type BackendRoleMapper struct {
	Logger *slog.Logger
}

// Map normalizes backendRole (case-insensitive) to a frontend role.
func (m BackendRoleMapper) Map(backendRole string) domainauth.Role {
	if role, ok := backendRoles[normalize(backendRole)]; ok {
		return role
	}

	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("unknown backend role, assigning viewer", "backend_role", backendRole)
	return domainauth.RoleViewer
}

// IsValidBackendRole reports whether role is part of the backend vocabulary.
func IsValidBackendRole(role string) bool {
	_, ok := backendRoles[normalize(role)]
	return ok
}

func normalize(role string) string {
	return strings.ToUpper(strings.TrimSpace(role))
}
