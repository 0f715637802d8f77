package ports_test

import (
	"testing"

	"github.com/nexoai/pos-client/internal/core"
	mocks "github.com/nexoai/pos-client/internal/mocks/auth"
	"github.com/nexoai/pos-client/internal/ports"
)

// This test only verifies that our mocks conform to the ports at compile time.
func TestMocksImplementPorts(t *testing.T) {
	t.Helper()

	var _ ports.IdentityProvider = (*mocks.MockIdentityProvider)(nil)
	var _ ports.KeyValueStore = (*mocks.MemoryStore)(nil)
	var _ ports.RoleMapper = mocks.StaticRoleMapper{}
	var _ ports.SessionVault = (*core.Vault)(nil)
}
