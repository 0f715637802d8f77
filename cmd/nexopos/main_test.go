package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexoai/pos-client/config"
	"github.com/nexoai/pos-client/internal/adapters/kvstore"
	"github.com/nexoai/pos-client/internal/bootstrap"
	"github.com/nexoai/pos-client/internal/testutil"
)

type cliFixture struct {
	backend *testutil.FakeBackend
	store   *kvstore.MemoryStore
	cfg     config.AppConfig
	out     bytes.Buffer
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	f := &cliFixture{
		backend: testutil.NewFakeBackend(t),
		store:   kvstore.NewMemoryStore(),
	}
	f.backend.AddAccount("pw", testutil.NewBackendUser().WithEmail("cash@shop.test").WithRole("EMPLOYEE").Build())
	f.cfg = config.AppConfig{API: config.APIConfig{BaseURL: f.backend.URL()}}
	f.cfg.Sanitize()
	return f
}

// exec runs one command against a fresh runtime over the shared store,
// the way separate CLI invocations would.
func (f *cliFixture) exec(t *testing.T, name string, args ...string) error {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	rt, err := bootstrap.BuildSessionRuntime(bootstrap.RuntimeDeps{Config: &f.cfg, Store: f.store, Logger: logger})
	require.NoError(t, err)

	f.out.Reset()
	cc := &commandContext{Ctx: context.Background(), Logger: logger, Config: f.cfg, Runtime: rt, Out: &f.out}
	cmd, ok := commands()[name]
	require.True(t, ok, "unknown command %s", name)
	return runWithRuntime(cc, cmd, args)
}

func TestCLI_LoginWhoAmITabsLogout(t *testing.T) {
	f := newCLIFixture(t)

	require.NoError(t, f.exec(t, "whoami"))
	assert.Equal(t, "Not signed in\n", f.out.String())

	require.NoError(t, f.exec(t, "login", "-email", "cash@shop.test", "-password", "pw"))
	assert.Equal(t, "Signed in as cash@shop.test (cashier)\n", f.out.String())

	require.NoError(t, f.exec(t, "whoami"))
	assert.Contains(t, f.out.String(), "cash@shop.test")
	assert.Contains(t, f.out.String(), "use_pos")
	assert.NotContains(t, f.out.String(), "view_dashboard")

	require.NoError(t, f.exec(t, "tabs"))
	tabs := f.out.String()
	assert.Contains(t, tabs, "pos/index")
	assert.Contains(t, tabs, "chat/index")
	assert.NotContains(t, tabs, "dashboard/index")

	require.NoError(t, f.exec(t, "logout"))
	assert.Equal(t, "Signed out\n", f.out.String())

	require.NoError(t, f.exec(t, "whoami"))
	assert.Equal(t, "Not signed in\n", f.out.String())
}

func TestCLI_Can(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.exec(t, "login", "-email", "cash@shop.test", "-password", "pw"))

	require.NoError(t, f.exec(t, "can", "use_pos"))
	assert.Equal(t, "allowed\n", f.out.String())

	err := f.exec(t, "can", "use_pos", "view_dashboard")
	require.ErrorIs(t, err, errDenied)
	assert.Equal(t, "denied\n", f.out.String())

	require.NoError(t, f.exec(t, "can", "-any", "use_pos", "view_dashboard"))

	err = f.exec(t, "can", "fly")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown permission")

	require.Error(t, f.exec(t, "can", "-any", "-all", "use_pos"))
}

func TestCLI_GetRefreshesExpiredToken(t *testing.T) {
	f := newCLIFixture(t)
	require.NoError(t, f.exec(t, "login", "-email", "cash@shop.test", "-password", "pw"))
	f.backend.ExpireAccessTokens()

	require.NoError(t, f.exec(t, "get", testutil.FakeProductsPath))
	assert.Contains(t, f.out.String(), `"name": "Cafe tinto"`)
	assert.GreaterOrEqual(t, f.backend.Hits(testutil.FakeRefreshPath), 1)
}

func TestCLI_LoginRejected(t *testing.T) {
	f := newCLIFixture(t)

	err := f.exec(t, "login", "-email", "cash@shop.test", "-password", "wrong")
	require.Error(t, err)
	assert.Empty(t, f.out.String())

	keys, err := f.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestCLI_Register(t *testing.T) {
	f := newCLIFixture(t)

	err := f.exec(t, "register",
		"-email", "new@shop.test", "-password", "pw", "-business", "Tienda Sol",
		"-name", "Sol", "-lastname", "Vega", "-phone", "3001234567")
	require.NoError(t, err)
	assert.Equal(t, "Registered Tienda Sol and signed in as new@shop.test (admin)\n", f.out.String())

	err = f.exec(t, "register", "-email", "x@shop.test", "-password", "pw", "-business", "B", "-phone", "12ab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid phone number")
}

func TestCLI_GetRequiresPath(t *testing.T) {
	f := newCLIFixture(t)
	require.Error(t, f.exec(t, "get"))
}

func TestMockUsersListsDevUsers(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	err = runMockUsers(&commandContext{Ctx: context.Background(), Out: os.Stdout}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "admin@nexopos.dev")
	require.Contains(t, outStr, "VIEWER")
}

func TestPrintUsageListsCommands(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printUsage(&buf))
	for name := range commands() {
		assert.Contains(t, buf.String(), name)
	}
}
