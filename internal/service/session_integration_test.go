package service

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexoai/pos-client/internal/adapters/authroles"
	"github.com/nexoai/pos-client/internal/adapters/backend"
	"github.com/nexoai/pos-client/internal/adapters/devauth"
	"github.com/nexoai/pos-client/internal/adapters/kvstore"
	"github.com/nexoai/pos-client/internal/core"
	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/testutil"
)

type stack struct {
	backend *testutil.FakeBackend
	store   *kvstore.MemoryStore
	client  *backend.Client
	mgr     *SessionManager
	events  chan string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	s := &stack{
		backend: testutil.NewFakeBackend(t),
		store:   kvstore.NewMemoryStore(),
		events:  make(chan string, 64),
	}
	s.backend.AddAccount("pw", testutil.NewBackendUser().WithEmail("mgr@shop.test").WithRole("MANAGER").Build())
	vault := core.NewVault(s.store)

	client, err := backend.NewClient(backend.ClientOptions{
		BaseURL: s.backend.URL(),
		Timeout: 2 * time.Second,
		Vault:   vault,
		Logger:  logger,
	})
	require.NoError(t, err)
	api := backend.NewAuthAPI(client, backend.Paths{})
	client.SetRefresher(api)

	idp, err := backend.NewIdentityProvider(backend.IdentityProviderOptions{Authenticator: api, Client: client})
	require.NoError(t, err)

	mgr, err := NewSessionManager(SessionManagerOptions{
		Provider: idp,
		Vault:    vault,
		Roles:    authroles.BackendRoleMapper{Logger: logger},
		Logger:   logger,
	})
	require.NoError(t, err)
	client.SetSessionExpiredHandler(mgr.HandleSessionExpired)
	mgr.Subscribe(func(snap Snapshot) { s.events <- snap.Event })

	s.client = client
	s.mgr = mgr
	return s
}

func (s *stack) login(t *testing.T) {
	t.Helper()
	require.NoError(t, s.mgr.RestoreSession(context.Background()))
	_, err := s.mgr.Login(context.Background(), "mgr@shop.test", "pw")
	require.NoError(t, err)
}

func (s *stack) sawEvent(name string) bool {
	for {
		select {
		case e := <-s.events:
			if e == name {
				return true
			}
		default:
			return false
		}
	}
}

func TestSessionStack_RefreshThenRetrySucceeds(t *testing.T) {
	s := newStack(t)
	s.login(t)
	s.backend.ExpireAccessTokens()

	var products []map[string]any
	require.NoError(t, s.client.Get(context.Background(), testutil.FakeProductsPath, &products))
	assert.Len(t, products, 2)

	assert.Equal(t, 1, s.backend.Hits(testutil.FakeRefreshPath))
	assert.Equal(t, 2, s.backend.Hits(testutil.FakeProductsPath))
	assert.True(t, s.mgr.IsAuthenticated())
	assert.True(t, s.mgr.HasPermission(domainauth.PermDeleteProduct))
}

func TestSessionStack_FailedRefreshSignsOut(t *testing.T) {
	s := newStack(t)
	s.login(t)
	s.backend.ExpireAccessTokens()
	s.backend.RevokeRefreshTokens()

	err := s.client.Get(context.Background(), testutil.FakeProductsPath, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.True(t, apperrors.IsAuthFailure(err))

	assert.Equal(t, 1, s.backend.Hits(testutil.FakeProductsPath))
	assert.False(t, s.mgr.IsAuthenticated())
	assert.True(t, s.sawEvent(EventExpired))

	keys, err := s.store.Keys(context.Background())
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestSessionStack_ConcurrentUnauthorizedRefreshOnce(t *testing.T) {
	s := newStack(t)
	s.login(t)
	s.backend.ExpireAccessTokens()
	s.backend.SetRefreshDelay(100 * time.Millisecond)

	var wg sync.WaitGroup
	errs := make(chan error, 3)
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.client.Get(context.Background(), testutil.FakeProductsPath, nil)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, s.backend.Hits(testutil.FakeRefreshPath))
	assert.True(t, s.mgr.IsAuthenticated())
}

func TestSessionStack_RestoreRefreshesExpiredAccessToken(t *testing.T) {
	s := newStack(t)
	s.login(t)
	s.backend.ExpireAccessTokens()

	restarted := newStackSharing(t, s)
	require.NoError(t, restarted.RestoreSession(context.Background()))

	user, ok := restarted.User()
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleManager, user.Role)
	assert.Equal(t, 1, s.backend.Hits(testutil.FakeRefreshPath))
}

func TestSessionStack_RestoreWithDeadSessionSignsOut(t *testing.T) {
	s := newStack(t)
	s.login(t)
	s.backend.ExpireAccessTokens()
	s.backend.RevokeRefreshTokens()

	err := s.mgr.RestoreSession(context.Background())
	require.Error(t, err)
	assert.True(t, apperrors.IsSessionExpired(err))
	assert.Equal(t, domainauth.StateUnauthenticated, s.mgr.State())
	assert.False(t, s.mgr.IsLoading())
}

func TestSessionStack_MockRestoreAfterAccessExpiry(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	store := kvstore.NewMemoryStore()
	newManager := func() *SessionManager {
		vault := core.NewVault(store)
		prov, err := devauth.NewProvider(devauth.Config{
			SigningKey: "test-signing-key",
			Tokens:     vault,
			Now:        func() time.Time { return now },
		})
		require.NoError(t, err)
		mgr, err := NewSessionManager(SessionManagerOptions{
			Provider: prov,
			Vault:    vault,
			Roles:    authroles.BackendRoleMapper{Logger: slog.New(slog.DiscardHandler)},
			Logger:   slog.New(slog.DiscardHandler),
		})
		require.NoError(t, err)
		return mgr
	}

	first := newManager()
	require.NoError(t, first.RestoreSession(context.Background()))
	_, err := first.Login(context.Background(), "manager@nexopos.dev", "pw")
	require.NoError(t, err)

	vault := core.NewVault(store)
	oldAccess, err := vault.AccessToken(context.Background())
	require.NoError(t, err)
	oldRefresh, err := vault.RefreshToken(context.Background())
	require.NoError(t, err)

	now = now.Add(20 * time.Minute)
	restarted := newManager()
	require.NoError(t, restarted.RestoreSession(context.Background()))

	user, ok := restarted.User()
	require.True(t, ok)
	assert.Equal(t, domainauth.RoleManager, user.Role)

	access, err := vault.AccessToken(context.Background())
	require.NoError(t, err)
	refresh, err := vault.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, oldAccess, access)
	assert.Equal(t, oldRefresh, refresh)
}

// newStackSharing builds a second manager over the same store and backend,
// as a process restart would.
func newStackSharing(t *testing.T, s *stack) *SessionManager {
	t.Helper()
	vault := core.NewVault(s.store)
	client, err := backend.NewClient(backend.ClientOptions{BaseURL: s.backend.URL(), Vault: vault})
	require.NoError(t, err)
	api := backend.NewAuthAPI(client, backend.Paths{})
	client.SetRefresher(api)
	idp, err := backend.NewIdentityProvider(backend.IdentityProviderOptions{Authenticator: api, Client: client})
	require.NoError(t, err)

	mgr, err := NewSessionManager(SessionManagerOptions{
		Provider: idp,
		Vault:    vault,
		Roles:    authroles.BackendRoleMapper{Logger: slog.New(slog.DiscardHandler)},
		Logger:   slog.New(slog.DiscardHandler),
	})
	require.NoError(t, err)
	client.SetSessionExpiredHandler(mgr.HandleSessionExpired)
	return mgr
}
