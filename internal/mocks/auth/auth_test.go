package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

func TestMockIdentityProvider_Defaults(t *testing.T) {
	provider := NewMockIdentityProvider()
	ctx := context.Background()

	res, err := provider.Login(ctx, domainauth.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "access-1", res.Tokens.AccessToken)
	assert.Equal(t, "refresh-1", res.Tokens.RefreshToken)
	assert.Equal(t, "OWNER", res.User.Role)

	// Second call should increment counters
	res, err = provider.Login(ctx, domainauth.Credentials{Email: "a@b.c", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "access-2", res.Tokens.AccessToken)

	pair, err := provider.Refresh(ctx, "refresh-2")
	require.NoError(t, err)
	assert.Equal(t, "refreshed-1", pair.AccessToken)
	assert.Empty(t, pair.RefreshToken)

	user, err := provider.WhoAmI(ctx)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "mock.owner@example.com", user.Email)

	require.NoError(t, provider.Register(ctx, domainauth.Registration{}))

	logins, registers, refreshes, whoamis := provider.Calls()
	assert.Equal(t, 2, logins)
	assert.Equal(t, 1, registers)
	assert.Equal(t, 1, refreshes)
	assert.Equal(t, 1, whoamis)
}

func TestMockIdentityProvider_CustomFuncs(t *testing.T) {
	boom := errors.New("boom")
	provider := &MockIdentityProvider{
		LoginFunc: func(context.Context, domainauth.Credentials) (domainauth.LoginResult, error) {
			return domainauth.LoginResult{}, boom
		},
		WhoAmIFunc: func(context.Context) (*domainauth.BackendUser, error) {
			return nil, nil
		},
	}

	_, err := provider.Login(context.Background(), domainauth.Credentials{})
	require.ErrorIs(t, err, boom)

	user, err := provider.WhoAmI(context.Background())
	require.NoError(t, err)
	assert.Nil(t, user)
}

func TestMemoryStore_Basics(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	v, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, v)

	require.NoError(t, store.Set(ctx, "b", []byte("2")))
	require.NoError(t, store.Set(ctx, "a", []byte("1")))

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, store.Remove(ctx, "a"))
	require.NoError(t, store.Remove(ctx, "a"))
	_, ok := store.Raw("a")
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	keys, err = store.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestMemoryStore_FailureInjection(t *testing.T) {
	boom := errors.New("disk full")
	store := NewMemoryStore()
	store.FailSet = map[string]error{"k": boom}

	err := store.Set(context.Background(), "k", []byte("v"))
	require.ErrorIs(t, err, boom)
	require.NoError(t, store.Set(context.Background(), "other", []byte("v")))
}

func TestStaticRoleMapper(t *testing.T) {
	mapper := StaticRoleMapper{Roles: map[string]domainauth.Role{"BOSS": domainauth.RoleAdmin}}
	assert.Equal(t, domainauth.RoleAdmin, mapper.Map("BOSS"))
	assert.Equal(t, domainauth.RoleViewer, mapper.Map("other"))

	mapper.Default = domainauth.RoleCashier
	assert.Equal(t, domainauth.RoleCashier, mapper.Map("other"))
}
