// Package core provides the persisted session vault built over a key-value store.
package core

import (
	"context"
	"encoding/json"
	"errors"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

// Storage keys of the persisted session. These are part of the on-device
// format and must not change.
const (
	KeyAccessToken  = "@nexoai:access_token"
	KeyRefreshToken = "@nexoai:refresh_token"
	KeyUserData     = "@nexoai:user_data"
)

// SessionKeys lists the keys owned by the vault.
func SessionKeys() []string {
	return []string{KeyAccessToken, KeyRefreshToken, KeyUserData}
}

// Vault gives typed access to the three persisted session entries.
// Values are stored as JSON: tokens as JSON strings, the user as an object.
type Vault struct {
	store ports.KeyValueStore
}

// NewVault creates a Vault over store.
func NewVault(store ports.KeyValueStore) *Vault {
	return &Vault{store: store}
}

// AccessToken returns the stored access token, or "" when none is stored.
func (v *Vault) AccessToken(ctx context.Context) (string, error) {
	return v.getString(ctx, KeyAccessToken)
}

// RefreshToken returns the stored refresh token, or "" when none is stored.
func (v *Vault) RefreshToken(ctx context.Context) (string, error) {
	return v.getString(ctx, KeyRefreshToken)
}

// HasAccessToken reports whether an access token is stored.
func (v *Vault) HasAccessToken(ctx context.Context) (bool, error) {
	tok, err := v.AccessToken(ctx)
	if err != nil {
		return false, err
	}
	return tok != "", nil
}

// User returns the persisted user. ok is false when no user record is stored.
func (v *Vault) User(ctx context.Context) (domainauth.User, bool, error) {
	raw, err := v.store.Get(ctx, KeyUserData)
	if err != nil {
		return domainauth.User{}, false, apperrors.Storage(err, "get", KeyUserData)
	}
	if raw == nil {
		return domainauth.User{}, false, nil
	}

	var user domainauth.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return domainauth.User{}, false, apperrors.Storage(err, "decode", KeyUserData)
	}
	return user, true, nil
}

// SaveSession persists both tokens and then the user record.
func (v *Vault) SaveSession(ctx context.Context, tokens domainauth.TokenPair, user domainauth.User) error {
	if err := v.SetAccessToken(ctx, tokens.AccessToken); err != nil {
		return err
	}
	if err := v.SetRefreshToken(ctx, tokens.RefreshToken); err != nil {
		return err
	}
	return v.SaveUser(ctx, user)
}

// SetAccessToken stores the access token.
func (v *Vault) SetAccessToken(ctx context.Context, token string) error {
	return v.setJSON(ctx, KeyAccessToken, token)
}

// SetRefreshToken stores the refresh token.
func (v *Vault) SetRefreshToken(ctx context.Context, token string) error {
	return v.setJSON(ctx, KeyRefreshToken, token)
}

// SaveUser stores the user record.
func (v *Vault) SaveUser(ctx context.Context, user domainauth.User) error {
	return v.setJSON(ctx, KeyUserData, user)
}

// Clear removes exactly the three session keys. Clearing an empty vault is a no-op.
// Every key is attempted even when one removal fails.
func (v *Vault) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range SessionKeys() {
		if err := v.store.Remove(ctx, key); err != nil {
			errs = append(errs, apperrors.Storage(err, "remove", key))
		}
	}
	return errors.Join(errs...)
}

func (v *Vault) getString(ctx context.Context, key string) (string, error) {
	raw, err := v.store.Get(ctx, key)
	if err != nil {
		return "", apperrors.Storage(err, "get", key)
	}
	if raw == nil {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", apperrors.Storage(err, "decode", key)
	}
	return s, nil
}

func (v *Vault) setJSON(ctx context.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return apperrors.Storage(err, "encode", key)
	}
	if err := v.store.Set(ctx, key, raw); err != nil {
		return apperrors.Storage(err, "set", key)
	}
	return nil
}
