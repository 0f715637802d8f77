package ports

// Package ports defines interfaces (hexagonal ports) for session-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// Authenticator performs credential operations against an identity backend.
type Authenticator interface {
	// Login exchanges credentials for tokens and the backend user record.
	Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error)

	// Register creates a new business account. It does not sign the user in.
	Register(ctx context.Context, reg domainauth.Registration) error

	// Refresh exchanges a refresh token for a new access token.
	// The returned RefreshToken is empty when the backend does not rotate it.
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
}

// IdentityProvider is an Authenticator that can also validate the current session.
type IdentityProvider interface {
	Authenticator

	// WhoAmI validates the stored session against the backend.
	// A nil user with a nil error means the session is valid but the response
	// carried no usable user record.
	WhoAmI(ctx context.Context) (*domainauth.BackendUser, error)
}

// RoleMapper maps a backend role string to a frontend role.
type RoleMapper interface {
	Map(backendRole string) domainauth.Role
}

// SessionVault is the token view of the persisted session used by request executors.
type SessionVault interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
	SetRefreshToken(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}
