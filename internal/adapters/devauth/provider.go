// Package devauth provides a config-selected identity provider backed by a fixed
// set of mock users, for local development and demos without a POS backend.
package devauth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

const (
	defaultIssuer     = "nexopos-devauth"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	useAccess  = "access"
	useRefresh = "refresh"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// MockUser is one selectable developer identity.
type MockUser struct {
	Key  string
	User domainauth.BackendUser
}

// DefaultUsers returns the built-in mock users: one per backend role, plus a
// VIEWER account whose role is outside the backend vocabulary.
func DefaultUsers() []MockUser {
	return []MockUser{
		{Key: "admin", User: domainauth.BackendUser{
			Email: "admin@nexopos.dev", Role: "OWNER", CompanyID: "dev-company",
			FirstName: "Ada", LastName: "Admin", PhoneNumber: "3000000001",
		}},
		{Key: "employee", User: domainauth.BackendUser{
			Email: "employee@nexopos.dev", Role: "EMPLOYEE", CompanyID: "dev-company",
			FirstName: "Elena", LastName: "Empleada", PhoneNumber: "3000000002",
		}},
		{Key: "manager", User: domainauth.BackendUser{
			Email: "manager@nexopos.dev", Role: "MANAGER", CompanyID: "dev-company",
			FirstName: "Mario", LastName: "Manager", PhoneNumber: "3000000003",
		}},
		{Key: "viewer", User: domainauth.BackendUser{
			Email: "viewer@nexopos.dev", Role: "VIEWER", CompanyID: "dev-company",
			FirstName: "Vera", LastName: "Viewer",
		}},
	}
}

// TokenStore is the part of the session vault WhoAmI needs: it reads the
// stored tokens and persists a refreshed access token.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetAccessToken(ctx context.Context, token string) error
}

// Config controls the mock provider. SigningKey and Tokens are required.
type Config struct {
	SigningKey string
	Issuer     string
	AccessTTL  time.Duration // default 15m when zero
	RefreshTTL time.Duration // default 7d when zero
	Users      []MockUser    // default DefaultUsers() when empty
	Tokens     TokenStore
	Now        func() time.Time
}

// claims are the JWT claims minted for mock sessions.
type claims struct {
	jwt.RegisteredClaims
	Use       string `json:"use"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Provider implements ports.IdentityProvider over the mock users.
// Any non-empty password is accepted for a known email.
type Provider struct {
	key        []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	users      []MockUser
	byEmail    map[string]MockUser
	tokens     TokenStore
	flight     singleflight.Group
	now        func() time.Time
}

// NewProvider constructs a mock identity provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.SigningKey == "" {
		return nil, errors.New("dev auth: SigningKey is required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("dev auth: Tokens is required")
	}

	p := &Provider{
		key:        []byte(cfg.SigningKey),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		tokens:     cfg.Tokens,
		now:        cfg.Now,
	}
	if p.issuer == "" {
		p.issuer = defaultIssuer
	}
	if p.accessTTL <= 0 {
		p.accessTTL = defaultAccessTTL
	}
	if p.refreshTTL <= 0 {
		p.refreshTTL = defaultRefreshTTL
	}
	if p.now == nil {
		p.now = time.Now
	}

	users := cfg.Users
	if len(users) == 0 {
		users = DefaultUsers()
	}
	p.users = append([]MockUser(nil), users...)
	p.byEmail = make(map[string]MockUser, len(users))
	for _, u := range users {
		email := strings.ToLower(strings.TrimSpace(u.User.Email))
		if email == "" {
			return nil, fmt.Errorf("dev auth: mock user %q has no email", u.Key)
		}
		p.byEmail[email] = u
	}
	return p, nil
}

// Users returns the configured mock users.
func (p *Provider) Users() []MockUser {
	return append([]MockUser(nil), p.users...)
}

// Lookup finds a mock user by key or email, case-insensitively.
func (p *Provider) Lookup(keyOrEmail string) (MockUser, bool) {
	needle := strings.ToLower(strings.TrimSpace(keyOrEmail))
	if u, ok := p.byEmail[needle]; ok {
		return u, true
	}
	for _, u := range p.users {
		if strings.EqualFold(u.Key, needle) {
			return u, true
		}
	}
	return MockUser{}, false
}

func (p *Provider) Login(_ context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	u, ok := p.byEmail[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || creds.Password == "" {
		return domainauth.LoginResult{}, apperrors.InvalidCredentials("Invalid email or password.")
	}

	access, err := p.mint(u.User, useAccess, p.accessTTL)
	if err != nil {
		return domainauth.LoginResult{}, err
	}
	refresh, err := p.mint(u.User, useRefresh, p.refreshTTL)
	if err != nil {
		return domainauth.LoginResult{}, err
	}
	return domainauth.LoginResult{
		Tokens: domainauth.TokenPair{AccessToken: access, RefreshToken: refresh},
		User:   u.User,
	}, nil
}

func (p *Provider) Register(context.Context, domainauth.Registration) error {
	return apperrors.Unsupported("Registration is not available with mock users.")
}

// Refresh mints a new access token. The refresh token is not rotated.
func (p *Provider) Refresh(_ context.Context, refreshToken string) (domainauth.TokenPair, error) {
	u, err := p.verify(refreshToken, useRefresh)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	access, err := p.mint(u, useAccess, p.accessTTL)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{AccessToken: access}, nil
}

// WhoAmI verifies the stored access token and returns its user. An expired
// access token is refreshed once with the stored refresh token and the new
// access token is persisted; a failed refresh expires the session.
func (p *Provider) WhoAmI(ctx context.Context) (*domainauth.BackendUser, error) {
	token, err := p.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if token == "" {
		return nil, apperrors.Unauthorized("No session.")
	}
	u, err := p.verify(token, useAccess)
	if errors.Is(err, jwt.ErrTokenExpired) {
		u, err = p.refreshStored(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// refreshStored exchanges the stored refresh token for a new access token.
// Concurrent callers share one exchange.
func (p *Provider) refreshStored(ctx context.Context) (domainauth.BackendUser, error) {
	v, err, _ := p.flight.Do("refresh", func() (any, error) {
		refresh, err := p.tokens.RefreshToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("read refresh token: %w", err)
		}
		if refresh == "" {
			return nil, apperrors.SessionExpired("Session expired. Please sign in again.")
		}
		pair, err := p.Refresh(ctx, refresh)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeSessionExpired, "Session expired. Please sign in again.")
		}
		if err := p.tokens.SetAccessToken(ctx, pair.AccessToken); err != nil {
			return nil, fmt.Errorf("persist refreshed access token: %w", err)
		}
		return p.verify(pair.AccessToken, useAccess)
	})
	if err != nil {
		return domainauth.BackendUser{}, err
	}
	u, _ := v.(domainauth.BackendUser)
	return u, nil
}

func (p *Provider) mint(u domainauth.BackendUser, use string, ttl time.Duration) (string, error) {
	now := p.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    p.issuer,
			Subject:   u.Email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Use:       use,
		Role:      u.Role,
		CompanyID: u.CompanyID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.key)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "sign mock token")
	}
	return signed, nil
}

// verify checks signature, issuer, expiry and token use, then resolves the
// subject against the current mock users.
func (p *Provider) verify(token, use string) (domainauth.BackendUser, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return p.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return domainauth.BackendUser{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Mock token is invalid or expired.")
	}
	if c.Use != use {
		return domainauth.BackendUser{}, apperrors.Unauthorized("Mock token has the wrong use.")
	}

	u, ok := p.byEmail[strings.ToLower(c.Subject)]
	if !ok {
		return domainauth.BackendUser{}, apperrors.Unauthorized("Mock user no longer exists.")
	}
	return u.User, nil
}
