package oidc

// Package oidc provides an OpenID Connect identity source for the session client:
// resource-owner password login, refresh through oauth2 and userinfo-based
// session validation.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	jmespath "github.com/jmespath-community/go-jmespath"
	"golang.org/x/oauth2"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

// Default claim expressions.
const (
	DefaultRoleClaim    = "role"
	DefaultCompanyClaim = "company_id"
)

var _ ports.Authenticator = (*Provider)(nil)

// Provider implements ports.Authenticator against an OIDC identity provider.
type Provider struct {
	config     *oauth2.Config
	httpClient *http.Client

	// go-oidc provider and verifier
	oidcProvider *gooidc.Provider
	verifier     *gooidc.IDTokenVerifier
	userInfoURL  string

	roleClaim    string
	companyClaim string
}

// ProviderConfig holds configuration for the OIDC provider.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scope        string
	DiscoveryURL string
	// RoleClaim is a JMESPath expression selecting the backend role from the
	// token or userinfo claims, e.g. "realm_access.roles". Default "role".
	RoleClaim string
	// CompanyClaim selects the point-of-sale identifier. Default "company_id",
	// falling back to the subject.
	CompanyClaim string
	HTTPClient   *http.Client // Optional, defaults to a 30s client
}

// DiscoveryDocument represents the OIDC discovery document.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	UserinfoEndpoint      string `json:"userinfo_endpoint"`
	JwksURI               string `json:"jwks_uri"`
}

// NewProvider discovers the issuer and builds the provider.
func NewProvider(config ProviderConfig) (*Provider, error) {
	if config.ClientID == "" {
		return nil, errors.New("client ID is required")
	}
	if config.DiscoveryURL == "" {
		return nil, errors.New("discovery URL is required")
	}

	roleClaim := strings.TrimSpace(config.RoleClaim)
	if roleClaim == "" {
		roleClaim = DefaultRoleClaim
	}
	if _, err := jmespath.Compile(roleClaim); err != nil {
		return nil, fmt.Errorf("invalid role claim expression %q: %w", roleClaim, err)
	}
	companyClaim := strings.TrimSpace(config.CompanyClaim)
	if companyClaim == "" {
		companyClaim = DefaultCompanyClaim
	}
	if _, err := jmespath.Compile(companyClaim); err != nil {
		return nil, fmt.Errorf("invalid company claim expression %q: %w", companyClaim, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	p := &Provider{
		httpClient:   httpClient,
		roleClaim:    roleClaim,
		companyClaim: companyClaim,
	}

	// Single discovery fetch for provider, verifier and endpoints.
	ctx := p.clientContext(context.Background())
	issuer := strings.TrimSuffix(config.DiscoveryURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	op, err := gooidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	p.oidcProvider = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: config.ClientID})

	var doc DiscoveryDocument
	if err := op.Claims(&doc); err != nil {
		return nil, fmt.Errorf("decode discovery document: %w", err)
	}
	p.userInfoURL = doc.UserinfoEndpoint

	p.config = &oauth2.Config{
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Scopes:       strings.Fields(config.Scope),
		Endpoint:     op.Endpoint(),
	}

	return p, nil
}

// UserInfoURL returns the discovered userinfo endpoint, used for session validation.
func (p *Provider) UserInfoURL() string { return p.userInfoURL }

// Login performs the resource-owner password grant.
func (p *Provider) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	ctx = p.clientContext(ctx)

	tok, err := p.config.PasswordCredentialsToken(ctx, creds.Email, creds.Password)
	if err != nil {
		return domainauth.LoginResult{}, mapTokenError(err, true)
	}

	claims, err := p.claimsFor(ctx, tok)
	if err != nil {
		return domainauth.LoginResult{}, err
	}
	user, ok := p.profileFromClaims(claims)
	if !ok {
		return domainauth.LoginResult{}, apperrors.Wrap(
			errors.New("no email claim"), apperrors.ErrCodeUpstream, "identity provider returned an incomplete profile")
	}

	return domainauth.LoginResult{
		Tokens: domainauth.TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken},
		User:   user,
	}, nil
}

func (p *Provider) Register(context.Context, domainauth.Registration) error {
	return apperrors.Unsupported("Registration is managed by the identity provider.")
}

// Refresh exchanges refreshToken through the oauth2 token source. The returned
// pair carries a refresh token only when the provider rotated it.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	ctx = p.clientContext(ctx)

	tok, err := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return domainauth.TokenPair{}, mapTokenError(err, false)
	}

	pair := domainauth.TokenPair{AccessToken: tok.AccessToken}
	if tok.RefreshToken != refreshToken {
		pair.RefreshToken = tok.RefreshToken
	}
	return pair, nil
}

// DecodeProfile maps a userinfo body to a backend user.
func (p *Provider) DecodeProfile(body []byte) (domainauth.BackendUser, bool) {
	var claims map[string]any
	if err := json.Unmarshal(body, &claims); err != nil {
		return domainauth.BackendUser{}, false
	}
	return p.profileFromClaims(claims)
}

func (p *Provider) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// claimsFor reads the verified id_token claims when openid is in scope and an
// id_token was issued, and the userinfo claims otherwise.
func (p *Provider) claimsFor(ctx context.Context, tok *oauth2.Token) (map[string]any, error) {
	claims := map[string]any{}

	if p.hasOpenIDScope() {
		if rawID, err := getIDTokenFromToken(tok); err == nil {
			idTok, verr := p.verifier.Verify(ctx, rawID)
			if verr != nil {
				return nil, apperrors.Wrap(verr, apperrors.ErrCodeUpstream, "id_token verification failed")
			}
			if cerr := idTok.Claims(&claims); cerr != nil {
				return nil, apperrors.Wrap(cerr, apperrors.ErrCodeUpstream, "parse id_token claims")
			}
			return claims, nil
		}
	}

	ui, err := p.oidcProvider.UserInfo(ctx, oauth2.StaticTokenSource(tok))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "fetch user info")
	}
	if err := ui.Claims(&claims); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeUpstream, "decode user info")
	}
	return claims, nil
}

// profileFromClaims maps standard and AD-style claims into a backend user.
// ok is false when no email can be found.
func (p *Provider) profileFromClaims(claims map[string]any) (domainauth.BackendUser, bool) {
	email := firstNonEmpty(stringClaim(claims, "email"), stringClaim(claims, "mail"))
	if email == "" {
		if upn := stringClaim(claims, "preferred_username"); strings.Contains(upn, "@") {
			email = upn
		}
	}
	if email == "" {
		return domainauth.BackendUser{}, false
	}

	first := firstNonEmpty(stringClaim(claims, "given_name"), stringClaim(claims, "firstname"))
	last := firstNonEmpty(stringClaim(claims, "family_name"), stringClaim(claims, "lastname"))
	if first == "" && last == "" {
		first, last, _ = strings.Cut(stringClaim(claims, "name"), " ")
	}

	return domainauth.BackendUser{
		Email:       email,
		Role:        p.searchString(p.roleClaim, claims),
		CompanyID:   firstNonEmpty(p.searchString(p.companyClaim, claims), stringClaim(claims, "sub")),
		FirstName:   first,
		LastName:    last,
		PhoneNumber: stringClaim(claims, "phone_number"),
	}, true
}

// searchString evaluates expr and returns the first string it yields.
func (p *Provider) searchString(expr string, claims map[string]any) string {
	v, err := jmespath.Search(expr, claims)
	if err != nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// mapTokenError translates token endpoint failures. invalid_grant means the
// credentials (or refresh token) were rejected.
func mapTokenError(err error, public bool) error {
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return apperrors.MapTransportError(err)
	}

	status := http.StatusBadGateway
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	if re.ErrorCode == "invalid_grant" {
		status = http.StatusUnauthorized
	}
	appErr := apperrors.FromHTTPStatus(status, re.ErrorDescription, public)
	appErr.Cause = err
	return appErr
}

func stringClaim(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// hasOpenIDScope reports whether the configured scopes include "openid".
func (p *Provider) hasOpenIDScope() bool {
	return slices.Contains(p.config.Scopes, "openid")
}

// getIDTokenFromToken extracts the id_token from oauth2.Token.
func getIDTokenFromToken(tok *oauth2.Token) (string, error) {
	if tok == nil {
		return "", errors.New("nil token")
	}
	raw := tok.Extra("id_token")
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.New("missing id_token in token response")
	}
	return s, nil
}
