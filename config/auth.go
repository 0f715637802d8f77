package config

import (
	"fmt"
	"strings"
	"time"
)

// AuthMode selects the identity provider behind the session manager.
type AuthMode string

const (
	// AuthModeAPI authenticates against the POS backend auth endpoints.
	AuthModeAPI AuthMode = "api"
	// AuthModeMock uses the built-in mock users (for development only).
	AuthModeMock AuthMode = "mock"
	// AuthModeOIDC authenticates against an OpenID Connect provider.
	AuthModeOIDC AuthMode = "oidc"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "api", "mock", "oidc":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: api, mock, oidc)", v)
	}
}

// OIDCConfig contains OpenID Connect configuration.
type OIDCConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	Scope        string `env:"SCOPE"         envDefault:"openid profile email offline_access"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
	// RoleClaim is a JMESPath expression evaluated on the token claims.
	RoleClaim string `env:"ROLE_CLAIM"    envDefault:"role"`
	// CompanyClaim is a JMESPath expression for the point-of-sale identifier.
	CompanyClaim string `env:"COMPANY_CLAIM" envDefault:"company_id"`
}

// Scopes splits Scope on whitespace and commas.
func (c OIDCConfig) Scopes() []string {
	return strings.FieldsFunc(c.Scope, func(r rune) bool {
		return r == ' ' || r == ','
	})
}

// DevAuthConfig controls the mock identity provider.
// Used when AUTH_MODE=mock for development and testing.
type DevAuthConfig struct {
	SigningKey string        `env:"SIGNING_KEY" envDefault:"nexopos-dev-signing-key"`
	Issuer     string        `env:"ISSUER"      envDefault:"nexopos-devauth"`
	AccessTTL  time.Duration `env:"ACCESS_TTL"  envDefault:"15m"`
	RefreshTTL time.Duration `env:"REFRESH_TTL" envDefault:"168h"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	// Mode determines which identity provider to use.
	Mode AuthMode `env:"AUTH_MODE" envDefault:"api"`

	// OIDC configuration (used when Mode=oidc).
	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`

	// DevAuth configuration (used when Mode=mock).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}

// Sanitize trims provider settings and restores defaults for blanked values.
func (c *AuthConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = AuthModeAPI
	}

	c.OIDC.ClientID = strings.TrimSpace(c.OIDC.ClientID)
	c.OIDC.DiscoveryURL = strings.TrimSpace(c.OIDC.DiscoveryURL)
	if c.OIDC.RoleClaim = strings.TrimSpace(c.OIDC.RoleClaim); c.OIDC.RoleClaim == "" {
		c.OIDC.RoleClaim = "role"
	}
	if c.OIDC.CompanyClaim = strings.TrimSpace(c.OIDC.CompanyClaim); c.OIDC.CompanyClaim == "" {
		c.OIDC.CompanyClaim = "company_id"
	}

	if c.DevAuth.AccessTTL <= 0 {
		c.DevAuth.AccessTTL = 15 * time.Minute
	}
	if c.DevAuth.RefreshTTL <= 0 {
		c.DevAuth.RefreshTTL = 7 * 24 * time.Hour
	}
}

// Validate reports settings the selected mode cannot run without.
func (c AuthConfig) Validate() error {
	switch c.Mode {
	case AuthModeOIDC:
		if c.OIDC.DiscoveryURL == "" {
			return fmt.Errorf("AUTH_OIDC_DISCOVERY_URL is required when AUTH_MODE=%s", c.Mode)
		}
		if c.OIDC.ClientID == "" {
			return fmt.Errorf("AUTH_OIDC_CLIENT_ID is required when AUTH_MODE=%s", c.Mode)
		}
	case AuthModeMock:
		if strings.TrimSpace(c.DevAuth.SigningKey) == "" {
			return fmt.Errorf("DEV_AUTH_SIGNING_KEY is required when AUTH_MODE=%s", c.Mode)
		}
	}
	return nil
}
