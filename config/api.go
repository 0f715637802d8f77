package config

import (
	"strings"
	"time"
)

const (
	defaultAPIBaseURL = "http://localhost:3000"
	defaultAPITimeout = 10 * time.Second
	maxAPITimeout     = 2 * time.Minute
)

// APIConfig contains POS backend connection settings.
type APIConfig struct {
	// BaseURL is the backend root, e.g. "https://api.nexopos.example".
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:3000"`

	// Timeout bounds each request attempt.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	LoginPath    string `env:"LOGIN_PATH"    envDefault:"/auth/login"`
	RegisterPath string `env:"REGISTER_PATH" envDefault:"/auth/register"`
	RefreshPath  string `env:"REFRESH_PATH"  envDefault:"/auth/refresh"`
	MePath       string `env:"ME_PATH"       envDefault:"/users/me"`
}

// Sanitize applies guardrails to backend configuration values.
func (c *APIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultAPIBaseURL
	}

	if c.Timeout <= 0 {
		c.Timeout = defaultAPITimeout
	}
	if c.Timeout > maxAPITimeout {
		c.Timeout = maxAPITimeout
	}

	c.LoginPath = cleanPath(c.LoginPath, "/auth/login")
	c.RegisterPath = cleanPath(c.RegisterPath, "/auth/register")
	c.RefreshPath = cleanPath(c.RefreshPath, "/auth/refresh")
	c.MePath = cleanPath(c.MePath, "/users/me")
}

func cleanPath(p, fallback string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return fallback
	}
	if !strings.HasPrefix(p, "/") && !strings.Contains(p, "://") {
		p = "/" + p
	}
	return p
}
