package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nexoai/pos-client/config"
	"github.com/nexoai/pos-client/internal/adapters/authroles"
	"github.com/nexoai/pos-client/internal/adapters/backend"
	"github.com/nexoai/pos-client/internal/adapters/devauth"
	"github.com/nexoai/pos-client/internal/adapters/oidc"
	"github.com/nexoai/pos-client/internal/core"
	"github.com/nexoai/pos-client/internal/observability/statsd"
	"github.com/nexoai/pos-client/internal/ports"
	"github.com/nexoai/pos-client/internal/service"
)

// RuntimeDeps groups dependencies for BuildSessionRuntime.
type RuntimeDeps struct {
	Config  *config.AppConfig
	Store   ports.KeyValueStore
	Metrics statsd.Sink
	Logger  *slog.Logger
	// HTTPClient overrides the executor's HTTP client (tests).
	HTTPClient *http.Client
}

// Runtime is the wired session stack.
type Runtime struct {
	Manager *service.SessionManager
	Client  *backend.Client
	Vault   *core.Vault
	Store   ports.KeyValueStore
	// DevAuth is set only in mock mode.
	DevAuth *devauth.Provider
}

// BuildSessionRuntime wires the vault, request executor, identity provider and
// session manager for the configured AUTH_MODE. The executor's expiry handler
// is bound to the manager so a failed refresh signs the user out.
func BuildSessionRuntime(deps RuntimeDeps) (*Runtime, error) {
	if deps.Config == nil {
		return nil, errors.New("runtime config is required")
	}
	if deps.Store == nil {
		return nil, errors.New("runtime store is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	vault := core.NewVault(deps.Store)
	client, err := backend.NewClient(backend.ClientOptions{
		BaseURL:    cfg.API.BaseURL,
		Timeout:    cfg.API.Timeout,
		HTTPClient: deps.HTTPClient,
		Vault:      vault,
		Logger:     logger.With("component", "executor"),
		Metrics:    deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init request executor: %w", err)
	}

	rt := &Runtime{Client: client, Vault: vault, Store: deps.Store}

	provider, err := buildIdentityProvider(cfg, client, vault, rt)
	if err != nil {
		return nil, err
	}

	mgr, err := service.NewSessionManager(service.SessionManagerOptions{
		Provider: provider,
		Vault:    vault,
		Roles:    authroles.BackendRoleMapper{Logger: logger},
		Logger:   logger.With("component", "session"),
		Metrics:  deps.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("init session manager: %w", err)
	}
	client.SetSessionExpiredHandler(mgr.HandleSessionExpired)
	rt.Manager = mgr

	logger.Debug("session runtime ready", "auth_mode", string(cfg.Auth.Mode), "api", cfg.API.BaseURL)
	return rt, nil
}

//nolint:ireturn // the provider is chosen from AUTH_MODE at runtime.
func buildIdentityProvider(
	cfg *config.AppConfig,
	client *backend.Client,
	vault *core.Vault,
	rt *Runtime,
) (ports.IdentityProvider, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		p, err := devauth.NewProvider(devauth.Config{
			SigningKey: cfg.Auth.DevAuth.SigningKey,
			Issuer:     cfg.Auth.DevAuth.Issuer,
			AccessTTL:  cfg.Auth.DevAuth.AccessTTL,
			RefreshTTL: cfg.Auth.DevAuth.RefreshTTL,
			Tokens:     vault,
		})
		if err != nil {
			return nil, fmt.Errorf("init dev auth: %w", err)
		}
		client.SetRefresher(p)
		rt.DevAuth = p
		return p, nil

	case config.AuthModeOIDC:
		p, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OIDC.ClientID,
			ClientSecret: cfg.Auth.OIDC.ClientSecret,
			Scope:        strings.Join(cfg.Auth.OIDC.Scopes(), " "),
			DiscoveryURL: cfg.Auth.OIDC.DiscoveryURL,
			RoleClaim:    cfg.Auth.OIDC.RoleClaim,
			CompanyClaim: cfg.Auth.OIDC.CompanyClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("init oidc provider: %w", err)
		}
		if p.UserInfoURL() == "" {
			return nil, errors.New("oidc provider does not advertise a userinfo endpoint")
		}
		client.SetRefresher(p)
		idp, err := backend.NewIdentityProvider(backend.IdentityProviderOptions{
			Authenticator: p,
			Client:        client,
			MePath:        p.UserInfoURL(),
			Decoder:       p.DecodeProfile,
		})
		if err != nil {
			return nil, fmt.Errorf("init oidc identity provider: %w", err)
		}
		return idp, nil

	default:
		api := backend.NewAuthAPI(client, backend.Paths{
			Login:    cfg.API.LoginPath,
			Register: cfg.API.RegisterPath,
			Refresh:  cfg.API.RefreshPath,
			Me:       cfg.API.MePath,
		})
		client.SetRefresher(api)
		idp, err := backend.NewIdentityProvider(backend.IdentityProviderOptions{
			Authenticator: api,
			Client:        client,
			MePath:        cfg.API.MePath,
		})
		if err != nil {
			return nil, fmt.Errorf("init backend identity provider: %w", err)
		}
		return idp, nil
	}
}
