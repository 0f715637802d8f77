package backend

import (
	"context"
	"net/http"
	"strings"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/ports"
)

// Default endpoint paths of the POS backend.
const (
	DefaultLoginPath    = "/auth/login"
	DefaultRegisterPath = "/auth/register"
	DefaultRefreshPath  = "/auth/refresh"
	DefaultMePath       = "/users/me"
)

var _ ports.Authenticator = (*AuthAPI)(nil)

// Paths holds the auth endpoint locations. Empty fields use the defaults.
type Paths struct {
	Login    string
	Register string
	Refresh  string
	Me       string
}

func (p Paths) withDefaults() Paths {
	if strings.TrimSpace(p.Login) == "" {
		p.Login = DefaultLoginPath
	}
	if strings.TrimSpace(p.Register) == "" {
		p.Register = DefaultRegisterPath
	}
	if strings.TrimSpace(p.Refresh) == "" {
		p.Refresh = DefaultRefreshPath
	}
	if strings.TrimSpace(p.Me) == "" {
		p.Me = DefaultMePath
	}
	return p
}

// publicCaller is the credential-free half of the executor.
type publicCaller interface {
	DoPublic(ctx context.Context, req Request, out any) error
}

// AuthAPI implements the backend's login, register and refresh endpoints.
// Every call bypasses the authenticated executor path.
type AuthAPI struct {
	caller publicCaller
	paths  Paths
}

// NewAuthAPI creates an AuthAPI over caller (normally the *Client).
func NewAuthAPI(caller publicCaller, paths Paths) *AuthAPI {
	return &AuthAPI{caller: caller, paths: paths.withDefaults()}
}

// Paths returns the resolved endpoint paths.
func (a *AuthAPI) Paths() Paths { return a.paths }

func (a *AuthAPI) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	var resp loginResponse
	err := a.caller.DoPublic(ctx, Request{
		Method: http.MethodPost,
		Path:   a.paths.Login,
		Body:   loginRequest(creds),
	}, &resp)
	if err != nil {
		return domainauth.LoginResult{}, err
	}
	if resp.AccessToken == "" {
		return domainauth.LoginResult{}, apperrors.Wrap(
			apperrors.Internal("missing access_token"), apperrors.ErrCodeUpstream, "login response is incomplete")
	}

	return domainauth.LoginResult{
		Tokens: domainauth.TokenPair{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		},
		User: resp.User.toDomain(),
	}, nil
}

func (a *AuthAPI) Register(ctx context.Context, reg domainauth.Registration) error {
	return a.caller.DoPublic(ctx, Request{
		Method: http.MethodPost,
		Path:   a.paths.Register,
		Body: registerRequest{
			Email:         reg.Email,
			Password:      reg.Password,
			BusinessName:  reg.BusinessName,
			OwnerName:     reg.OwnerName,
			OwnerLastName: reg.OwnerLastName,
			PhoneNumber:   reg.PhoneNumber,
		},
	}, nil)
}

func (a *AuthAPI) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	var resp refreshResponse
	err := a.caller.DoPublic(ctx, Request{
		Method: http.MethodPost,
		Path:   a.paths.Refresh,
		Body:   refreshRequest{RefreshToken: refreshToken},
	}, &resp)
	if err != nil {
		return domainauth.TokenPair{}, err
	}
	return domainauth.TokenPair{
		AccessToken:  resp.AccessToken,
		RefreshToken: resp.RefreshToken,
	}, nil
}
