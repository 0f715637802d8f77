package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	"github.com/nexoai/pos-client/internal/ports"
)

var _ ports.IdentityProvider = (*IdentityProvider)(nil)

// ProfileDecoder turns a whoami response body into a backend user.
// ok is false when the body carries no usable user.
type ProfileDecoder func(body []byte) (domainauth.BackendUser, bool)

// authenticatedCaller is the token-carrying half of the executor.
type authenticatedCaller interface {
	Do(ctx context.Context, req Request, out any) error
}

// IdentityProviderOptions configures NewIdentityProvider.
type IdentityProviderOptions struct {
	Authenticator ports.Authenticator
	Client        authenticatedCaller
	// MePath is the whoami endpoint, relative to the base URL or absolute.
	MePath string
	// Decoder parses the whoami body. Defaults to the POS backend user payload.
	Decoder ProfileDecoder
}

// IdentityProvider pairs an Authenticator with a whoami call made through the
// executor, so session validation gets the refresh-and-retry behavior.
type IdentityProvider struct {
	ports.Authenticator

	client  authenticatedCaller
	mePath  string
	decoder ProfileDecoder
}

// NewIdentityProvider creates an IdentityProvider.
func NewIdentityProvider(opts IdentityProviderOptions) (*IdentityProvider, error) {
	if opts.Authenticator == nil {
		return nil, errors.New("identity provider requires an authenticator")
	}
	if opts.Client == nil {
		return nil, errors.New("identity provider requires a request executor")
	}
	mePath := opts.MePath
	if mePath == "" {
		mePath = DefaultMePath
	}
	decoder := opts.Decoder
	if decoder == nil {
		decoder = DecodeUser
	}
	return &IdentityProvider{
		Authenticator: opts.Authenticator,
		client:        opts.Client,
		mePath:        mePath,
		decoder:       decoder,
	}, nil
}

// WhoAmI validates the session. Any 2xx is a valid session; the user is
// returned only when the body decodes to one with an email.
func (p *IdentityProvider) WhoAmI(ctx context.Context) (*domainauth.BackendUser, error) {
	var body []byte
	if err := p.client.Do(ctx, Request{Method: http.MethodGet, Path: p.mePath}, &body); err != nil {
		return nil, err
	}
	user, ok := p.decoder(body)
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// DecodeUser parses a POS backend user payload, bare or wrapped in {"user": ...}.
func DecodeUser(body []byte) (domainauth.BackendUser, bool) {
	var wrapped struct {
		User *userPayload `json:"user"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.User != nil && wrapped.User.Email != "" {
		return wrapped.User.toDomain(), true
	}

	var bare userPayload
	if err := json.Unmarshal(body, &bare); err != nil || bare.Email == "" {
		return domainauth.BackendUser{}, false
	}
	return bare.toDomain(), true
}
