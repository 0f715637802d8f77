package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
)

const (
	testClientID = "pos-client"
	testKeyID    = "k1"
)

// fakeIdP is a minimal OIDC issuer: discovery, JWKS, password and refresh
// grants, and userinfo.
type fakeIdP struct {
	srv       *httptest.Server
	key       *rsa.PrivateKey
	rotate    bool
	tokenHits atomic.Int32
	userinfo  map[string]any
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	idp := &fakeIdP{
		key: key,
		userinfo: map[string]any{
			"sub":          "u-1",
			"email":        "ana@shop.test",
			"given_name":   "Ana",
			"family_name":  "Ruiz",
			"company_id":   "c-7",
			"realm_access": map[string]any{"roles": []any{"MANAGER", "offline_access"}},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", idp.discovery)
	mux.HandleFunc("/jwks", idp.jwks)
	mux.HandleFunc("/token", idp.token)
	mux.HandleFunc("/userinfo", idp.userInfo)
	idp.srv = httptest.NewServer(mux)
	t.Cleanup(idp.srv.Close)
	return idp
}

func (f *fakeIdP) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, DiscoveryDocument{
		Issuer:                f.srv.URL,
		AuthorizationEndpoint: f.srv.URL + "/auth",
		TokenEndpoint:         f.srv.URL + "/token",
		UserinfoEndpoint:      f.srv.URL + "/userinfo",
		JwksURI:               f.srv.URL + "/jwks",
	})
}

func (f *fakeIdP) jwks(w http.ResponseWriter, _ *http.Request) {
	pub := f.key.PublicKey
	writeJSON(w, http.StatusOK, map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"kid": testKeyID,
			"use": "sig",
			"alg": "RS256",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	})
}

func (f *fakeIdP) token(w http.ResponseWriter, r *http.Request) {
	f.tokenHits.Add(1)
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_request"})
		return
	}

	switch r.PostForm.Get("grant_type") {
	case "password":
		if r.PostForm.Get("username") != "ana@shop.test" || r.PostForm.Get("password") != "pw" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Invalid user credentials"})
			return
		}
		resp := map[string]any{
			"access_token":  "at-1",
			"token_type":    "Bearer",
			"refresh_token": "rt-1",
			"expires_in":    300,
		}
		if strings.Contains(r.PostForm.Get("scope"), "openid") {
			resp["id_token"] = f.idToken()
		}
		writeJSON(w, http.StatusOK, resp)
	case "refresh_token":
		if r.PostForm.Get("refresh_token") != "rt-1" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid_grant", "error_description": "Token is not active"})
			return
		}
		resp := map[string]any{"access_token": "at-2", "token_type": "Bearer", "expires_in": 300}
		if f.rotate {
			resp["refresh_token"] = "rt-2"
		}
		writeJSON(w, http.StatusOK, resp)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unsupported_grant_type"})
	}
}

func (f *fakeIdP) userInfo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer at-") {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "invalid_token"})
		return
	}
	writeJSON(w, http.StatusOK, f.userinfo)
}

func (f *fakeIdP) idToken() string {
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss":         f.srv.URL,
		"aud":         testClientID,
		"sub":         "u-1",
		"iat":         now.Unix(),
		"exp":         now.Add(5 * time.Minute).Unix(),
		"email":       "ana@shop.test",
		"given_name":  "Ana",
		"family_name": "Ruiz",
		"company_id":  "c-id-token",
		"role":        "OWNER",
	})
	tok.Header["kid"] = testKeyID
	signed, err := tok.SignedString(f.key)
	if err != nil {
		panic(err)
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func newTestProvider(t *testing.T, idp *fakeIdP, scope, roleClaim string) *Provider {
	t.Helper()
	p, err := NewProvider(ProviderConfig{
		ClientID:     testClientID,
		ClientSecret: "secret",
		Scope:        scope,
		DiscoveryURL: idp.srv.URL + "/.well-known/openid-configuration",
		RoleClaim:    roleClaim,
	})
	require.NoError(t, err)
	return p
}

func TestNewProvider_Success(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "openid email", "")

	assert.Equal(t, idp.srv.URL+"/token", p.config.Endpoint.TokenURL)
	assert.Equal(t, idp.srv.URL+"/userinfo", p.UserInfoURL())
	assert.Equal(t, DefaultRoleClaim, p.roleClaim)
	assert.True(t, p.hasOpenIDScope())
}

func TestNewProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		config ProviderConfig
		errMsg string
	}{
		{
			name:   "missing client ID",
			config: ProviderConfig{DiscoveryURL: "http://example.com"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing discovery URL",
			config: ProviderConfig{ClientID: "client"},
			errMsg: "discovery URL is required",
		},
		{
			name:   "bad role expression",
			config: ProviderConfig{ClientID: "client", DiscoveryURL: "http://example.com", RoleClaim: "roles[?"},
			errMsg: "invalid role claim expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestProvider_LoginViaUserInfo(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email profile", "realm_access.roles")

	res, err := p.Login(context.Background(), domainauth.Credentials{Email: "ana@shop.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domainauth.TokenPair{AccessToken: "at-1", RefreshToken: "rt-1"}, res.Tokens)
	assert.Equal(t, domainauth.BackendUser{
		Email:     "ana@shop.test",
		Role:      "MANAGER",
		CompanyID: "c-7",
		FirstName: "Ana",
		LastName:  "Ruiz",
	}, res.User)
}

func TestProvider_LoginVerifiesIDToken(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "openid email", "")

	res, err := p.Login(context.Background(), domainauth.Credentials{Email: "ana@shop.test", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "OWNER", res.User.Role)
	assert.Equal(t, "c-id-token", res.User.CompanyID)
}

func TestProvider_LoginRejectsBadPassword(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email", "")

	_, err := p.Login(context.Background(), domainauth.Credentials{Email: "ana@shop.test", Password: "nope"})
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidCredentials(err), "got %v", err)
}

func TestProvider_Refresh(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email", "")

	pair, err := p.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, domainauth.TokenPair{AccessToken: "at-2"}, pair, "refresh token kept when not rotated")

	idp.rotate = true
	pair, err = p.Refresh(context.Background(), "rt-1")
	require.NoError(t, err)
	assert.Equal(t, "rt-2", pair.RefreshToken)

	_, err = p.Refresh(context.Background(), "revoked")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnauthorized(err), "got %v", err)
}

func TestProvider_RegisterUnsupported(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email", "")

	err := p.Register(context.Background(), domainauth.Registration{Email: "x@y.z"})
	assert.True(t, apperrors.IsUnsupported(err))
}

func TestProvider_DecodeProfile(t *testing.T) {
	idp := newFakeIdP(t)
	p := newTestProvider(t, idp, "email", "groups")

	tests := []struct {
		name string
		body string
		want domainauth.BackendUser
		ok   bool
	}{
		{
			name: "standard claims with group list",
			body: `{"sub":"s-1","email":"a@b.c","name":"Luis Perez","groups":["EMPLOYEE","OTHER"]}`,
			want: domainauth.BackendUser{Email: "a@b.c", Role: "EMPLOYEE", CompanyID: "s-1", FirstName: "Luis", LastName: "Perez"},
			ok:   true,
		},
		{
			name: "ad style claims",
			body: `{"sub":"s-2","mail":"ad@corp.c","firstname":"Ada","lastname":"Lovelace","company_id":"c-2"}`,
			want: domainauth.BackendUser{Email: "ad@corp.c", CompanyID: "c-2", FirstName: "Ada", LastName: "Lovelace"},
			ok:   true,
		},
		{
			name: "upn as email",
			body: `{"sub":"s-3","preferred_username":"upn@corp.c"}`,
			want: domainauth.BackendUser{Email: "upn@corp.c", CompanyID: "s-3"},
			ok:   true,
		},
		{name: "no email", body: `{"sub":"s-4","preferred_username":"jdoe"}`},
		{name: "not json", body: `<html>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := p.DecodeProfile([]byte(tt.body))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGetIDTokenFromToken(t *testing.T) {
	_, err := getIDTokenFromToken(nil)
	require.Error(t, err)
}
