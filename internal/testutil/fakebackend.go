package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
)

// Routes served by FakeBackend.
const (
	FakeLoginPath    = "/auth/login"
	FakeRegisterPath = "/auth/register"
	FakeRefreshPath  = "/auth/refresh"
	FakeMePath       = "/users/me"
	FakeProductsPath = "/products"
)

// FakeAccount is a user known to FakeBackend.
type FakeAccount struct {
	Password string
	User     domainauth.BackendUser
}

// FakeBackend is an httptest POS backend speaking the login, register,
// refresh and /users/me contracts, plus a protected /products route.
type FakeBackend struct {
	Server *httptest.Server

	mu         sync.Mutex
	accounts   map[string]FakeAccount
	access     map[string]string
	refresh    map[string]string
	seq        int
	hits       map[string]int
	requestIDs map[string][]string
	authz      map[string][]string

	refreshDelay  time.Duration
	rotateRefresh bool
	failRefresh   int
	meStatus      int
	meOmitsUser   bool
}

// NewFakeBackend starts a fake backend and registers its shutdown with t.
func NewFakeBackend(t TestingTB) *FakeBackend {
	t.Helper()
	fb := &FakeBackend{
		accounts:   make(map[string]FakeAccount),
		access:     make(map[string]string),
		refresh:    make(map[string]string),
		hits:       make(map[string]int),
		requestIDs: make(map[string][]string),
		authz:      make(map[string][]string),
	}
	fb.Server = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.Server.Close)
	return fb
}

// URL returns the base URL of the server.
func (fb *FakeBackend) URL() string { return fb.Server.URL }

// AddAccount registers a user that can log in with password.
func (fb *FakeBackend) AddAccount(password string, user domainauth.BackendUser) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.accounts[strings.ToLower(user.Email)] = FakeAccount{Password: password, User: user}
}

// IssueSession mints a token pair for a registered email without a login call.
func (fb *FakeBackend) IssueSession(email string) domainauth.TokenPair {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.issueLocked(strings.ToLower(email))
}

// ExpireAccessTokens invalidates every access token issued so far.
func (fb *FakeBackend) ExpireAccessTokens() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every refresh token issued so far.
func (fb *FakeBackend) RevokeRefreshTokens() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.refresh = make(map[string]string)
}

// SetRefreshDelay makes the refresh endpoint sleep before answering.
func (fb *FakeBackend) SetRefreshDelay(d time.Duration) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.refreshDelay = d
}

// SetRotateRefresh makes refresh responses carry a new refresh token.
func (fb *FakeBackend) SetRotateRefresh(rotate bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.rotateRefresh = rotate
}

// FailNextRefreshes makes the next n refresh calls answer 500.
func (fb *FakeBackend) FailNextRefreshes(n int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.failRefresh = n
}

// SetMeStatus forces the /users/me status code. Zero restores normal behavior.
func (fb *FakeBackend) SetMeStatus(status int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.meStatus = status
}

// SetMeOmitsUser makes /users/me answer 200 with an empty object.
func (fb *FakeBackend) SetMeOmitsUser(omit bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.meOmitsUser = omit
}

// Hits returns how many requests path has received.
func (fb *FakeBackend) Hits(path string) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.hits[path]
}

// RequestIDs returns the X-Request-ID values seen on path, in arrival order.
func (fb *FakeBackend) RequestIDs(path string) []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.requestIDs[path]...)
}

// Authorizations returns the Authorization headers seen on path, in arrival order.
func (fb *FakeBackend) Authorizations(path string) []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]string(nil), fb.authz[path]...)
}

func (fb *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	fb.hits[r.URL.Path]++
	fb.requestIDs[r.URL.Path] = append(fb.requestIDs[r.URL.Path], r.Header.Get("X-Request-ID"))
	fb.authz[r.URL.Path] = append(fb.authz[r.URL.Path], r.Header.Get("Authorization"))
	fb.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && r.URL.Path == FakeLoginPath:
		fb.handleLogin(w, r)
	case r.Method == http.MethodPost && r.URL.Path == FakeRegisterPath:
		fb.handleRegister(w, r)
	case r.Method == http.MethodPost && r.URL.Path == FakeRefreshPath:
		fb.handleRefresh(w, r)
	case r.Method == http.MethodGet && r.URL.Path == FakeMePath:
		fb.handleMe(w, r)
	case r.Method == http.MethodGet && r.URL.Path == FakeProductsPath:
		fb.handleProducts(w, r)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Cannot " + r.Method + " " + r.URL.Path})
	}
}

func (fb *FakeBackend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": []string{"body must be JSON"}})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	email := strings.ToLower(req.Email)
	acct, ok := fb.accounts[email]
	if !ok || acct.Password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid credentials", "statusCode": 401})
		return
	}

	pair := fb.issueLocked(email)
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"user":          userBody(acct.User),
	})
}

func (fb *FakeBackend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email         string `json:"email"`
		Password      string `json:"password"`
		BusinessName  string `json:"business_name"`
		OwnerName     string `json:"owner_name"`
		OwnerLastName string `json:"owner_lastname"`
		PhoneNumber   int64  `json:"phone_number"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": []string{"email should not be empty", "password should not be empty"}})
		return
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	email := strings.ToLower(req.Email)
	if _, exists := fb.accounts[email]; exists {
		writeJSON(w, http.StatusConflict, map[string]any{"message": "Email already registered"})
		return
	}

	fb.seq++
	user := domainauth.BackendUser{
		Email:       req.Email,
		Role:        "OWNER",
		CompanyID:   fmt.Sprintf("company-%d", fb.seq),
		FirstName:   req.OwnerName,
		LastName:    req.OwnerLastName,
		PhoneNumber: fmt.Sprintf("%d", req.PhoneNumber),
	}
	fb.accounts[email] = FakeAccount{Password: req.Password, User: user}
	writeJSON(w, http.StatusCreated, map[string]any{
		"company": map[string]any{"id": user.CompanyID, "name": req.BusinessName},
		"user":    userBody(user),
	})
}

func (fb *FakeBackend) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "body must be JSON"})
		return
	}

	fb.mu.Lock()
	delay := fb.refreshDelay
	fb.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.failRefresh > 0 {
		fb.failRefresh--
		writeJSON(w, http.StatusInternalServerError, map[string]any{"message": "refresh unavailable"})
		return
	}
	email, ok := fb.refresh[req.RefreshToken]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Invalid refresh token"})
		return
	}

	fb.seq++
	access := fmt.Sprintf("access-%d", fb.seq)
	fb.access[access] = email
	resp := map[string]any{"access_token": access}
	if fb.rotateRefresh {
		delete(fb.refresh, req.RefreshToken)
		rotated := fmt.Sprintf("refresh-%d", fb.seq)
		fb.refresh[rotated] = email
		resp["refresh_token"] = rotated
	}
	writeJSON(w, http.StatusOK, resp)
}

func (fb *FakeBackend) handleMe(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.meStatus != 0 {
		writeJSON(w, fb.meStatus, map[string]any{"message": http.StatusText(fb.meStatus)})
		return
	}
	email, ok := fb.bearerLocked(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}
	if fb.meOmitsUser {
		writeJSON(w, http.StatusOK, map[string]any{})
		return
	}
	writeJSON(w, http.StatusOK, userBody(fb.accounts[email].User))
}

func (fb *FakeBackend) handleProducts(w http.ResponseWriter, r *http.Request) {
	fb.mu.Lock()
	_, ok := fb.bearerLocked(r)
	fb.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, []map[string]any{
		{"id": "p-1", "name": "Cafe tinto", "price": 2500},
		{"id": "p-2", "name": "Pan de bono", "price": 1800},
	})
}

func (fb *FakeBackend) issueLocked(email string) domainauth.TokenPair {
	fb.seq++
	pair := domainauth.TokenPair{
		AccessToken:  fmt.Sprintf("access-%d", fb.seq),
		RefreshToken: fmt.Sprintf("refresh-%d", fb.seq),
	}
	fb.access[pair.AccessToken] = email
	fb.refresh[pair.RefreshToken] = email
	return pair
}

func (fb *FakeBackend) bearerLocked(r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found {
		return "", false
	}
	email, ok := fb.access[token]
	return email, ok
}

func userBody(u domainauth.BackendUser) map[string]any {
	body := map[string]any{
		"email":      u.Email,
		"role":       u.Role,
		"company_id": u.CompanyID,
		"first_name": u.FirstName,
		"last_name":  u.LastName,
	}
	if u.PhoneNumber != "" {
		body["phone_number"] = u.PhoneNumber
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
