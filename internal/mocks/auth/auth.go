package auth

// Package auth contains simple hand-written test doubles for session ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	"github.com/nexoai/pos-client/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.KeyValueStore    = (*MemoryStore)(nil)
	_ ports.RoleMapper       = StaticRoleMapper{}
)

// MockIdentityProvider simulates an identity backend with deterministic tokens.
// Func fields override the default behavior.
type MockIdentityProvider struct {
	LoginFunc    func(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error)
	RegisterFunc func(ctx context.Context, reg domainauth.Registration) error
	RefreshFunc  func(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
	WhoAmIFunc   func(ctx context.Context) (*domainauth.BackendUser, error)

	DefaultUser domainauth.BackendUser

	mu        sync.Mutex
	logins    int
	registers int
	refreshes int
	whoamis   int
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		DefaultUser: domainauth.BackendUser{
			Email:     "mock.owner@example.com",
			Role:      "OWNER",
			CompanyID: "company-1",
			FirstName: "Mock",
			LastName:  "Owner",
		},
	}
}

func (m *MockIdentityProvider) Login(ctx context.Context, creds domainauth.Credentials) (domainauth.LoginResult, error) {
	m.mu.Lock()
	m.logins++
	n := m.logins
	m.mu.Unlock()

	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, creds)
	}

	user := m.DefaultUser
	if user.Email == "" {
		user = NewMockIdentityProvider().DefaultUser
	}
	return domainauth.LoginResult{
		Tokens: domainauth.TokenPair{
			AccessToken:  fmt.Sprintf("access-%d", n),
			RefreshToken: fmt.Sprintf("refresh-%d", n),
		},
		User: user,
	}, nil
}

func (m *MockIdentityProvider) Register(ctx context.Context, reg domainauth.Registration) error {
	m.mu.Lock()
	m.registers++
	m.mu.Unlock()

	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, reg)
	}
	return nil
}

func (m *MockIdentityProvider) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	m.mu.Lock()
	m.refreshes++
	n := m.refreshes
	m.mu.Unlock()

	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return domainauth.TokenPair{AccessToken: fmt.Sprintf("refreshed-%d", n)}, nil
}

func (m *MockIdentityProvider) WhoAmI(ctx context.Context) (*domainauth.BackendUser, error) {
	m.mu.Lock()
	m.whoamis++
	m.mu.Unlock()

	if m.WhoAmIFunc != nil {
		return m.WhoAmIFunc(ctx)
	}
	user := m.DefaultUser
	return &user, nil
}

// Calls reports how many times each operation was invoked.
func (m *MockIdentityProvider) Calls() (logins, registers, refreshes, whoamis int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins, m.registers, m.refreshes, m.whoamis
}

// MemoryStore is an in-memory KeyValueStore with injectable failures.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte

	// FailGet, FailSet and FailRemove make the matching operation fail for any key
	// present in the map.
	FailGet    map[string]error
	FailSet    map[string]error
	FailRemove map[string]error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailGet[key]; err != nil {
		return nil, err
	}
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailSet[key]; err != nil {
		return err
	}
	if key == "" {
		return errors.New("key cannot be empty")
	}
	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailRemove[key]; err != nil {
		return err
	}
	delete(m.data, key)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string][]byte)
	return nil
}

func (m *MemoryStore) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Raw returns the stored bytes for key without failure injection.
func (m *MemoryStore) Raw(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

// StaticRoleMapper maps backend roles from a fixed table, falling back to Default.
type StaticRoleMapper struct {
	Roles   map[string]domainauth.Role
	Default domainauth.Role
}

func (m StaticRoleMapper) Map(backendRole string) domainauth.Role {
	if r, ok := m.Roles[backendRole]; ok {
		return r
	}
	if m.Default != "" {
		return m.Default
	}
	return domainauth.RoleViewer
}
