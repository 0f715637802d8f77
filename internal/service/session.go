package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/nexoai/pos-client/internal/core"
	domainauth "github.com/nexoai/pos-client/internal/domain/auth"
	apperrors "github.com/nexoai/pos-client/internal/errors"
	"github.com/nexoai/pos-client/internal/observability/metrics"
	"github.com/nexoai/pos-client/internal/observability/statsd"
	"github.com/nexoai/pos-client/internal/ports"
)

// Session events carried by Snapshot.Event.
const (
	EventLoading = "loading"
	EventRestore = "restore"
	EventLogin   = "login"
	EventLogout  = "logout"
	EventExpired = "expired"
	EventProfile = "profile"
)

var _ domainauth.Checker = (*SessionManager)(nil)

// SessionManagerOptions groups dependencies for SessionManager.
type SessionManagerOptions struct {
	Provider ports.IdentityProvider
	Vault    *core.Vault
	Roles    ports.RoleMapper
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// Snapshot is the observable session state handed to listeners.
type Snapshot struct {
	State         domainauth.State
	User          domainauth.User
	Authenticated bool
	Loading       bool
	Event         string
}

// SessionManager owns the signed-in user and answers capability queries.
//
// Session-altering operations are serialized. Queries read in-memory state
// only and are safe to call from any goroutine. Until RestoreSession has
// completed every capability check denies.
type SessionManager struct {
	provider ports.IdentityProvider
	vault    *core.Vault
	roles    ports.RoleMapper
	logger   *slog.Logger
	metrics  statsd.Sink

	opMu sync.Mutex

	mu       sync.RWMutex
	state    domainauth.State
	user     domainauth.User
	granted  []domainauth.Permission
	restored bool
	inFlight int

	listenersMu sync.Mutex
	listeners   map[int]func(Snapshot)
	nextID      int
}

// NewSessionManager constructs a SessionManager in the Unknown state.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Provider == nil {
		return nil, errors.New("session manager requires an identity provider")
	}
	if opts.Vault == nil {
		return nil, errors.New("session manager requires a session vault")
	}
	if opts.Roles == nil {
		return nil, errors.New("session manager requires a role mapper")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		provider:  opts.Provider,
		vault:     opts.Vault,
		roles:     opts.Roles,
		logger:    logger,
		metrics:   opts.Metrics,
		state:     domainauth.StateUnknown,
		listeners: make(map[int]func(Snapshot)),
	}, nil
}

// RestoreSession validates the persisted session at startup. It always ends
// in Authenticated or Unauthenticated; any validation failure clears the
// stored session. The returned error explains why the session was dropped.
func (m *SessionManager) RestoreSession(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	m.begin(domainauth.StateRestoring)

	user, err := m.restore(ctx)
	if err != nil {
		m.logger.Error("session restore failed, signing out", "error", err)
		if clearErr := m.vault.Clear(ctx); clearErr != nil {
			m.logger.Warn("clear session after failed restore", "error", clearErr)
		}
		m.finish(EventRestore, nil, true)
		m.emit("restore", start, err)
		return fmt.Errorf("restore session: %w", err)
	}

	m.finish(EventRestore, user, true)
	m.emit("restore", start, nil)
	if user != nil {
		m.logger.Info("session restored", "role", user.Role)
	}
	return nil
}

// restore returns the validated user, nil when there is no stored session.
func (m *SessionManager) restore(ctx context.Context) (*domainauth.User, error) {
	has, err := m.vault.HasAccessToken(ctx)
	if err != nil {
		return nil, err
	}
	if !has {
		return nil, nil
	}

	backendUser, err := m.provider.WhoAmI(ctx)
	if err != nil {
		return nil, fmt.Errorf("validate session: %w", err)
	}

	if backendUser != nil {
		user := m.normalize(*backendUser)
		if err := m.vault.SaveUser(ctx, user); err != nil {
			m.logger.Warn("persist refreshed user", "error", err)
		}
		return &user, nil
	}

	stored, found, err := m.vault.User(ctx)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.Unauthorized("Session has no user record.")
	}
	if !stored.Role.Valid() {
		return nil, apperrors.Storage(fmt.Errorf("invalid role %q", stored.Role), "get", core.KeyUserData)
	}
	return &stored, nil
}

// Login signs in with email and password. On failure nothing is persisted and
// the session state is unchanged.
func (m *SessionManager) Login(ctx context.Context, email, password string) (domainauth.User, error) {
	email = strings.TrimSpace(email)
	if err := validateCredentials(email, password); err != nil {
		return domainauth.User{}, err
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	user, err := m.login(ctx, domainauth.Credentials{Email: email, Password: password})
	m.emit("login", start, err)
	return user, err
}

func (m *SessionManager) login(ctx context.Context, creds domainauth.Credentials) (domainauth.User, error) {
	m.begin("")

	res, err := m.provider.Login(ctx, creds)
	if err != nil {
		m.finish(EventLogin, nil, false)
		m.logger.Info("login rejected", "error_class", metrics.ErrorClass(err))
		return domainauth.User{}, fmt.Errorf("login: %w", err)
	}

	user := m.normalize(res.User)
	if err := m.vault.SaveSession(ctx, res.Tokens, user); err != nil {
		if clearErr := m.vault.Clear(ctx); clearErr != nil {
			m.logger.Warn("clear partial session", "error", clearErr)
		}
		// Storage no longer holds any session, so neither may memory.
		m.finish(EventLogin, nil, true)
		return domainauth.User{}, fmt.Errorf("persist session: %w", err)
	}

	m.finish(EventLogin, &user, false)
	m.logger.Info("signed in", "role", user.Role)
	return user, nil
}

// Register creates a business account, then signs in with the same credentials.
func (m *SessionManager) Register(ctx context.Context, reg domainauth.Registration) (domainauth.User, error) {
	reg.Email = strings.TrimSpace(reg.Email)
	if err := validateCredentials(reg.Email, reg.Password); err != nil {
		return domainauth.User{}, err
	}
	if strings.TrimSpace(reg.BusinessName) == "" {
		return domainauth.User{}, apperrors.ValidationField("business_name", "Business name is required.")
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	m.begin("")
	err := m.provider.Register(ctx, reg)
	m.finish(EventLoading, nil, false)
	if err != nil {
		m.emit("register", start, err)
		return domainauth.User{}, fmt.Errorf("register: %w", err)
	}
	m.emit("register", start, nil)

	loginStart := time.Now()
	user, err := m.login(ctx, domainauth.Credentials{Email: reg.Email, Password: reg.Password})
	m.emit("login", loginStart, err)
	return user, err
}

// Logout clears the stored session. The in-memory session is dropped even
// when storage fails; the storage error is still returned.
func (m *SessionManager) Logout(ctx context.Context) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	start := time.Now()
	err := m.vault.Clear(ctx)
	m.settle(EventLogout)
	m.emit("logout", start, err)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// UpdateProfile replaces the signed-in user's profile. The role cannot change
// within a session.
func (m *SessionManager) UpdateProfile(ctx context.Context, user domainauth.User) (domainauth.User, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	current, ok := m.User()
	if !ok {
		return domainauth.User{}, apperrors.Unauthorized("Sign in to update your profile.")
	}
	user.Email = strings.TrimSpace(user.Email)
	if user.Email == "" {
		return domainauth.User{}, apperrors.ValidationField("email", "Email is required.")
	}
	user.Role = current.Role

	start := time.Now()
	if err := m.vault.SaveUser(ctx, user); err != nil {
		m.emit("update_profile", start, err)
		return domainauth.User{}, fmt.Errorf("update profile: %w", err)
	}

	m.mu.Lock()
	m.user = user
	m.mu.Unlock()
	m.notify(EventProfile)
	m.emit("update_profile", start, nil)
	return user, nil
}

// HandleSessionExpired is the request executor's callback after a failed
// refresh. The executor has already cleared storage. It does not take part in
// operation serialization and may run while another operation is in flight.
func (m *SessionManager) HandleSessionExpired(context.Context) {
	m.mu.Lock()
	if m.state == domainauth.StateUnauthenticated {
		m.mu.Unlock()
		return
	}
	m.clearLocked()
	m.mu.Unlock()

	m.logger.Warn("session expired, signed out")
	metrics.EmitSessionExpired(m.metrics)
	m.notify(EventExpired)
}

// Subscribe registers fn for state changes and returns its unsubscribe func.
// Listeners run synchronously on the goroutine that changed the state.
func (m *SessionManager) Subscribe(fn func(Snapshot)) func() {
	m.listenersMu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.listenersMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.listenersMu.Lock()
			delete(m.listeners, id)
			m.listenersMu.Unlock()
		})
	}
}

// Snapshot returns the current observable state.
func (m *SessionManager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked("")
}

// User returns the signed-in user; ok is false unless authenticated.
func (m *SessionManager) User() (domainauth.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != domainauth.StateAuthenticated {
		return domainauth.User{}, false
	}
	return m.user, true
}

func (m *SessionManager) State() domainauth.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *SessionManager) IsAuthenticated() bool {
	return m.State() == domainauth.StateAuthenticated
}

// IsLoading is true until the first restore completes and while a
// session-altering operation is in flight.
func (m *SessionManager) IsLoading() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadingLocked()
}

func (m *SessionManager) HasPermission(p domainauth.Permission) bool {
	return domainauth.Allows(m.permissions(), p)
}

// HasAnyPermission is false for an empty list.
func (m *SessionManager) HasAnyPermission(ps []domainauth.Permission) bool {
	return domainauth.AllowsAny(m.permissions(), ps)
}

// HasAllPermissions is true for an empty list when authenticated.
func (m *SessionManager) HasAllPermissions(ps []domainauth.Permission) bool {
	if !m.IsAuthenticated() {
		return false
	}
	return domainauth.AllowsAll(m.permissions(), ps)
}

func (m *SessionManager) HasRole(r domainauth.Role) bool {
	u, ok := m.User()
	return ok && u.Role == r
}

// Permissions returns a copy of the granted permissions.
func (m *SessionManager) Permissions() []domainauth.Permission {
	granted := m.permissions()
	out := make([]domainauth.Permission, len(granted))
	copy(out, granted)
	return out
}

func (m *SessionManager) permissions() []domainauth.Permission {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state != domainauth.StateAuthenticated {
		return nil
	}
	return m.granted
}

// normalize converts a backend user into the session user.
func (m *SessionManager) normalize(u domainauth.BackendUser) domainauth.User {
	return domainauth.User{
		ID:            u.CompanyID,
		Name:          u.DisplayName(),
		Email:         u.Email,
		Role:          m.roles.Map(u.Role),
		PointOfSaleID: u.CompanyID,
	}
}

// begin marks an operation in flight, optionally entering a transitional state.
func (m *SessionManager) begin(state domainauth.State) {
	m.mu.Lock()
	m.inFlight++
	if state != "" {
		m.state = state
	}
	m.mu.Unlock()
	m.notify(EventLoading)
}

// finish ends an operation. A non-nil user becomes the authenticated session;
// a nil user with settle set ends unauthenticated; otherwise the state is kept.
func (m *SessionManager) finish(event string, user *domainauth.User, settle bool) {
	m.mu.Lock()
	m.inFlight--
	if settle || user != nil {
		m.restored = true
	}
	switch {
	case user != nil:
		m.user = *user
		m.granted = domainauth.PermissionsFor(user.Role)
		m.state = domainauth.StateAuthenticated
	case settle:
		m.clearLocked()
	}
	m.mu.Unlock()
	m.notify(event)
}

// settle drops the session without touching the operation counters.
func (m *SessionManager) settle(event string) {
	m.mu.Lock()
	m.clearLocked()
	m.mu.Unlock()
	m.notify(event)
}

func (m *SessionManager) clearLocked() {
	m.user = domainauth.User{}
	m.granted = nil
	m.state = domainauth.StateUnauthenticated
}

func (m *SessionManager) loadingLocked() bool {
	return !m.restored || m.inFlight > 0
}

func (m *SessionManager) snapshotLocked(event string) Snapshot {
	s := Snapshot{
		State:         m.state,
		Authenticated: m.state == domainauth.StateAuthenticated,
		Loading:       m.loadingLocked(),
		Event:         event,
	}
	if s.Authenticated {
		s.User = m.user
	}
	return s
}

func (m *SessionManager) notify(event string) {
	m.mu.RLock()
	snap := m.snapshotLocked(event)
	m.mu.RUnlock()

	m.listenersMu.Lock()
	fns := make([]func(Snapshot), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (m *SessionManager) emit(op string, start time.Time, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	metrics.EmitSessionEvent(m.metrics, metrics.SessionEvent{
		Operation: op,
		Result:    result,
		Duration:  time.Since(start),
		Err:       err,
	})
}

func validateCredentials(email, password string) error {
	if email == "" {
		return apperrors.ValidationField("email", "Email is required.")
	}
	if password == "" {
		return apperrors.ValidationField("password", "Password is required.")
	}
	return nil
}
