package authclient

import (
	"sync"
	"time"
)

// SessionManager is the in-memory source of truth for one client instance's
// authentication state. All reads return copies; all mutations go through the
// manager so the state stays consistent with the token store.
type SessionManager struct {
	mu    sync.Mutex
	state SessionState

	store  TokenStore
	bus    Broadcaster
	logger Logger
	now    func() time.Time

	unsubscribe func()
}

// NewSessionManager creates a manager over the given token store.
func NewSessionManager(store TokenStore) *SessionManager {
	return &SessionManager{
		store:  store,
		bus:    NoopBroadcaster{},
		logger: defLogger{},
		now:    time.Now,
	}
}

// WithLogger sets the logger
func (m *SessionManager) WithLogger(logger Logger) *SessionManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithBroadcaster wires the signal bus used to observe sign-outs from sibling
// instances.
func (m *SessionManager) WithBroadcaster(bus Broadcaster) *SessionManager {
	if bus != nil {
		m.bus = bus
	}
	return m
}

// WithClock overrides the time source, used by tests.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	if now != nil {
		m.now = now
	}
	return m
}

// InitAuth hydrates the session from the token store. A stored, unexpired
// token restores the authenticated flag and the raw token; the user profile
// is never restored from disk and must be re-fetched. Expired or absent
// records leave the session cleared. It also subscribes to sign-out signals
// from sibling instances.
func (m *SessionManager) InitAuth() {
	record := m.store.GetToken()

	m.mu.Lock()
	defer m.mu.Unlock()

	if record != nil && !record.IsExpired(m.now()) {
		m.state.IsAuthenticated = true
		m.state.AccessToken = record.Token
	} else {
		if record != nil {
			m.store.RemoveToken()
		}
		m.state = SessionState{}
	}

	if m.unsubscribe == nil {
		m.unsubscribe = m.bus.Subscribe(TopicAuthClear, func() {
			m.logger.Info("session cleared by another instance")
			m.ClearAuthState()
		})
	}
}

// SetAuthData records a successful login: persists the token and installs the
// authenticated state in one step.
func (m *SessionManager) SetAuthData(token string, expiresIn int64, user *UserInfo) error {
	if err := m.store.SetToken(token, expiresIn); err != nil {
		return err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsAuthenticated = true
	m.state.AccessToken = token
	m.state.User = user.Clone()
	m.state.LastRefresh = &now
	m.state.Error = ""
	return nil
}

// UpdateToken replaces the access token after a refresh, keeping the rest of
// the session intact.
func (m *SessionManager) UpdateToken(token string, expiresIn int64) error {
	if err := m.store.SetToken(token, expiresIn); err != nil {
		return err
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AccessToken = token
	m.state.LastRefresh = &now
	return nil
}

// SetUser installs the fetched user profile.
func (m *SessionManager) SetUser(user *UserInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.User = user.Clone()
}

// SetLoading toggles the in-flight flag.
func (m *SessionManager) SetLoading(loading bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.IsLoading = loading
}

// SetError records the latest user-facing error message.
func (m *SessionManager) SetError(msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = msg
}

// ClearError drops the recorded error message. Operations call it on entry so
// a stale failure does not linger while a new request is in flight.
func (m *SessionManager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = ""
}

// ClearAuthState resets the session and removes the stored token. Safe to
// call repeatedly; a cleared session stays cleared.
func (m *SessionManager) ClearAuthState() {
	m.store.RemoveToken()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = SessionState{}
}

// State returns a snapshot of the session.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.state
	snapshot.User = m.state.User.Clone()
	if m.state.LastRefresh != nil {
		at := *m.state.LastRefresh
		snapshot.LastRefresh = &at
	}
	return snapshot
}

// IsAuthenticated reports whether the session holds a token.
func (m *SessionManager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated
}

// IsLoggedIn reports whether the session is fully usable: token present and
// user profile loaded.
func (m *SessionManager) IsLoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.IsAuthenticated && m.state.User != nil
}

// Token returns the raw access token, empty when signed out.
func (m *SessionManager) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AccessToken
}

// User returns a copy of the loaded profile, nil before FetchUser.
func (m *SessionManager) User() *UserInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.User.Clone()
}

// DisplayName resolves what to show for the signed-in user, falling back to
// the username and finally a guest label.
func (m *SessionManager) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.User != nil {
		if m.state.User.FullName != "" {
			return m.state.User.FullName
		}
		if m.state.User.Username != "" {
			return m.state.User.Username
		}
	}
	return "訪客"
}

// Close drops the sign-out subscription.
func (m *SessionManager) Close() {
	m.mu.Lock()
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
