package authclient

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

const tokenFileName = "access_token.json"

// SessionTokenStore keeps the access token record in a scratch directory that
// belongs to exactly one client instance. The directory is created on
// construction and removed by Close, so the credential never outlives the
// process that obtained it.
type SessionTokenStore struct {
	mu      sync.Mutex
	dir     string
	ownsDir bool
	bus     Broadcaster
	logger  Logger
	now     func() time.Time
}

// NewSessionTokenStore creates a store backed by a fresh scratch directory
// under the user cache dir.
func NewSessionTokenStore() (*SessionTokenStore, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}

	parent := filepath.Join(base, "crm-auth")
	if err := os.MkdirAll(parent, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create token scratch dir")
	}

	dir, err := os.MkdirTemp(parent, "session-")
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create token scratch dir")
	}

	return &SessionTokenStore{
		dir:     dir,
		ownsDir: true,
		logger:  defLogger{},
		now:     time.Now,
	}, nil
}

// NewSessionTokenStoreAt creates a store over an existing directory. The
// caller keeps ownership of the directory; Close will empty it but not
// remove it.
func NewSessionTokenStoreAt(dir string) (*SessionTokenStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create token scratch dir")
	}
	return &SessionTokenStore{
		dir:    dir,
		logger: defLogger{},
		now:    time.Now,
	}, nil
}

// WithLogger sets the logger
func (s *SessionTokenStore) WithLogger(logger Logger) *SessionTokenStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithBroadcaster wires the signal bus so sibling instances learn about token
// updates.
func (s *SessionTokenStore) WithBroadcaster(bus Broadcaster) *SessionTokenStore {
	s.bus = bus
	return s
}

// WithClock overrides the time source, used by tests.
func (s *SessionTokenStore) WithClock(now func() time.Time) *SessionTokenStore {
	if now != nil {
		s.now = now
	}
	return s
}

// Dir returns the scratch directory path.
func (s *SessionTokenStore) Dir() string {
	return s.dir
}

// SetToken persists the token record with an absolute expiry computed from
// expiresIn seconds, then signals sibling instances.
func (s *SessionTokenStore) SetToken(token string, expiresIn int64) error {
	if token == "" {
		return errors.New("token must not be empty", errors.CategoryBadInput)
	}

	record := NewAccessToken(token, expiresIn, s.now())

	data, err := json.Marshal(record)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to encode token record")
	}

	s.mu.Lock()
	err = os.WriteFile(s.tokenPath(), data, 0o600)
	s.mu.Unlock()
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to persist token record")
	}

	if s.bus != nil {
		if err := s.bus.Publish(TopicTokenUpdate); err != nil {
			s.logger.Error("token store failed to publish update signal: %v", err)
		}
	}

	return nil
}

// GetToken loads the stored record. Absent or unreadable records come back as
// nil; a corrupt file is removed so the next read starts clean.
func (s *SessionTokenStore) GetToken() *AccessToken {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.tokenPath())
	if err != nil {
		return nil
	}

	record := &AccessToken{}
	if err := json.Unmarshal(data, record); err != nil {
		s.logger.Error("token store found corrupt record, discarding: %v", err)
		os.Remove(s.tokenPath())
		return nil
	}

	if record.Token == "" {
		return nil
	}

	return record
}

// RemoveToken deletes the stored record. Removing an absent record is a no-op.
func (s *SessionTokenStore) RemoveToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	os.Remove(s.tokenPath())
}

// Clear wipes every file in the scratch directory, token record included.
func (s *SessionTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("token store failed to clear %s: %v", entry.Name(), err)
		}
	}
}

// Close clears the store and, when the store created its own scratch
// directory, removes it.
func (s *SessionTokenStore) Close() error {
	s.Clear()
	if s.ownsDir {
		return os.RemoveAll(s.dir)
	}
	return nil
}

func (s *SessionTokenStore) tokenPath() string {
	return filepath.Join(s.dir, tokenFileName)
}
