package authclient

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	defaultMaxLoginAttempts = 5
	defaultAttemptWindow    = 15 * time.Minute
	defaultLockoutDuration  = 15 * time.Minute
)

const loginAttemptsSchema = `CREATE TABLE IF NOT EXISTS login_attempts (
	username TEXT PRIMARY KEY,
	count INTEGER NOT NULL DEFAULT 0,
	first_attempt TIMESTAMP NOT NULL,
	locked_until TIMESTAMP NULL
);`

// OpenAttemptDB opens the durable sqlite database holding login attempt
// records. Unlike the token scratch dir this survives across sessions, so a
// lockout cannot be escaped by restarting the client.
func OpenAttemptDB(path string) (*bun.DB, error) {
	db, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to open attempt database")
	}
	db.SetMaxOpenConns(1)

	return bun.NewDB(db, sqlitedialect.New()), nil
}

// LoginAttemptStore tracks failed logins per username and enforces the
// client-side lockout.
type LoginAttemptStore struct {
	db          *bun.DB
	maxAttempts int
	window      time.Duration
	lockout     time.Duration
	logger      Logger
	now         func() time.Time
}

// NewLoginAttemptStore creates a store over the given database.
func NewLoginAttemptStore(db *bun.DB) *LoginAttemptStore {
	return &LoginAttemptStore{
		db:          db,
		maxAttempts: defaultMaxLoginAttempts,
		window:      defaultAttemptWindow,
		lockout:     defaultLockoutDuration,
		logger:      defLogger{},
		now:         time.Now,
	}
}

// WithLogger sets the logger
func (s *LoginAttemptStore) WithLogger(logger Logger) *LoginAttemptStore {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithLimits overrides the lockout policy: failures allowed inside the
// rolling window, and how long a lock holds.
func (s *LoginAttemptStore) WithLimits(maxAttempts int, window, lockout time.Duration) *LoginAttemptStore {
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if window > 0 {
		s.window = window
	}
	if lockout > 0 {
		s.lockout = lockout
	}
	return s
}

// WithClock overrides the time source, used by tests.
func (s *LoginAttemptStore) WithClock(now func() time.Time) *LoginAttemptStore {
	if now != nil {
		s.now = now
	}
	return s
}

// EnsureSchema creates the login_attempts table when missing.
func (s *LoginAttemptStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, loginAttemptsSchema); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to create login_attempts table")
	}
	return nil
}

// Get returns the live record for a username, nil when there is none. Records
// whose lock or attempt window has lapsed are removed on the way out, so
// stale history never counts against a fresh attempt.
func (s *LoginAttemptStore) Get(ctx context.Context, username string) (*LoginAttemptRecord, error) {
	record := &LoginAttemptRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("username = ?", username).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to load login attempts")
	}

	now := s.now()
	if record.LockedUntil != nil && !record.IsLocked(now) {
		if err := s.ClearAttempts(ctx, username); err != nil {
			return nil, err
		}
		return nil, nil
	}
	if record.LockedUntil == nil && now.Sub(record.FirstAttempt) > s.window {
		if err := s.ClearAttempts(ctx, username); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return record, nil
}

// RecordFailure counts one failed login. Crossing the attempt limit inside
// the window locks the account for the configured duration.
func (s *LoginAttemptStore) RecordFailure(ctx context.Context, username string) (*LoginAttemptRecord, error) {
	record, err := s.Get(ctx, username)
	if err != nil {
		return nil, err
	}

	now := s.now()

	if record == nil {
		record = &LoginAttemptRecord{
			Username:     username,
			Count:        1,
			FirstAttempt: now,
		}
	} else {
		record.Count++
	}

	if record.Count >= s.maxAttempts && record.LockedUntil == nil {
		until := now.Add(s.lockout)
		record.LockedUntil = &until
		s.logger.Info("login attempts locked %s until %s", username, until.Format(time.RFC3339))
	}

	_, err = s.db.NewInsert().
		Model(record).
		On("CONFLICT (username) DO UPDATE").
		Set("count = EXCLUDED.count").
		Set("first_attempt = EXCLUDED.first_attempt").
		Set("locked_until = EXCLUDED.locked_until").
		Exec(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to record login attempt")
	}

	return record, nil
}

// ClearAttempts removes the record for a username. Clearing an absent record
// is a no-op.
func (s *LoginAttemptStore) ClearAttempts(ctx context.Context, username string) error {
	_, err := s.db.NewDelete().
		Model((*LoginAttemptRecord)(nil)).
		Where("username = ?", username).
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to clear login attempts")
	}
	return nil
}

// IsLocked reports whether the username is currently locked out and for how
// much longer.
func (s *LoginAttemptStore) IsLocked(ctx context.Context, username string) (bool, time.Duration, error) {
	record, err := s.Get(ctx, username)
	if err != nil {
		return false, 0, err
	}

	now := s.now()
	return record.IsLocked(now), record.RemainingLock(now), nil
}
