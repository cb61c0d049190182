package authclient

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/uptrace/bun"
)

// AccessToken is the persisted token record. ExpiresAt is an absolute unix
// timestamp in milliseconds so the record stays meaningful across restarts of
// the embedding application.
type AccessToken struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expiresIn"`
	ExpiresAt int64  `json:"expiresAt"`
}

// NewAccessToken builds a record whose ExpiresAt honors
// expiresAt == issuedAt + expiresIn*1000.
func NewAccessToken(token string, expiresIn int64, issuedAt time.Time) *AccessToken {
	return &AccessToken{
		Token:     token,
		ExpiresIn: expiresIn,
		ExpiresAt: issuedAt.UnixMilli() + expiresIn*1000,
	}
}

// IsExpired reports whether the record has passed its expiry at the given time.
func (t *AccessToken) IsExpired(now time.Time) bool {
	if t == nil || t.Token == "" {
		return true
	}
	return now.UnixMilli() >= t.ExpiresAt
}

// Remaining returns how long the record stays valid, zero when expired.
func (t *AccessToken) Remaining(now time.Time) time.Duration {
	if t == nil {
		return 0
	}
	remaining := time.Duration(t.ExpiresAt-now.UnixMilli()) * time.Millisecond
	if remaining < 0 {
		return 0
	}
	return remaining
}

// UserInfo is the CRM user profile as returned by the backend. Optional
// attributes stay empty rather than collapsing into a free-form map.
type UserInfo struct {
	ID          string     `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName,omitempty"`
	Department  string     `json:"department,omitempty"`
	Region      string     `json:"region,omitempty"`
	IsActive    bool       `json:"isActive"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

// Clone returns a copy so callers can hand the profile out without sharing
// mutable state.
func (u *UserInfo) Clone() *UserInfo {
	if u == nil {
		return nil
	}
	clone := *u
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		clone.LastLoginAt = &at
	}
	return &clone
}

// SessionState is the per-instance authentication snapshot. IsAuthenticated
// tracks token presence; a fully usable session additionally requires User.
type SessionState struct {
	IsAuthenticated bool
	User            *UserInfo
	AccessToken     string
	LastRefresh     *time.Time
	IsLoading       bool
	Error           string
}

// LoginAttemptRecord tracks repeated failed logins for the client-side
// lockout. It lives in the durable state directory, unlike the token record.
type LoginAttemptRecord struct {
	bun.BaseModel `bun:"table:login_attempts,alias:la"`

	Username     string     `bun:"username,pk" json:"username"`
	Count        int        `bun:"count,notnull" json:"count"`
	FirstAttempt time.Time  `bun:"first_attempt,notnull" json:"firstAttempt"`
	LockedUntil  *time.Time `bun:"locked_until" json:"lockedUntil,omitempty"`
}

// IsLocked reports whether the record still enforces a lockout at now.
func (r *LoginAttemptRecord) IsLocked(now time.Time) bool {
	if r == nil || r.LockedUntil == nil {
		return false
	}
	return now.Before(*r.LockedUntil)
}

// RemainingLock returns how much lockout time is left, zero when unlocked.
func (r *LoginAttemptRecord) RemainingLock(now time.Time) time.Duration {
	if !r.IsLocked(now) {
		return 0
	}
	return r.LockedUntil.Sub(now)
}

// Credentials is the login form payload.
type Credentials struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// Validate runs the client-side validation rules before any network call.
func (c Credentials) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Username,
			validation.Required,
			validation.Length(1, 100),
		),
		validation.Field(
			&c.Password,
			validation.Required,
			validation.Length(8, 100),
		),
	)
}

// LoginRequest is the wire payload for POST /auth/login.
type LoginRequest struct {
	Username   string `json:"username"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

// LoginResponse is the success body of POST /auth/login. RefreshToken is only
// present when the backend does not rely exclusively on the HttpOnly cookie.
type LoginResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	User         *UserInfo `json:"user"`
}

// RefreshResponse is the success body of POST /auth/refresh.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// CurrentUserResponse is the success body of GET /auth/me.
type CurrentUserResponse struct {
	User *UserInfo `json:"user"`
}

// APIError is the error envelope the backend returns on failures. Errors
// carries field-level messages on 422 responses.
type APIError struct {
	Message string              `json:"message"`
	Code    int                 `json:"code,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
}
