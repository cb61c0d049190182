package authclient

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// TokenStore persists the access token record for the lifetime of one client
// instance. GetToken returns nil for absent or unreadable records.
type TokenStore interface {
	SetToken(token string, expiresIn int64) error
	GetToken() *AccessToken
	RemoveToken()
	Clear()
}

// Broadcaster is the cross-instance signal channel. Subscribe returns an
// unregister function; removing one handler must not affect the others.
type Broadcaster interface {
	Publish(topic string) error
	Subscribe(topic string, handler func()) func()
}

// APIClient holds the backend operations the auth flow depends on
type APIClient interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) (*RefreshResponse, error)
	CurrentUser(ctx context.Context) (*UserInfo, error)
}

// AttemptTracker records failed logins and enforces the client-side lockout
type AttemptTracker interface {
	Get(ctx context.Context, username string) (*LoginAttemptRecord, error)
	RecordFailure(ctx context.Context, username string) (*LoginAttemptRecord, error)
	ClearAttempts(ctx context.Context, username string) error
	IsLocked(ctx context.Context, username string) (bool, time.Duration, error)
}

// Config holds client options
type Config interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetStateDir() string
	GetLoginRoute() string
	GetLandingRoute() string
	GetMaxLoginAttempts() int
	GetAttemptWindow() time.Duration
	GetLockoutDuration() time.Duration
	GetDebug() bool
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTH "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTH "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTH "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
