package authclient_test

import (
	"testing"
	"time"

	authclient "github.com/goliatone/go-auth-client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenComputesAbsoluteExpiry(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	record := authclient.NewAccessToken("tok-123", 900, issuedAt)

	assert.Equal(t, "tok-123", record.Token)
	assert.Equal(t, int64(900), record.ExpiresIn)
	assert.Equal(t, issuedAt.UnixMilli()+900*1000, record.ExpiresAt)
}

func TestAccessTokenIsExpired(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	record := authclient.NewAccessToken("tok-123", 900, issuedAt)

	tests := []struct {
		name     string
		at       time.Time
		expected bool
	}{
		{
			name:     "before expiry",
			at:       issuedAt.Add(899 * time.Second),
			expected: false,
		},
		{
			name:     "exactly at expiry",
			at:       issuedAt.Add(900 * time.Second),
			expected: true,
		},
		{
			name:     "after expiry",
			at:       issuedAt.Add(901 * time.Second),
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, record.IsExpired(tt.at))
		})
	}

	t.Run("nil record", func(t *testing.T) {
		var nilRecord *authclient.AccessToken
		assert.True(t, nilRecord.IsExpired(issuedAt))
	})

	t.Run("empty token", func(t *testing.T) {
		empty := &authclient.AccessToken{ExpiresAt: issuedAt.Add(time.Hour).UnixMilli()}
		assert.True(t, empty.IsExpired(issuedAt))
	})
}

func TestAccessTokenRemaining(t *testing.T) {
	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	record := authclient.NewAccessToken("tok-123", 60, issuedAt)

	assert.Equal(t, 60*time.Second, record.Remaining(issuedAt))
	assert.Equal(t, time.Duration(0), record.Remaining(issuedAt.Add(2*time.Minute)))
}

func TestUserInfoClone(t *testing.T) {
	lastLogin := time.Date(2025, 5, 30, 8, 0, 0, 0, time.UTC)
	user := &authclient.UserInfo{
		ID:          "u-1",
		Username:    "wang.xiaoming",
		Email:       "wang@example.com",
		FullName:    "王小明",
		Department:  "業務部",
		IsActive:    true,
		LastLoginAt: &lastLogin,
	}

	clone := user.Clone()
	require.NotNil(t, clone)

	clone.FullName = "changed"
	later := lastLogin.Add(time.Hour)
	*clone.LastLoginAt = later

	assert.Equal(t, "王小明", user.FullName)
	assert.Equal(t, lastLogin, *user.LastLoginAt)

	t.Run("nil user", func(t *testing.T) {
		var nilUser *authclient.UserInfo
		assert.Nil(t, nilUser.Clone())
	})
}

func TestLoginAttemptRecordLocking(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	until := now.Add(15 * time.Minute)

	record := &authclient.LoginAttemptRecord{
		Username:     "wang.xiaoming",
		Count:        5,
		FirstAttempt: now.Add(-5 * time.Minute),
		LockedUntil:  &until,
	}

	assert.True(t, record.IsLocked(now))
	assert.Equal(t, 15*time.Minute, record.RemainingLock(now))

	assert.False(t, record.IsLocked(until))
	assert.Equal(t, time.Duration(0), record.RemainingLock(until))

	t.Run("no lock", func(t *testing.T) {
		unlocked := &authclient.LoginAttemptRecord{Username: "lin", Count: 2, FirstAttempt: now}
		assert.False(t, unlocked.IsLocked(now))
	})

	t.Run("nil record", func(t *testing.T) {
		var nilRecord *authclient.LoginAttemptRecord
		assert.False(t, nilRecord.IsLocked(now))
	})
}

func TestCredentialsValidate(t *testing.T) {
	tests := []struct {
		name    string
		creds   authclient.Credentials
		wantErr bool
	}{
		{
			name:    "valid",
			creds:   authclient.Credentials{Username: "wang.xiaoming", Password: "Secret#123"},
			wantErr: false,
		},
		{
			name:    "missing username",
			creds:   authclient.Credentials{Password: "Secret#123"},
			wantErr: true,
		},
		{
			name:    "missing password",
			creds:   authclient.Credentials{Username: "wang.xiaoming"},
			wantErr: true,
		},
		{
			name:    "password too short",
			creds:   authclient.Credentials{Username: "wang.xiaoming", Password: "short"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.creds.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
