package authclient

import (
	"context"
	"time"
)

// AuthFlow orchestrates the authentication operations against the backend:
// login with client-side lockout, best-effort logout, token refresh, and
// user profile loading. It owns nothing itself; state lives in the session
// manager and the stores it was built with.
type AuthFlow struct {
	session  *SessionManager
	api      APIClient
	bus      Broadcaster
	attempts AttemptTracker
	activity ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewAuthFlow creates the orchestrator over a session manager and an API
// client.
func NewAuthFlow(session *SessionManager, api APIClient) *AuthFlow {
	return &AuthFlow{
		session:  session,
		api:      api,
		bus:      NoopBroadcaster{},
		activity: noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger sets the logger
func (f *AuthFlow) WithLogger(logger Logger) *AuthFlow {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// WithBroadcaster wires the signal bus used to announce sign-outs to sibling
// instances.
func (f *AuthFlow) WithBroadcaster(bus Broadcaster) *AuthFlow {
	if bus != nil {
		f.bus = bus
	}
	return f
}

// WithAttemptTracker enables the client-side lockout.
func (f *AuthFlow) WithAttemptTracker(tracker AttemptTracker) *AuthFlow {
	f.attempts = tracker
	return f
}

// WithActivitySink wires the analytics sink.
func (f *AuthFlow) WithActivitySink(sink ActivitySink) *AuthFlow {
	f.activity = normalizeActivitySink(sink)
	return f
}

// WithClock overrides the time source, used by tests.
func (f *AuthFlow) WithClock(now func() time.Time) *AuthFlow {
	if now != nil {
		f.now = now
	}
	return f
}

// Login validates the credentials, honors an active lockout without touching
// the network, and on success installs the session. The returned error is
// already classified; UserMessage resolves what to show.
func (f *AuthFlow) Login(ctx context.Context, creds Credentials) (*UserInfo, error) {
	f.session.ClearError()

	if err := creds.Validate(); err != nil {
		wrapped := wrapValidationError(err)
		f.session.SetError(UserMessage(wrapped))
		return nil, wrapped
	}

	if f.attempts != nil {
		locked, remaining, err := f.attempts.IsLocked(ctx, creds.Username)
		if err != nil {
			f.logger.Error("login could not consult attempt store: %v", err)
		} else if locked {
			lockedErr := ErrAccountLocked.Clone().WithMetadata(map[string]any{
				"retry_after": remaining.String(),
			})
			f.emit(ctx, ActivityEventRateLimitTriggered, creds.Username, "", map[string]any{
				"retry_after": remaining.String(),
			})
			f.session.SetError(UserMessage(lockedErr))
			return nil, lockedErr
		}
	}

	f.session.SetLoading(true)
	defer f.session.SetLoading(false)

	f.emit(ctx, ActivityEventLoginAttempt, creds.Username, "", nil)

	res, err := f.api.Login(ctx, LoginRequest{
		Username:   creds.Username,
		Password:   creds.Password,
		RememberMe: creds.RememberMe,
	})
	if err != nil {
		if f.attempts != nil && IsAuthError(err) {
			if _, rerr := f.attempts.RecordFailure(ctx, creds.Username); rerr != nil {
				f.logger.Error("login could not record failed attempt: %v", rerr)
			}
		}
		f.emit(ctx, ActivityEventLoginFailure, creds.Username, "", map[string]any{
			"error": err.Error(),
		})
		f.session.SetError(UserMessage(err))
		return nil, err
	}

	if err := f.session.SetAuthData(res.AccessToken, res.ExpiresIn, res.User); err != nil {
		f.session.SetError(UserMessage(err))
		return nil, err
	}

	if f.attempts != nil {
		if err := f.attempts.ClearAttempts(ctx, creds.Username); err != nil {
			f.logger.Error("login could not clear attempt record: %v", err)
		}
	}

	userID := ""
	if res.User != nil {
		userID = res.User.ID
	}
	f.emit(ctx, ActivityEventLoginSuccess, creds.Username, userID, nil)

	return res.User.Clone(), nil
}

// Logout tears down the session. The backend call is best effort: the local
// state clears and the sign-out broadcasts even when the server is
// unreachable, so Logout never fails.
func (f *AuthFlow) Logout(ctx context.Context) error {
	f.session.SetLoading(true)
	defer f.session.SetLoading(false)

	username := ""
	if user := f.session.User(); user != nil {
		username = user.Username
	}

	if err := f.api.Logout(ctx); err != nil {
		f.logger.Error("logout request failed, clearing locally: %v", err)
	}

	f.session.ClearAuthState()

	if err := f.bus.Publish(TopicAuthClear); err != nil {
		f.logger.Error("logout could not broadcast sign-out: %v", err)
	}

	f.emit(ctx, ActivityEventLogout, username, "", nil)

	return nil
}

// RefreshToken exchanges the refresh cookie for a new access token. A failed
// refresh is terminal: the session clears and the sign-out broadcasts, since
// no further request can succeed until the user logs in again.
func (f *AuthFlow) RefreshToken(ctx context.Context) (string, error) {
	f.session.ClearError()

	f.emit(ctx, ActivityEventRefreshStart, "", "", nil)

	res, err := f.api.Refresh(ctx)
	if err != nil {
		f.emit(ctx, ActivityEventRefreshFailure, "", "", map[string]any{
			"error": err.Error(),
		})

		if IsAuthError(err) {
			f.session.ClearAuthState()
			f.session.SetError(UserMessage(err))
			if perr := f.bus.Publish(TopicAuthClear); perr != nil {
				f.logger.Error("refresh could not broadcast sign-out: %v", perr)
			}
		}
		return "", err
	}

	if err := f.session.UpdateToken(res.AccessToken, res.ExpiresIn); err != nil {
		return "", err
	}

	f.emit(ctx, ActivityEventRefreshSuccess, "", "", nil)

	return res.AccessToken, nil
}

// FetchUser loads the authenticated user's profile into the session. An
// expired token triggers one refresh and retry before giving up.
func (f *AuthFlow) FetchUser(ctx context.Context) (*UserInfo, error) {
	f.session.ClearError()

	user, err := f.api.CurrentUser(ctx)
	if err != nil && IsTokenExpiredError(err) {
		if _, rerr := f.RefreshToken(ctx); rerr != nil {
			return nil, err
		}
		user, err = f.api.CurrentUser(ctx)
	}
	if err != nil {
		f.session.SetError(UserMessage(err))
		return nil, err
	}

	f.session.SetUser(user)
	return user.Clone(), nil
}

// CheckAuthStatus reconciles the session at startup or on demand: an expired
// token is refreshed, a missing profile is fetched, and the result reports
// whether the session is fully usable.
func (f *AuthFlow) CheckAuthStatus(ctx context.Context) (bool, error) {
	if !f.session.IsAuthenticated() {
		return false, nil
	}

	if token := f.session.Token(); token != "" && IsRawTokenExpired(token, f.now()) {
		if _, err := f.RefreshToken(ctx); err != nil {
			return false, err
		}
	}

	if f.session.User() == nil {
		if _, err := f.FetchUser(ctx); err != nil {
			return false, err
		}
	}

	return f.session.IsLoggedIn(), nil
}

func (f *AuthFlow) emit(ctx context.Context, eventType ActivityEventType, username, userID string, meta map[string]any) {
	err := f.activity.Record(ctx, ActivityEvent{
		EventType:  eventType,
		Username:   username,
		UserID:     userID,
		Metadata:   meta,
		OccurredAt: f.now(),
	})
	if err != nil {
		f.logger.Error("activity sink rejected %s: %v", eventType, err)
	}
}
