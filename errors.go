package authclient

import (
	"context"
	"net"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

const (
	TextCodeInvalidCreds    = "auth_invalid_credentials"
	TextCodeTokenExpired    = "auth_token_expired"
	TextCodeRefreshExpired  = "auth_refresh_expired"
	TextCodeNetworkError    = "network_error"
	TextCodeTimeout         = "network_timeout"
	TextCodeAccountLocked   = "account_locked"
	TextCodeTooManyAttempts = "rate_limit_exceeded"
	TextCodeValidation      = "validation_failed"
	TextCodeServerError     = "server_error"
	TextCodeUnknown         = "unknown_error"
)

// ErrInvalidCredentials is returned when the backend rejects the username or
// password, and for any 401 during login.
var ErrInvalidCredentials = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when the stored access token is past its expiry.
var ErrTokenExpired = errors.New("access token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrRefreshExpired is returned when a refresh attempt comes back 401, meaning
// the refresh credential itself is no longer usable.
var ErrRefreshExpired = errors.New("refresh token expired or invalid", errors.CategoryAuth).
	WithTextCode(TextCodeRefreshExpired).
	WithCode(errors.CodeUnauthorized)

// ErrNetwork is returned when the backend could not be reached at all.
var ErrNetwork = errors.New("unable to reach server", errors.CategoryOperation).
	WithTextCode(TextCodeNetworkError)

// ErrTimeout is returned when a request exceeds the client timeout.
var ErrTimeout = errors.New("request timed out", errors.CategoryOperation).
	WithTextCode(TextCodeTimeout)

// ErrAccountLocked is returned by the client-side lockout, before any network
// call is made.
var ErrAccountLocked = errors.New("too many failed login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeAccountLocked)

// ErrTooManyLoginAttempts is returned for 429 responses from the backend.
var ErrTooManyLoginAttempts = errors.New("too many login attempts", errors.CategoryRateLimit).
	WithTextCode(TextCodeTooManyAttempts)

// ErrValidationFailed is returned for 422 responses and local credential
// validation failures. Field errors travel in Metadata under "fields".
var ErrValidationFailed = errors.New("validation failed", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

// ErrServerError is returned for 5xx responses.
var ErrServerError = errors.New("server error", errors.CategoryInternal).
	WithTextCode(TextCodeServerError).
	WithCode(errors.CodeInternal)

// ErrUnknown is the fallback classification.
var ErrUnknown = errors.New("unexpected error", errors.CategoryInternal).
	WithTextCode(TextCodeUnknown).
	WithCode(errors.CodeInternal)

// userMessages maps text codes to the zh-TW strings shown to end users.
var userMessages = map[string]string{
	TextCodeInvalidCreds:    "帳號或密碼錯誤",
	TextCodeTokenExpired:    "登入已過期，請重新登入",
	TextCodeRefreshExpired:  "Refresh token 無效或已過期，請重新登入",
	TextCodeNetworkError:    "無法連線至伺服器，請稍後再試",
	TextCodeTimeout:         "請求逾時，請檢查網路連線",
	TextCodeAccountLocked:   "登入失敗次數過多，請稍後再試",
	TextCodeTooManyAttempts: "登入嘗試過於頻繁，請稍後再試",
	TextCodeValidation:      "驗證失敗",
	TextCodeServerError:     "伺服器錯誤，請稍後再試",
	TextCodeUnknown:         "發生未知錯誤，請聯絡客服",
}

// UserMessage resolves the user-facing message for an error. A message the
// backend supplied wins over the local table; anything unclassified falls back
// to the unknown entry.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var rich *errors.Error
	if errors.As(err, &rich) && rich != nil {
		if msg, ok := rich.Metadata["server_message"].(string); ok && msg != "" {
			return msg
		}
		if msg, ok := userMessages[rich.TextCode]; ok {
			return msg
		}
	}

	return userMessages[TextCodeUnknown]
}

// mapStatusError classifies a non-2xx response into the error taxonomy.
// The login flag keeps 401 semantics apart: during login it means bad
// credentials, elsewhere it means the session credential expired.
func mapStatusError(status int, apiErr *APIError, login bool) error {
	var base *errors.Error

	switch {
	case status == 401 && login:
		base = ErrInvalidCredentials
	case status == 401:
		base = ErrTokenExpired
	case status == 422:
		base = ErrValidationFailed
	case status == 429:
		base = ErrTooManyLoginAttempts
	case status >= 500:
		base = ErrServerError
	default:
		base = ErrUnknown
	}

	clone := base.Clone()
	meta := map[string]any{"status": status}
	if apiErr != nil {
		if apiErr.Message != "" {
			meta["server_message"] = apiErr.Message
		}
		if len(apiErr.Errors) > 0 {
			meta["fields"] = apiErr.Errors
		}
	}
	return clone.WithMetadata(meta)
}

// wrapTransportError classifies request errors that never produced a response.
func wrapTransportError(err error) error {
	if err == nil {
		return nil
	}

	if isTimeoutError(err) {
		clone := ErrTimeout.Clone()
		clone.Source = err
		return clone
	}

	clone := ErrNetwork.Clone()
	clone.Source = err
	return clone
}

func isTimeoutError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}

// wrapValidationError converts an ozzo validation result into the taxonomy,
// carrying per-field messages in metadata.
func wrapValidationError(err error) error {
	if err == nil {
		return nil
	}

	fields := map[string][]string{}
	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			fields[field] = append(fields[field], ferr.Error())
		}
	}

	clone := ErrValidationFailed.Clone()
	clone.Source = err
	if len(fields) > 0 {
		clone.WithMetadata(map[string]any{"fields": fields})
	}
	return clone
}

// IsAuthError reports whether the error belongs to the auth category.
func IsAuthError(err error) bool {
	var rich *errors.Error
	if errors.As(err, &rich) && rich != nil {
		return rich.Category == errors.CategoryAuth
	}
	return false
}

// IsRateLimitError reports whether the error belongs to the rate-limit
// category, covering both the client-side lockout and backend 429s.
func IsRateLimitError(err error) bool {
	var rich *errors.Error
	if errors.As(err, &rich) && rich != nil {
		return rich.Category == errors.CategoryRateLimit
	}
	return false
}

// IsTokenExpiredError will check for expired tokens, including legacy string
// forms from JWT libraries.
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	var rich *errors.Error
	if errors.As(err, &rich) && rich != nil {
		if rich.TextCode == TextCodeTokenExpired || rich.TextCode == TextCodeRefreshExpired {
			return true
		}
	}
	return strings.Contains(err.Error(), "token is expired")
}
