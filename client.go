package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

const defaultRequestTimeout = 15 * time.Second

// TokenSource supplies the bearer token for outgoing requests. An empty
// string means the request goes out unauthenticated.
type TokenSource func() string

// CRMClient talks to the CRM backend's auth endpoints. A cookie jar keeps the
// HttpOnly refresh cookie the backend sets at login, so Refresh replays it
// without the client ever reading the value.
type CRMClient struct {
	baseURL string
	http    *http.Client
	token   TokenSource
	logger  Logger
	debug   bool
}

// NewCRMClient creates a client for the given base URL, e.g.
// "https://crm.example.com/api/v1".
func NewCRMClient(baseURL string) (*CRMClient, error) {
	if baseURL == "" {
		return nil, errors.New("base URL must not be empty", errors.CategoryBadInput)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "unable to create cookie jar")
	}

	return &CRMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: defaultRequestTimeout,
			Jar:     jar,
		},
		token:  func() string { return "" },
		logger: defLogger{},
	}, nil
}

// WithLogger sets the logger
func (c *CRMClient) WithLogger(logger Logger) *CRMClient {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// WithTokenSource wires where the bearer token comes from, normally the
// session manager.
func (c *CRMClient) WithTokenSource(src TokenSource) *CRMClient {
	if src != nil {
		c.token = src
	}
	return c
}

// WithTimeout overrides the request timeout.
func (c *CRMClient) WithTimeout(timeout time.Duration) *CRMClient {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
	return c
}

// WithHTTPClient swaps the underlying client, keeping the cookie jar if the
// replacement has none.
func (c *CRMClient) WithHTTPClient(client *http.Client) *CRMClient {
	if client != nil {
		if client.Jar == nil {
			client.Jar = c.http.Jar
		}
		c.http = client
	}
	return c
}

// WithDebug enables payload dumps on the debug log.
func (c *CRMClient) WithDebug(debug bool) *CRMClient {
	c.debug = debug
	return c
}

// Login exchanges credentials for an access token. The backend also sets the
// HttpOnly refresh cookie on this response.
func (c *CRMClient) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	out := &LoginResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/login", req, out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout invalidates the server-side session.
func (c *CRMClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil, false)
}

// Refresh exchanges the refresh cookie for a new access token.
func (c *CRMClient) Refresh(ctx context.Context) (*RefreshResponse, error) {
	out := &RefreshResponse{}
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// CurrentUser fetches the profile of the authenticated user.
func (c *CRMClient) CurrentUser(ctx context.Context) (*UserInfo, error) {
	out := &CurrentUserResponse{}
	if err := c.do(ctx, http.MethodGet, "/auth/me", nil, out, false); err != nil {
		return nil, err
	}
	if out.User == nil {
		return nil, ErrUnknown.Clone().WithMetadata(map[string]any{
			"reason": "user payload missing from response",
		})
	}
	return out.User, nil
}

func (c *CRMClient) do(ctx context.Context, method, path string, body, out any, login bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "unable to encode request body")
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "unable to build request")
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return wrapTransportError(err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return wrapTransportError(err)
	}

	if c.debug {
		c.logger.Debug("%s %s -> %d %s", method, path, res.StatusCode, print.MaybePrettyJSON(json.RawMessage(data)))
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := &APIError{}
		if err := json.Unmarshal(data, apiErr); err != nil {
			apiErr = nil
		}
		// refresh failures carry terminal semantics: the session cannot
		// be repaired without a fresh login
		if res.StatusCode == 401 && path == "/auth/refresh" {
			clone := ErrRefreshExpired.Clone()
			meta := map[string]any{"status": res.StatusCode}
			if apiErr != nil && apiErr.Message != "" {
				meta["server_message"] = apiErr.Message
			}
			return clone.WithMetadata(meta)
		}
		return mapStatusError(res.StatusCode, apiErr, login)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, "unable to decode response body")
		}
	}

	return nil
}
