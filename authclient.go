package authclient

import (
	"context"
	"path/filepath"

	"github.com/uptrace/bun"
)

// Client bundles a fully wired auth stack for one application instance:
// scratch token store, shared signal bus, session manager, API client,
// operations, and the navigation guard.
type Client struct {
	Session *SessionManager
	Flow    *AuthFlow
	Guard   *NavigationGuard
	API     *CRMClient

	store *SessionTokenStore
	bus   *SignalBus
	db    *bun.DB
}

// New assembles a client from configuration. The state dir hosts the shared
// signal channel and the durable attempt database; the token itself lives in
// a per-instance scratch dir that Close removes.
func New(ctx context.Context, cfg Config, logger Logger) (*Client, error) {
	if logger == nil {
		logger = defLogger{}
	}

	bus, err := NewSignalBus(filepath.Join(cfg.GetStateDir(), "signals"))
	if err != nil {
		return nil, err
	}
	bus.WithLogger(logger)

	store, err := NewSessionTokenStore()
	if err != nil {
		bus.Close()
		return nil, err
	}
	store.WithLogger(logger).WithBroadcaster(bus)

	db, err := OpenAttemptDB(filepath.Join(cfg.GetStateDir(), "attempts.db"))
	if err != nil {
		store.Close()
		bus.Close()
		return nil, err
	}

	attempts := NewLoginAttemptStore(db).
		WithLogger(logger).
		WithLimits(cfg.GetMaxLoginAttempts(), cfg.GetAttemptWindow(), cfg.GetLockoutDuration())
	if err := attempts.EnsureSchema(ctx); err != nil {
		db.Close()
		store.Close()
		bus.Close()
		return nil, err
	}

	session := NewSessionManager(store).
		WithLogger(logger).
		WithBroadcaster(bus)

	api, err := NewCRMClient(cfg.GetBaseURL())
	if err != nil {
		db.Close()
		store.Close()
		bus.Close()
		return nil, err
	}
	api.WithLogger(logger).
		WithTimeout(cfg.GetRequestTimeout()).
		WithTokenSource(session.Token).
		WithDebug(cfg.GetDebug())

	flow := NewAuthFlow(session, api).
		WithLogger(logger).
		WithBroadcaster(bus).
		WithAttemptTracker(attempts)

	guard := NewNavigationGuard(session, store).
		WithLogger(logger).
		WithRedirects(cfg.GetLoginRoute(), cfg.GetLandingRoute())

	session.InitAuth()

	return &Client{
		Session: session,
		Flow:    flow,
		Guard:   guard,
		API:     api,
		store:   store,
		bus:     bus,
		db:      db,
	}, nil
}

// TokenStore exposes the per-instance token store.
func (c *Client) TokenStore() *SessionTokenStore {
	return c.store
}

// Bus exposes the cross-instance signal bus.
func (c *Client) Bus() *SignalBus {
	return c.bus
}

// Close tears down the instance: the session subscription, the signal
// watcher, the attempt database, and the token scratch dir.
func (c *Client) Close() error {
	c.Session.Close()
	if err := c.bus.Close(); err != nil {
		return err
	}
	if err := c.db.Close(); err != nil {
		return err
	}
	return c.store.Close()
}
