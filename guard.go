package authclient

import (
	"sync"
	"time"
)

// Route describes a navigable destination in the embedding application.
type Route struct {
	Name         string
	Path         string
	RequiresAuth bool
	Title        string
}

// Decision is the guard's verdict for one navigation. When Allowed is false,
// RedirectTo names the route to go to instead.
type Decision struct {
	Allowed    bool
	RedirectTo string
	Title      string
}

// DefaultRoutes is the CRM application's route table.
func DefaultRoutes() []Route {
	return []Route{
		{Name: "login", Path: "/login", RequiresAuth: false, Title: "登入 - SaaS 登入系統"},
		{Name: "app-center", Path: "/app-center", RequiresAuth: true, Title: "應用程式中心 - SaaS 登入系統"},
		{Name: "dashboard", Path: "/dashboard", RequiresAuth: true, Title: "會員頁面 - SaaS 登入系統"},
		{Name: "profile", Path: "/profile", RequiresAuth: true, Title: "個人資料 - SaaS 登入系統"},
	}
}

// NavigationGuard is the deterministic gate consulted before every route
// transition. Token validity comes straight from the token store, not the
// in-memory session, so the guard gives the right answer even before the
// session has hydrated.
type NavigationGuard struct {
	mu     sync.RWMutex
	routes map[string]Route

	session      *SessionManager
	store        TokenStore
	loginRoute   string
	landingRoute string
	logger       Logger
	now          func() time.Time
}

// NewNavigationGuard creates a guard over the default route table.
func NewNavigationGuard(session *SessionManager, store TokenStore) *NavigationGuard {
	g := &NavigationGuard{
		routes:       map[string]Route{},
		session:      session,
		store:        store,
		loginRoute:   "login",
		landingRoute: "app-center",
		logger:       defLogger{},
		now:          time.Now,
	}
	g.Register(DefaultRoutes()...)
	return g
}

// WithLogger sets the logger
func (g *NavigationGuard) WithLogger(logger Logger) *NavigationGuard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// WithRedirects overrides where unauthenticated and already-signed-in
// navigations land.
func (g *NavigationGuard) WithRedirects(loginRoute, landingRoute string) *NavigationGuard {
	if loginRoute != "" {
		g.loginRoute = loginRoute
	}
	if landingRoute != "" {
		g.landingRoute = landingRoute
	}
	return g
}

// WithClock overrides the time source, used by tests.
func (g *NavigationGuard) WithClock(now func() time.Time) *NavigationGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// Register adds or replaces routes in the table.
func (g *NavigationGuard) Register(routes ...Route) *NavigationGuard {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, route := range routes {
		g.routes[route.Name] = route
	}
	return g
}

// Lookup returns a registered route by name.
func (g *NavigationGuard) Lookup(name string) (Route, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	route, ok := g.routes[name]
	return route, ok
}

// Evaluate applies the guard rules to a navigation target, in order:
// a protected route without a valid token redirects to login; the login
// route with a valid token and an authenticated session redirects to the
// landing route; everything else passes. Unknown targets redirect to login,
// matching the application's catch-all. A token on disk that has not been
// picked up by the session yet does not bounce the user away from login.
func (g *NavigationGuard) Evaluate(name string) Decision {
	target, ok := g.Lookup(name)
	if !ok {
		g.logger.Debug("guard has no route %q, redirecting to %s", name, g.loginRoute)
		return Decision{RedirectTo: g.loginRoute}
	}

	hasToken := g.hasValidToken()

	if target.RequiresAuth && !hasToken {
		return Decision{RedirectTo: g.loginRoute, Title: target.Title}
	}

	if target.Name == g.loginRoute && hasToken && g.session.IsAuthenticated() {
		return Decision{RedirectTo: g.landingRoute, Title: target.Title}
	}

	return Decision{Allowed: true, Title: target.Title}
}

func (g *NavigationGuard) hasValidToken() bool {
	record := g.store.GetToken()
	return record != nil && !record.IsExpired(g.now())
}
