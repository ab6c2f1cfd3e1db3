package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/internal/identity/session"
	"github.com/skyfold/console/internal/identity/store"
	"github.com/skyfold/console/pkg/httpx"
	"github.com/skyfold/console/pkg/sessionx"
	"github.com/skyfold/console/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	sessions *session.Store
	cookies  *sessionx.Codec

	ScopeService *service.ScopeService
	AuthService  *service.AuthService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	sessions *session.Store,
	cookies *sessionx.Codec,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		sessions:     sessions,
		cookies:      cookies,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		r.withSession,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
	r.registerScoped()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{AuthService: r.AuthService}
	logoutHandler := &LogoutHandler{AuthService: r.AuthService, Sessions: r.sessions, Cookies: r.cookies}
	sessionHandler := &SessionHandler{AuthService: r.AuthService}

	// POST /auth/login - strict rate limit, keyed by IP + username
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)

	r.Mux.Handle("POST /auth/logout", http.HandlerFunc(logoutHandler.HandleLogout))
	r.Mux.Handle("POST /auth/logout-domain",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogoutDomain),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("GET /auth/session", sessionHandler)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store))
}

func (r *Router) registerScoped() {
	scopeHandler := &ScopeHandler{
		ScopeService: r.ScopeService,
		AuthService:  r.AuthService,
	}

	// Everything under /{domain}/... is scope-determined. Literal routes
	// above (/auth/*, /livez, /readyz) win over these wildcards.
	r.Mux.Handle("GET /{domain}", scopeHandler)
	r.Mux.Handle("GET /{domain}/{project}", scopeHandler)
	r.Mux.Handle("GET /{domain}/{project}/{rest...}", scopeHandler)
}
