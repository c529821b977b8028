package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/internal/gateway/store"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/httpx"
	"github.com/entradalabs/entrada/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	client   *backendsdk.Client
	Registry *service.Registry
	Cache    *service.QueryCache
	Notify   *service.NotificationStore
	Admin    *service.Layout
	Client   *service.Layout
}

func NewRouter(
	client *backendsdk.Client,
	registry *service.Registry,
	cache *service.QueryCache,
	notify *service.NotificationStore,
	st store.Store,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		client:       client,
		Registry:     registry,
		Cache:        cache,
		Notify:       notify,
		Admin:        service.NewAdminLayout(),
		Client:       service.NewClientLayout(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		WithSession(r.Registry),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerEvents()
	r.registerOrders()
	r.registerLayout()
	r.registerNotifications()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Registry: r.Registry}

	// Credential endpoints get the strict limit to slow brute force.
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("PUT /v1/auth/profile",
		httpx.Chain(http.HandlerFunc(h.HandleUpdateProfile),
			Guard(service.Requirement{RequireAuth: true}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerEvents() {
	h := &EventsHandler{Client: r.client, Cache: r.Cache}

	r.Mux.Handle("GET /v1/events",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/events/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDetail),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /v1/events/{id}/seats",
		httpx.Chain(http.HandlerFunc(h.HandleSeats),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerOrders() {
	h := &OrdersHandler{Client: r.client, Cache: r.Cache, Notify: r.Notify}
	authed := Guard(service.Requirement{RequireAuth: true})

	r.Mux.Handle("GET /v1/orders",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			authed,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/orders",
		httpx.Chain(http.HandlerFunc(h.HandleCreate),
			authed,
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerLayout() {
	h := &LayoutHandler{Admin: r.Admin, Client: r.Client}

	r.Mux.Handle("GET /v1/layout/{variant}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerNotifications() {
	h := &NotificationsHandler{Notify: r.Notify}

	r.Mux.Handle("GET /v1/notifications",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/notifications/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleDismiss),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerAdmin() {
	h := &AdminHandler{Client: r.client, Cache: r.Cache}

	r.Mux.Handle("GET /v1/admin/dashboard",
		httpx.Chain(http.HandlerFunc(h.HandleDashboard),
			Guard(service.Requirement{RequireAdmin: true}),
			httpx.RateLimitByUser(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

// logFor picks the request-scoped logger.
func logFor(r *http.Request) *slog.Logger {
	return slogx.FromContext(r.Context())
}
