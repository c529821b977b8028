package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/httpx"
	"github.com/entradalabs/entrada/pkg/slogx"
)

// SessionCookie carries the browser-session token.
const SessionCookie = "entrada_session"

type ctxKey string

const ctxKeySession ctxKey = "session_manager"

// sessionFromContext returns the request's session manager, or nil for
// guests.
func sessionFromContext(ctx context.Context) *service.SessionManager {
	manager, _ := ctx.Value(ctxKeySession).(*service.SessionManager)
	return manager
}

// snapshotFromContext returns the session snapshot, or the signed-out
// snapshot for guests.
func snapshotFromContext(ctx context.Context) service.Snapshot {
	if manager := sessionFromContext(ctx); manager != nil {
		return manager.Snapshot()
	}
	return service.Snapshot{}
}

// WithSession resolves the session cookie into a session manager and puts
// it on the request context. Guests and stale cookies pass through without
// one; route guards decide what that means.
func WithSession(registry *service.Registry) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			manager, err := registry.Resolve(r.Context(), cookie.Value)
			if err != nil {
				if !errors.Is(err, service.ErrSessionUnknown) {
					slogx.FromContext(r.Context()).Warn("session resolve failed", "err", err)
				}
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeySession, manager)
			if snap := manager.Snapshot(); snap.Identity != nil {
				ctx = httpx.ContextWithUserID(ctx, snap.Identity.ID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Guard enforces a requirement on a route by mapping the guard decision
// onto HTTP: pending resolves to 503, a redirect to 302, a denial to 403.
func Guard(requirement service.Requirement) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := service.Evaluate(snapshotFromContext(r.Context()), requirement)
			switch decision.Kind {
			case service.DecisionPending:
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(w, http.StatusServiceUnavailable, "session_pending", "session is still resolving")
			case service.DecisionRedirect:
				http.Redirect(w, r, decision.Target, http.StatusFound)
			case service.DecisionDeny:
				httpx.WriteError(w, http.StatusForbidden, "access_denied", "admin access required")
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}
