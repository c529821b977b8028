package http

import (
	"bytes"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/internal/gateway/store/drivers/sqlite"
	"github.com/entradalabs/entrada/pkg/backendsdk"
)

// fakeBackend fakes the hosted backend: auth grants, the profile mirror,
// the admin list and a couple of queryable tables.
type fakeBackend struct {
	isAdmin bool

	eventsHits atomic.Int32
	ordersHits atomic.Int32
	orderPosts atomic.Int32
}

func (f *fakeBackend) handler() stdhttp.Handler {
	mux := stdhttp.NewServeMux()

	mux.HandleFunc("POST /auth/v1/token", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-user_1",
			"refresh_token": "refresh-user_1",
			"token_type":    "bearer",
			"expires_in":    3600,
			"user": map[string]any{
				"id":    "user_1",
				"email": "casey@example.com",
				"user_metadata": map[string]any{
					"first_name": "Casey",
				},
			},
		})
	})

	mux.HandleFunc("POST /auth/v1/logout", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusNoContent)
	})

	mux.HandleFunc("GET /rest/v1/users", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"id": "user_1"})
	})
	mux.HandleFunc("PATCH /rest/v1/users", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusNoContent)
	})

	mux.HandleFunc("GET /rest/v1/admin_users", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if !f.isAdmin {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(stdhttp.StatusNotAcceptable)
			json.NewEncoder(w).Encode(map[string]string{"code": "PGRST116", "message": "no rows"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"role": "super_admin", "is_active": true})
	})

	mux.HandleFunc("GET /rest/v1/events", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		f.eventsHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ev_1", "title": "Opening Night", "status": "active"},
		})
	})

	mux.HandleFunc("GET /rest/v1/orders", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		f.ordersHits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "ord_1", "order_number": "ORD-0001"},
		})
	})
	mux.HandleFunc("POST /rest/v1/orders", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		f.orderPosts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stdhttp.StatusCreated)
		json.NewEncoder(w).Encode(map[string]any{"id": "ord_2", "order_number": "ORD-0002"})
	})

	return mux
}

type testGateway struct {
	router  *Router
	backend *fakeBackend
	notify  *service.NotificationStore
}

func newTestGateway(t *testing.T, backend *fakeBackend) *testGateway {
	t.Helper()

	srv := httptest.NewServer(backend.handler())
	t.Cleanup(srv.Close)

	client, err := backendsdk.NewClient(srv.URL, "anon-key")
	require.NoError(t, err)

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	notify := service.NewNotificationStore()
	t.Cleanup(notify.Close)

	cache := service.NewQueryCache(notify, nil)
	registry := service.NewRegistry(client, db.Sessions(), notify, nil)
	t.Cleanup(registry.Close)

	router := NewRouter(client, registry, cache, notify, db, "test", nil)
	router.ApplyRoutes()

	return &testGateway{router: router, backend: backend, notify: notify}
}

func (g *testGateway) do(t *testing.T, method, path string, body any, cookie *stdhttp.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	g.router.ServeHTTP(rec, req)
	return rec
}

func (g *testGateway) login(t *testing.T) *stdhttp.Cookie {
	t.Helper()

	rec := g.do(t, stdhttp.MethodPost, "/v1/auth/login", map[string]string{
		"email":    "casey@example.com",
		"password": "secret",
	}, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == SessionCookie && cookie.Value != "" {
			return cookie
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})
	cookie := gw.login(t)
	require.True(t, cookie.HttpOnly)

	rec := gw.do(t, stdhttp.MethodGet, "/v1/auth/session", nil, cookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.True(t, session.Authenticated)
	require.Equal(t, "user_1", session.User.ID)
	require.False(t, session.IsAdmin)
}

func TestSessionWithoutCookieIsGuest(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})

	rec := gw.do(t, stdhttp.MethodGet, "/v1/auth/session", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.False(t, session.Authenticated)
	require.Nil(t, session.User)
}

func TestLoginRejectedPropagatesAuthError(t *testing.T) {
	t.Parallel()

	mux := stdhttp.NewServeMux()
	mux.HandleFunc("POST /auth/v1/token", func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(stdhttp.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_credentials",
			"error_description": "Invalid login credentials",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client, err := backendsdk.NewClient(srv.URL, "anon-key")
	require.NoError(t, err)
	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	registry := service.NewRegistry(client, db.Sessions(), nil, nil)
	t.Cleanup(registry.Close)
	router := NewRouter(client, registry, service.NewQueryCache(nil, nil), nil, db, "test", nil)
	router.ApplyRoutes()

	body, _ := json.Marshal(map[string]string{"email": "x@example.com", "password": "bad"})
	req := httptest.NewRequest(stdhttp.MethodPost, "/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, stdhttp.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), "auth_failed")
}

func TestEventsListIsCached(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	gw := newTestGateway(t, backend)

	for range 3 {
		rec := gw.do(t, stdhttp.MethodGet, "/v1/events?category=music", nil, nil)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "Opening Night")
	}
	require.EqualValues(t, 1, backend.eventsHits.Load())

	// A different filter is a different key.
	rec := gw.do(t, stdhttp.MethodGet, "/v1/events", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.EqualValues(t, 2, backend.eventsHits.Load())
}

func TestOrdersRequireAuth(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})

	rec := gw.do(t, stdhttp.MethodGet, "/v1/orders", nil, nil)
	require.Equal(t, stdhttp.StatusFound, rec.Code)
	require.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestOrdersListAndCreate(t *testing.T) {
	t.Parallel()

	backend := &fakeBackend{}
	gw := newTestGateway(t, backend)
	cookie := gw.login(t)

	rec := gw.do(t, stdhttp.MethodGet, "/v1/orders", nil, cookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	rec = gw.do(t, stdhttp.MethodGet, "/v1/orders", nil, cookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.EqualValues(t, 1, backend.ordersHits.Load())

	rec = gw.do(t, stdhttp.MethodPost, "/v1/orders", map[string]any{
		"event_id": "ev_1",
		"total":    120.0,
	}, cookie)
	require.Equal(t, stdhttp.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), "ORD-0002")
	require.EqualValues(t, 1, backend.orderPosts.Load())

	// Creation invalidated the listing cache.
	rec = gw.do(t, stdhttp.MethodGet, "/v1/orders", nil, cookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.EqualValues(t, 2, backend.ordersHits.Load())
}

func TestAdminDashboardGuard(t *testing.T) {
	t.Parallel()

	t.Run("guest is redirected", func(t *testing.T) {
		t.Parallel()
		gw := newTestGateway(t, &fakeBackend{})

		rec := gw.do(t, stdhttp.MethodGet, "/v1/admin/dashboard", nil, nil)
		require.Equal(t, stdhttp.StatusFound, rec.Code)
		require.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("non-admin is denied", func(t *testing.T) {
		t.Parallel()
		gw := newTestGateway(t, &fakeBackend{})
		cookie := gw.login(t)

		rec := gw.do(t, stdhttp.MethodGet, "/v1/admin/dashboard", nil, cookie)
		require.Equal(t, stdhttp.StatusForbidden, rec.Code)
		require.Contains(t, rec.Body.String(), "access_denied")
	})

	t.Run("admin passes", func(t *testing.T) {
		t.Parallel()
		backend := &fakeBackend{isAdmin: true}
		gw := newTestGateway(t, backend)
		cookie := gw.login(t)

		require.Eventually(t, func() bool {
			rec := gw.do(t, stdhttp.MethodGet, "/v1/auth/session", nil, cookie)
			var session sessionResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
			return session.IsAdmin
		}, time.Second, 5*time.Millisecond)

		rec := gw.do(t, stdhttp.MethodGet, "/v1/admin/dashboard", nil, cookie)
		require.Equal(t, stdhttp.StatusOK, rec.Code)
		require.Contains(t, rec.Body.String(), "active_events")
	})
}

func TestLayoutVariants(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})

	rec := gw.do(t, stdhttp.MethodGet, "/v1/layout/client", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	var layout layoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layout))
	require.Equal(t, service.LayoutClient, layout.Variant)
	require.False(t, layout.Config.Sidebar)
	require.True(t, layout.Config.Footer)
	require.Len(t, layout.Navigation, 4)

	// Admin navigation is permission-tagged; guests see none of it.
	rec = gw.do(t, stdhttp.MethodGet, "/v1/layout/admin", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &layout))
	require.Equal(t, service.LayoutAdmin, layout.Variant)
	require.Empty(t, layout.Navigation)

	rec = gw.do(t, stdhttp.MethodGet, "/v1/layout/print", nil, nil)
	require.Equal(t, stdhttp.StatusNotFound, rec.Code)
}

func TestLogoutClearsSession(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})
	cookie := gw.login(t)

	rec := gw.do(t, stdhttp.MethodPost, "/v1/auth/logout", nil, cookie)
	require.Equal(t, stdhttp.StatusOK, rec.Code)

	// The old cookie no longer resolves.
	rec = gw.do(t, stdhttp.MethodGet, "/v1/auth/session", nil, cookie)
	var session sessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &session))
	require.False(t, session.Authenticated)
}

func TestNotificationsListAndDismiss(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})
	id := gw.notify.Info("Heads up", "The box office closes early today", time.Minute)

	rec := gw.do(t, stdhttp.MethodGet, "/v1/notifications", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Heads up")

	rec = gw.do(t, stdhttp.MethodDelete, "/v1/notifications/"+id.String(), nil, nil)
	require.Equal(t, stdhttp.StatusNoContent, rec.Code)

	rec = gw.do(t, stdhttp.MethodGet, "/v1/notifications", nil, nil)
	require.NotContains(t, rec.Body.String(), "Heads up")

	rec = gw.do(t, stdhttp.MethodDelete, "/v1/notifications/not-a-ulid", nil, nil)
	require.Equal(t, stdhttp.StatusBadRequest, rec.Code)
}

func TestLivez(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})

	rec := gw.do(t, stdhttp.MethodGet, "/livez", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	gw := newTestGateway(t, &fakeBackend{})

	rec := gw.do(t, stdhttp.MethodGet, "/readyz", nil, nil)
	require.Equal(t, stdhttp.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"database":"ok"`)
}
