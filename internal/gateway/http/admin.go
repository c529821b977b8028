package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/httpx"
)

type AdminHandler struct {
	Client *backendsdk.Client
	Cache  *service.QueryCache
}

type dashboardResponse struct {
	ActiveEvents  int               `json:"active_events"`
	RecentOrders  []json.RawMessage `json:"recent_orders"`
	PendingEvents []json.RawMessage `json:"pending_events"`
}

// HandleDashboard aggregates the back-office overview. The route is behind
// the admin guard; the queries still run with the caller's session so the
// backend applies its own row-level checks.
func (h *AdminHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	manager := sessionFromContext(r.Context())
	session := manager.Session()

	key := service.CacheKey{Op: "dashboard", Params: nil}
	payload, err := h.Cache.Fetch(r.Context(), key, dashboardTTL, func(ctx context.Context) (any, error) {
		var active []json.RawMessage
		err := h.Client.From("events").Authed(session).
			Select("id").
			Eq("status", "active").
			Do(ctx, &active)
		if err != nil {
			return nil, err
		}

		var orders []json.RawMessage
		err = h.Client.From("orders").Authed(session).
			Select("id, order_number, total, status, created_at").
			Order("created_at", false).
			Limit(10).
			Do(ctx, &orders)
		if err != nil {
			return nil, err
		}

		var pending []json.RawMessage
		err = h.Client.From("events").Authed(session).
			Select("id, title, date, status").
			Eq("status", "draft").
			Order("date", true).
			Do(ctx, &pending)
		if err != nil {
			return nil, err
		}

		return dashboardResponse{
			ActiveEvents:  len(active),
			RecentOrders:  orders,
			PendingEvents: pending,
		}, nil
	})
	if err != nil {
		logFor(r).Warn("dashboard fetch failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to load dashboard")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, payload)
}
