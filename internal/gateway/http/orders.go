package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/httpx"
)

const ordersSelect = "*, events (id, title, date, time, venue_name, venue_address, image_url), tickets (id, ticket_number, status, qr_code, price)"

type OrdersHandler struct {
	Client *backendsdk.Client
	Cache  *service.QueryCache
	Notify *service.NotificationStore
}

func (h *OrdersHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	manager := sessionFromContext(r.Context())
	snap := manager.Snapshot()
	session := manager.Session()

	key := service.CacheKey{Op: service.OpOrders, Params: map[string]string{"user_id": snap.Identity.ID}}
	payload, err := h.Cache.Fetch(r.Context(), key, ordersListTTL, func(ctx context.Context) (any, error) {
		var orders []json.RawMessage
		err := h.Client.From("orders").Authed(session).
			Select(ordersSelect).
			Eq("user_id", snap.Identity.ID).
			Order("created_at", false).
			Do(ctx, &orders)
		if err != nil {
			return nil, err
		}
		return orders, nil
	})
	if err != nil {
		logFor(r).Warn("orders fetch failed", "user_id", snap.Identity.ID, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to load orders")
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *OrdersHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	manager := sessionFromContext(r.Context())
	snap := manager.Snapshot()
	session := manager.Session()

	var order map[string]any
	if err := json.NewDecoder(r.Body).Decode(&order); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	// The buyer is always the session owner, whatever the body says.
	order["user_id"] = snap.Identity.ID

	var created struct {
		ID          string `json:"id"`
		OrderNumber string `json:"order_number"`
	}
	err := h.Client.From("orders").Authed(session).
		Insert([]map[string]any{order}).
		Single().
		Do(r.Context(), &created)
	if err != nil {
		logFor(r).Warn("order create failed", "user_id", snap.Identity.ID, "err", err)
		if h.Notify != nil {
			h.Notify.Error("Order failed", "Your order could not be created. Please try again.", service.DefaultNotificationDuration)
		}
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to create order")
		return
	}

	// The next orders read must see the new order.
	h.Cache.Invalidate(service.CacheKey{Op: service.OpOrders, Params: map[string]string{"user_id": snap.Identity.ID}}.String())

	if h.Notify != nil {
		h.Notify.Success("Order created", fmt.Sprintf("Order %s created successfully", created.OrderNumber), service.DefaultNotificationDuration)
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, created)
}
