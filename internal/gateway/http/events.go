package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/httpx"
)

// Staleness windows per operation. Listings tolerate more lag than a detail
// page; live seat maps barely any.
const (
	eventsListTTL   = 5 * time.Minute
	eventDetailTTL  = 2 * time.Minute
	eventSeatsTTL   = 30 * time.Second
	ordersListTTL   = time.Minute
	dashboardTTL    = time.Minute
	eventSelect     = "*, venues (id, name, address, city, capacity, amenities)"
	eventFullSelect = "*, venues (id, name, address, city, capacity, amenities, latitude, longitude), sections (id, name, type, price, capacity, description, color, position_data)"
)

type EventsHandler struct {
	Client *backendsdk.Client
	Cache  *service.QueryCache
}

func (h *EventsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	params := map[string]string{}
	if category := r.URL.Query().Get("category"); category != "" {
		params["category"] = category
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		if _, err := strconv.Atoi(limit); err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "limit must be an integer")
			return
		}
		params["limit"] = limit
	}

	key := service.CacheKey{Op: service.OpEvents, Params: params}
	payload, err := h.Cache.Fetch(r.Context(), key, eventsListTTL, func(ctx context.Context) (any, error) {
		query := h.Client.From("events").
			Select(eventSelect).
			Eq("status", "active").
			Order("date", true)
		if category, ok := params["category"]; ok {
			query = query.Eq("category", category)
		}
		if limit, ok := params["limit"]; ok {
			n, _ := strconv.Atoi(limit)
			query = query.Limit(n)
		}

		var events []json.RawMessage
		if err := query.Do(ctx, &events); err != nil {
			return nil, err
		}
		return events, nil
	})
	if err != nil {
		logFor(r).Warn("events list fetch failed", "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to load events")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *EventsHandler) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	key := service.CacheKey{Op: service.OpEvent, Params: map[string]string{"id": id}}
	payload, err := h.Cache.Fetch(r.Context(), key, eventDetailTTL, func(ctx context.Context) (any, error) {
		var event json.RawMessage
		err := h.Client.From("events").
			Select(eventFullSelect).
			Eq("id", id).
			Single().
			Do(ctx, &event)
		if err != nil {
			return nil, err
		}
		return event, nil
	})
	if err != nil {
		if backendsdk.IsNotFound(err) {
			httpx.WriteError(w, http.StatusNotFound, "not_found", "event not found")
			return
		}
		logFor(r).Warn("event fetch failed", "event_id", id, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to load event")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}

func (h *EventsHandler) HandleSeats(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	key := service.CacheKey{Op: service.OpSeats, Params: map[string]string{"event_id": id}}
	payload, err := h.Cache.Fetch(r.Context(), key, eventSeatsTTL, func(ctx context.Context) (any, error) {
		var seats []json.RawMessage
		err := h.Client.From("seats").
			Select("*, sections (id, name, type, price)").
			Eq("event_id", id).
			Order("row_name", true).
			Do(ctx, &seats)
		if err != nil {
			return nil, err
		}
		return seats, nil
	})
	if err != nil {
		logFor(r).Warn("seats fetch failed", "event_id", id, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "backend_error", "failed to load seats")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, payload)
}
