package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/entradalabs/entrada/pkg/backendsdk"
)

// Cache operation names shared by the HTTP handlers and the invalidation
// bridge. List operations carry a plural name and item operations a
// singular one so "events|" never matches "event|..." keys.
const (
	OpEvents = "events"
	OpEvent  = "event"
	OpOrders = "orders"
	OpSeats  = "seats"
)

// ChangeBridge subscribes to backend change feeds and translates row
// changes into cache invalidations. Listing caches are dropped wholesale;
// item caches are dropped per row when the payload names one.
type ChangeBridge struct {
	realtime *backendsdk.Realtime
	cache    *QueryCache
	logger   *slog.Logger

	subs []*backendsdk.Subscription
}

func NewChangeBridge(realtime *backendsdk.Realtime, cache *QueryCache, logger *slog.Logger) *ChangeBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChangeBridge{realtime: realtime, cache: cache, logger: logger}
}

// Start joins the change channels. The feed connection outlives any single
// request, so ctx only bounds the join handshakes.
func (b *ChangeBridge) Start(ctx context.Context) error {
	events := b.realtime.Channel("events-changes").
		On(backendsdk.ChangeSpec{Event: "*", Table: "events"}, b.onEventChange)
	sub, err := events.Subscribe(ctx)
	if err != nil {
		return err
	}
	b.subs = append(b.subs, sub)

	seats := b.realtime.Channel("seats-changes").
		On(backendsdk.ChangeSpec{Event: "*", Table: "seats"}, b.onSeatChange)
	sub, err = seats.Subscribe(ctx)
	if err != nil {
		b.Stop()
		return err
	}
	b.subs = append(b.subs, sub)

	return nil
}

// Stop leaves every joined channel.
func (b *ChangeBridge) Stop() {
	for _, sub := range b.subs {
		sub.Unsubscribe()
	}
	b.subs = nil
}

func (b *ChangeBridge) onEventChange(payload backendsdk.ChangePayload) {
	b.logger.Debug("event change received", "type", payload.EventType)
	b.cache.InvalidateOp(OpEvents)
	if id := rowID(payload); id != "" {
		b.cache.Invalidate(CacheKey{Op: OpEvent, Params: map[string]string{"id": id}}.String())
	}
}

func (b *ChangeBridge) onSeatChange(payload backendsdk.ChangePayload) {
	b.logger.Debug("seat change received", "type", payload.EventType)
	if id := rowEventID(payload); id != "" {
		b.cache.Invalidate(CacheKey{Op: OpSeats, Params: map[string]string{"event_id": id}}.String())
		return
	}
	b.cache.InvalidateOp(OpSeats)
}

func rowID(payload backendsdk.ChangePayload) string {
	return rowField(payload, "id")
}

func rowEventID(payload backendsdk.ChangePayload) string {
	return rowField(payload, "event_id")
}

func rowField(payload backendsdk.ChangePayload, field string) string {
	row := payload.New
	if payload.EventType == backendsdk.ChangeDelete {
		row = payload.Old
	}
	if len(row) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(row, &m); err != nil {
		return ""
	}
	if v, ok := m[field].(string); ok {
		return v
	}
	return ""
}
