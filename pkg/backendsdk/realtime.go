package backendsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// realtimeMessage is the backend's websocket frame envelope.
type realtimeMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Ref     string          `json:"ref,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

const (
	wsEventJoin    = "phx_join"
	wsEventLeave   = "phx_leave"
	wsEventChanges = "postgres_changes"
)

// Realtime maintains one websocket connection to the backend change feed
// and fans incoming change payloads out to subscribed channels. The
// connection is dialed lazily on the first Subscribe and redialed with
// backoff if it drops; channels are re-joined after a reconnect.
type Realtime struct {
	client *Client

	mu       sync.Mutex
	conn     *websocket.Conn
	channels map[string]*Channel
	closed   bool
	nextRef  int
}

// Realtime returns the process-wide change feed handle for this client.
func (c *Client) Realtime() *Realtime {
	return &Realtime{
		client:   c,
		channels: make(map[string]*Channel),
	}
}

// Channel returns the named channel, creating it if needed. Configure it
// with On, then activate it with Subscribe.
func (r *Realtime) Channel(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ch, ok := r.channels[name]; ok {
		return ch
	}
	ch := &Channel{realtime: r, name: name}
	r.channels[name] = ch
	return ch
}

// Close tears down the connection and all channels.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.conn != nil {
		err := r.conn.Close()
		r.conn = nil
		return err
	}
	return nil
}

// wsURL derives the websocket endpoint from the backend base URL.
func (r *Realtime) wsURL() string {
	base := r.client.BaseURL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/realtime/v1/websocket?apikey=" + r.client.APIKey
}

// ensureConn dials the feed if no connection is live and starts the read
// loop. Callers hold r.mu.
func (r *Realtime) ensureConn(ctx context.Context) error {
	if r.conn != nil {
		return nil
	}
	if r.closed {
		return fmt.Errorf("realtime: client is closed")
	}

	dialer := websocket.Dialer{HandshakeTimeout: DefaultTimeout}
	conn, _, err := dialer.DialContext(ctx, r.wsURL(), nil)
	if err != nil {
		return fmt.Errorf("realtime: dial failed: %w", err)
	}
	r.conn = conn

	go r.readLoop(conn)
	return nil
}

// readLoop dispatches inbound frames until the connection dies, then
// schedules a reconnect.
func (r *Realtime) readLoop(conn *websocket.Conn) {
	for {
		var msg realtimeMessage
		if err := conn.ReadJSON(&msg); err != nil {
			r.handleDisconnect(conn)
			return
		}
		if msg.Event != wsEventChanges {
			continue
		}

		var payload ChangePayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			continue
		}

		r.mu.Lock()
		ch := r.channels[strings.TrimPrefix(msg.Topic, "realtime:")]
		r.mu.Unlock()
		if ch != nil {
			ch.dispatch(payload)
		}
	}
}

// handleDisconnect drops the dead connection and redials with backoff,
// re-joining every subscribed channel. Change delivery is at-least-once
// overall; anything missed while disconnected is covered by the coarse
// invalidation the consumers perform on reconnect-time payloads.
func (r *Realtime) handleDisconnect(dead *websocket.Conn) {
	r.mu.Lock()
	if r.conn == dead {
		r.conn = nil
	}
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return
	}

	backoff := time.Second
	for {
		time.Sleep(backoff)

		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return
		}
		err := r.ensureConn(context.Background())
		if err == nil {
			for _, ch := range r.channels {
				if ch.subscribed {
					_ = r.sendJoin(ch)
				}
			}
			r.mu.Unlock()
			return
		}
		r.mu.Unlock()

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// sendJoin announces a channel subscription. Callers hold r.mu.
func (r *Realtime) sendJoin(ch *Channel) error {
	r.nextRef++
	join := map[string]any{
		"topic": "realtime:" + ch.name,
		"event": wsEventJoin,
		"ref":   fmt.Sprintf("%d", r.nextRef),
		"payload": map[string]any{
			"config": map[string]any{
				wsEventChanges: ch.specs,
			},
		},
	}
	return r.conn.WriteJSON(join)
}

// Channel is a named subscription scope on the change feed.
type Channel struct {
	realtime *Realtime
	name     string

	mu         sync.Mutex
	specs      []ChangeSpec
	handlers   []changeHandler
	subscribed bool
}

type changeHandler struct {
	spec ChangeSpec
	fn   func(ChangePayload)
}

// On registers a handler for changes matching spec. Returns the channel for
// chaining; call Subscribe to activate.
func (ch *Channel) On(spec ChangeSpec, handler func(ChangePayload)) *Channel {
	ch.mu.Lock()
	defer ch.mu.Unlock()

	ch.specs = append(ch.specs, spec)
	ch.handlers = append(ch.handlers, changeHandler{spec: spec, fn: handler})
	return ch
}

// Subscribe joins the channel on the feed and returns a handle whose
// Unsubscribe detaches it. Unsubscribe must be called when the consumer
// goes away, including on error paths.
func (ch *Channel) Subscribe(ctx context.Context) (*Subscription, error) {
	r := ch.realtime

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ensureConn(ctx); err != nil {
		return nil, err
	}

	if err := r.sendJoin(ch); err != nil {
		return nil, fmt.Errorf("realtime: join failed: %w", err)
	}

	ch.mu.Lock()
	ch.subscribed = true
	ch.mu.Unlock()

	return &Subscription{channel: ch}, nil
}

// dispatch runs every handler whose spec matches the payload.
func (ch *Channel) dispatch(payload ChangePayload) {
	ch.mu.Lock()
	handlers := make([]changeHandler, len(ch.handlers))
	copy(handlers, ch.handlers)
	subscribed := ch.subscribed
	ch.mu.Unlock()

	if !subscribed {
		return
	}
	for _, h := range handlers {
		if h.spec.Table != "" && h.spec.Table != payload.Table {
			continue
		}
		if h.spec.Event != "*" && h.spec.Event != string(payload.EventType) {
			continue
		}
		h.fn(payload)
	}
}

// Subscription is an active channel membership.
type Subscription struct {
	channel *Channel
	once    sync.Once
}

// Unsubscribe leaves the channel and stops handler delivery. Idempotent.
func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		ch := s.channel
		r := ch.realtime

		ch.mu.Lock()
		ch.subscribed = false
		ch.handlers = nil
		ch.mu.Unlock()

		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.channels, ch.name)
		if r.conn != nil {
			r.nextRef++
			_ = r.conn.WriteJSON(realtimeMessage{
				Topic: "realtime:" + ch.name,
				Event: wsEventLeave,
				Ref:   fmt.Sprintf("%d", r.nextRef),
			})
		}
	})
}
