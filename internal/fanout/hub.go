// Package fanout delivers room notifications to the connections subscribed
// to each audience of a room.
package fanout

import (
	"captioncast/internal/errs"
	"captioncast/internal/events"
	"context"
	"fmt"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
)

type Audience string

const (
	Participants Audience = "participants"
	Viewers      Audience = "viewers"
	Admins       Audience = "admins"
)

// Everyone lists every audience of a room.
var Everyone = []Audience{Participants, Viewers, Admins}

func ParseAudience(s string) (Audience, error) {
	switch Audience(s) {
	case Participants, Viewers, Admins:
		return Audience(s), nil
	case "participant", "":
		return Participants, nil
	case "viewer", "display":
		return Viewers, nil
	case "admin":
		return Admins, nil
	}
	return "", fmt.Errorf("unknown audience %q", s)
}

// Client is one connection. Conn is nil for server-sent-event streams, which
// drain Send themselves.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte
}

func NewClient(id string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = 16
	}
	return &Client{ID: id, Conn: conn, Send: make(chan []byte, buffer)}
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
// It returns when the hub closes Send, the context ends or a write fails.
func (c *Client) WritePump(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-c.Send:
			if !ok {
				return nil
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return err
			}
		}
	}
}

type Option func(*Hub)

// WithDropHook is called once for every frame dropped on a full buffer.
func WithDropHook(fn func()) Option {
	return func(h *Hub) { h.onDrop = fn }
}

func WithLogger(log zerolog.Logger) Option {
	return func(h *Hub) { h.log = log }
}

// Hub tracks the audiences of a single room. Delivery never blocks: a client
// whose buffer is full misses the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	members map[Audience]map[string]struct{}
	closed  bool
	onDrop  func()
	log     zerolog.Logger
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		clients: make(map[string]*Client),
		members: make(map[Audience]map[string]struct{}, len(Everyone)),
		log:     zerolog.Nop(),
	}
	for _, a := range Everyone {
		h.members[a] = make(map[string]struct{})
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe adds the client to an audience. The same client may hold several
// audiences at once.
func (h *Hub) Subscribe(c *Client, a Audience) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return errs.ErrNotFound
	}
	set, ok := h.members[a]
	if !ok {
		return fmt.Errorf("unknown audience %q", a)
	}
	if prev, ok := h.clients[c.ID]; ok && prev != c {
		close(prev.Send)
	}
	h.clients[c.ID] = c
	set[c.ID] = struct{}{}
	return nil
}

// Unsubscribe removes the connection from one audience. Once it belongs to
// no audience its Send channel is closed.
func (h *Hub) Unsubscribe(id string, a Audience) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.members[a]; ok {
		delete(set, id)
	}
	for _, set := range h.members {
		if _, ok := set[id]; ok {
			return
		}
	}
	h.release(id)
}

// Drop removes the connection from every audience.
func (h *Hub) Drop(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.members {
		delete(set, id)
	}
	h.release(id)
}

func (h *Hub) release(id string) {
	if c, ok := h.clients[id]; ok {
		close(c.Send)
		delete(h.clients, id)
	}
}

// Publish delivers ev once to every distinct connection in the given
// audiences and returns how many connections accepted it.
func (h *Hub) Publish(ev events.Event, audiences ...Audience) int {
	return h.PublishExcept("", ev, audiences...)
}

// PublishExcept is Publish without the connection named by except.
func (h *Hub) PublishExcept(except string, ev events.Event, audiences ...Audience) int {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[string]struct{})
	delivered := 0
	for _, a := range audiences {
		for id := range h.members[a] {
			if id == except {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if h.offer(h.clients[id], data) {
				delivered++
			}
		}
	}
	return delivered
}

// SendTo delivers ev to a single connection regardless of audience.
func (h *Hub) SendTo(id string, ev events.Event) bool {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.offer(h.clients[id], data)
}

func (h *Hub) offer(c *Client, data []byte) bool {
	if c == nil {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		h.log.Debug().Str("conn", c.ID).Msg("client buffer full, dropping frame")
		if h.onDrop != nil {
			h.onDrop()
		}
		return false
	}
}

// Close closes every client's Send channel and refuses new subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.shutdown()
}

// CloseWith delivers a final frame to every connection and then closes the
// hub. The final frame is never dropped: a full buffer gives up its oldest
// queued frame to make room.
func (h *Hub) CloseWith(ev events.Event) int {
	data, err := ev.Encode()
	if err != nil {
		h.log.Error().Err(err).Str("event", string(ev.Type)).Msg("encode event")
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return 0
	}
	delivered := 0
	if err == nil {
		for _, c := range h.clients {
			if h.force(c, data) {
				delivered++
			}
		}
	}
	h.shutdown()
	return delivered
}

// force requires h.mu held for writing, so no other sender can refill the
// slot it frees.
func (h *Hub) force(c *Client, data []byte) bool {
	select {
	case c.Send <- data:
		return true
	default:
	}
	select {
	case <-c.Send:
		h.log.Debug().Str("conn", c.ID).Msg("client buffer full, evicting oldest frame")
		if h.onDrop != nil {
			h.onDrop()
		}
	default:
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (h *Hub) shutdown() {
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.Send)
		delete(h.clients, id)
	}
	for _, set := range h.members {
		clear(set)
	}
}

// Count is the number of connections in an audience.
func (h *Hub) Count(a Audience) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[a])
}

// Connections is the number of distinct connections across audiences.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) Has(id string, a Audience) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.members[a][id]
	return ok
}
