// Package realtime is the live event broadcaster: per-user and per-chat
// rooms over WebSocket, optionally fanned out across instances through a
// Redis pub/sub backplane.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"campusmart/internal/event"
)

// broadcastRoom addresses every connection on every instance.
const broadcastRoom = "*"

// Frame is one encoded event addressed to a room.
type Frame struct {
	Room    string `json:"room"`
	Except  string `json:"except,omitempty"`
	Payload []byte `json:"payload"`
}

// Backplane carries frames between instances.
type Backplane interface {
	Publish(ctx context.Context, f Frame) error
	// Subscribe blocks, calling fn for every frame, until ctx is done or
	// the subscription breaks. ready is called once frames will be seen.
	Subscribe(ctx context.Context, ready func(), fn func(Frame)) error
}

// Hub routes events to local connections. It satisfies service.Publisher.
type Hub struct {
	reg       Registry
	backplane Backplane
	log       *slog.Logger

	// live is set while the backplane subscription is confirmed; until
	// then emits are delivered locally.
	live     atomic.Bool
	retryMin time.Duration
	retryMax time.Duration

	mu      sync.RWMutex
	clients map[string]*Client
}

type HubOption func(*Hub)

// WithBackplane routes every emit through b so all instances deliver it.
func WithBackplane(b Backplane) HubOption {
	return func(h *Hub) { h.backplane = b }
}

func NewHub(reg Registry, log *slog.Logger, opts ...HubOption) *Hub {
	if reg == nil {
		reg = NewMemoryRegistry()
	}
	h := &Hub{
		reg:      reg,
		log:      log,
		clients:  make(map[string]*Client),
		retryMin: 200 * time.Millisecond,
		retryMax: 5 * time.Second,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *Hub) Registry() Registry { return h.reg }

// Run consumes the backplane until ctx is done, resubscribing with backoff
// whenever the subscription fails. Without a backplane it returns
// immediately.
func (h *Hub) Run(ctx context.Context) {
	if h.backplane == nil {
		return
	}
	wait := h.retryMin
	for {
		err := h.backplane.Subscribe(ctx, h.markLive, h.deliverFrame)
		wasLive := h.live.Swap(false)
		if ctx.Err() != nil {
			return
		}
		if wasLive {
			wait = h.retryMin
		}
		h.log.Warn("backplane subscription lost, delivering locally until it is back",
			slog.Duration("retry_in", wait), slog.Any("err", err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		wait *= 2
		if wait > h.retryMax {
			wait = h.retryMax
		}
	}
}

func (h *Hub) markLive() {
	if !h.live.Swap(true) {
		h.log.Info("backplane subscribed")
	}
}

// Live reports whether emits currently go through the backplane.
func (h *Hub) Live() bool { return h.live.Load() }

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.reg.Add(c.id, c.userID)
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	h.reg.Remove(c.id)
}

// Emit sends an event to every connection in room.
func (h *Hub) Emit(room string, name event.Name, data any) {
	h.emit(room, "", name, data)
}

// EmitExcept is Emit without the connection exceptConn.
func (h *Hub) EmitExcept(room, exceptConn string, name event.Name, data any) {
	h.emit(room, exceptConn, name, data)
}

// Broadcast sends an event to every connection.
func (h *Hub) Broadcast(name event.Name, data any) {
	h.emit(broadcastRoom, "", name, data)
}

func (h *Hub) emit(room, except string, name event.Name, data any) {
	payload, err := event.Encode(name, data)
	if err != nil {
		h.log.Error("encode event", slog.String("event", string(name)), slog.Any("err", err))
		return
	}
	f := Frame{Room: room, Except: except, Payload: payload}
	if h.backplane != nil && h.live.Load() {
		err := h.backplane.Publish(context.Background(), f)
		if err == nil {
			return
		}
		h.log.Warn("backplane publish failed, delivering locally",
			slog.String("event", string(name)), slog.Any("err", err))
	}
	h.deliverFrame(f)
}

func (h *Hub) deliverFrame(f Frame) {
	var targets []string
	if f.Room == broadcastRoom {
		targets = h.reg.All()
	} else {
		targets = h.reg.Members(f.Room)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, id := range targets {
		if id == f.Except {
			continue
		}
		if c, ok := h.clients[id]; ok {
			c.enqueue(f.Payload)
		}
	}
}

// sendTo writes directly to one local connection.
func (h *Hub) sendTo(connID string, name event.Name, data any) {
	payload, err := event.Encode(name, data)
	if err != nil {
		h.log.Error("encode event", slog.String("event", string(name)), slog.Any("err", err))
		return
	}
	h.mu.RLock()
	c, ok := h.clients[connID]
	h.mu.RUnlock()
	if ok {
		c.enqueue(payload)
	}
}
