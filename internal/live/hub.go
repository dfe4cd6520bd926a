// Package live is the real-time delivery channel: a registry of open
// connections keyed by user id and the JSON frame protocol spoken over them.
//
// Delivery is at-most-once and best-effort. A user missing from the registry
// is only unreachable synchronously; persisted messages and notifications
// remain the source of truth.
package live

import (
	"context"
	"sync"

	"servicemarket/marketplace-service/internal/metrics"
)

// Frame types.
const (
	TypeAuth         = "auth"
	TypeMessage      = "message"
	TypeMarkRead     = "mark_read"
	TypeMessageSent  = "message_sent"
	TypeUnreadCount  = "unread_count"
	TypeNotification = "notification"
	TypeError        = "error"
)

// sendBuffer is the per-connection queue length. A full queue drops frames.
const sendBuffer = 64

// Frame is one JSON message on the wire.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// CountPayload is the payload of unread_count frames.
type CountPayload struct {
	Count int `json:"count"`
}

// Pusher delivers frames to a user's open connections.
type Pusher interface {
	Push(ctx context.Context, userID string, f Frame)
}

// ─── Client ──────────────────────────────────────────────────────────────────

// Client is one open connection's outbound queue.
type Client struct {
	userID string
	send   chan Frame
}

// NewClient returns an unregistered client.
func NewClient() *Client {
	return &Client{send: make(chan Frame, sendBuffer)}
}

// Frames is the outbound queue drained by the connection's write loop.
func (c *Client) Frames() <-chan Frame { return c.send }

// enqueue queues f without blocking and reports whether it fit.
func (c *Client) enqueue(f Frame) bool {
	select {
	case c.send <- f:
		return true
	default:
		return false
	}
}

// ─── Hub ─────────────────────────────────────────────────────────────────────

// Hub is the per-process connection registry. A user may hold several
// connections; closing one leaves the others registered.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	metrics *metrics.Collector
}

// NewHub returns an empty registry.
func NewHub(m *metrics.Collector) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		metrics: m,
	}
}

// Register files c under userID, moving it if it was registered under
// another user.
func (h *Hub) Register(userID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	c.userID = userID
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][c] = struct{}{}
	h.metrics.SetLiveConnections(h.countLocked())
}

// Unregister removes c. Other connections of the same user stay registered.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(c)
	h.metrics.SetLiveConnections(h.countLocked())
}

func (h *Hub) removeLocked(c *Client) {
	if c.userID == "" {
		return
	}
	if set, ok := h.clients[c.userID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.userID)
		}
	}
	c.userID = ""
}

func (h *Hub) countLocked() int {
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// Push queues f on every connection of userID.
func (h *Hub) Push(_ context.Context, userID string, f Frame) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	set := h.clients[userID]
	if len(set) == 0 {
		h.metrics.LivePush("offline")
		return
	}
	for c := range set {
		if c.enqueue(f) {
			h.metrics.LivePush("delivered")
		} else {
			h.metrics.LivePush("dropped")
		}
	}
}

// Online reports whether userID has at least one registered connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// Connections returns the number of registered connections.
func (h *Hub) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.countLocked()
}
