package ws

import (
	"sync"

	"rentkar/pkg/logger"

	"github.com/gorilla/websocket"
)

// client pairs a connection with a write mutex. Gorilla connections
// support at most one concurrent writer, so every outbound frame goes
// through write regardless of which goroutine broadcasts.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub stores all active WebSocket viewer connections keyed by a per-viewer
// id and broadcasts event payloads to every one of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	log     *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		log:     log,
	}
}

// Add registers a new viewer connection under a unique id.
func (h *Hub) Add(id string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.clients[id]; ok {
		_ = old.conn.Close()
	}
	h.clients[id] = &client{conn: conn}
	h.log.Info("Tracking viewer connected", "viewer_id", id)
}

// Remove deletes and closes a viewer connection.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[id]; ok {
		_ = c.conn.Close()
		delete(h.clients, id)
		h.log.Info("Tracking viewer disconnected", "viewer_id", id)
	}
}

// Broadcast sends a raw payload to every connected viewer. Safe to call
// from multiple goroutines. Connections that fail to write are dropped.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	conns := make(map[string]*client, len(h.clients))
	for id, c := range h.clients {
		conns[id] = c
	}
	h.mu.RUnlock()

	for id, c := range conns {
		if err := c.write(payload); err != nil {
			h.log.Warn("Dropping tracking viewer after failed write", "viewer_id", id, "error", err)
			h.Remove(id)
		}
	}
}

// Count returns the number of connected viewers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
