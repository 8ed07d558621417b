// Package feed streams dashboard status updates to WebSocket clients.
package feed

import (
	"log/slog"
	"strconv"
	"sync"

	"github.com/coder/websocket"
)

// Hub tracks open feed connections so they can be closed on shutdown.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	active map[string]*websocket.Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{active: make(map[string]*websocket.Conn)}
}

// Register adds a connection and returns its id.
func (h *Hub) Register(conn *websocket.Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := "feed-" + strconv.FormatUint(h.nextID, 10)
	h.active[id] = conn
	slog.Debug("Status feed registered", "conn_id", id, "active", len(h.active))
	return id
}

// Unregister removes a connection. Unknown ids are ignored.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.active[id]; ok {
		delete(h.active, id)
		slog.Debug("Status feed unregistered", "conn_id", id, "active", len(h.active))
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.active)
}

// CloseAll closes every open connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := h.active
	h.active = make(map[string]*websocket.Conn)
	h.mu.Unlock()

	for id, conn := range conns {
		if err := conn.Close(websocket.StatusGoingAway, "server shutting down"); err != nil {
			slog.Debug("Failed to close status feed", "conn_id", id, "error", err)
		}
	}
	if len(conns) > 0 {
		slog.Info("Closed status feeds", "count", len(conns))
	}
}
