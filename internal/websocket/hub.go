package websocket

import (
	"log/slog"
	"sync"

	"github.com/dino-runner/internal/domain"
	"github.com/dino-runner/internal/protocol"
)

// Hub is the set of connections that receive live broadcasts. Membership
// changes and broadcasts come from the game loop; the lock only guards reads
// from other goroutines such as the stats endpoint.
type Hub struct {
	clients map[domain.ConnID]Conn
	mu      sync.RWMutex
	logger  *slog.Logger
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[domain.ConnID]Conn),
		logger:  logger,
	}
}

// Add registers a connection for broadcasts.
func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	h.clients[c.ID()] = c
	h.mu.Unlock()
	h.logger.Debug("client registered", "conn_id", c.ID())
}

// Remove unregisters a connection and reports whether it was present.
func (h *Hub) Remove(id domain.ConnID) (Conn, bool) {
	h.mu.Lock()
	c, ok := h.clients[id]
	delete(h.clients, id)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("client unregistered", "conn_id", id)
	}
	return c, ok
}

// SendTo encodes and queues one message for c.
func (h *Hub) SendTo(c Conn, event string, payload any) bool {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("failed to marshal message", "event", event, "error", err)
		return false
	}
	if !c.Send(data) {
		h.logger.Warn("client buffer full, skipping", "conn_id", c.ID(), "event", event)
		return false
	}
	return true
}

// Broadcast sends a message to every registered connection.
func (h *Hub) Broadcast(event string, payload any) int {
	return h.broadcast("", event, payload)
}

// BroadcastExcept sends a message to every registered connection but except.
func (h *Hub) BroadcastExcept(except domain.ConnID, event string, payload any) int {
	return h.broadcast(except, event, payload)
}

func (h *Hub) broadcast(except domain.ConnID, event string, payload any) int {
	data, err := protocol.Encode(event, payload)
	if err != nil {
		h.logger.Error("failed to marshal message", "event", event, "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for id, client := range h.clients {
		if id == except {
			continue
		}
		if client.Send(data) {
			delivered++
			continue
		}
		h.logger.Warn("client buffer full, skipping", "conn_id", id, "event", event)
	}
	return delivered
}

// CloseAll unregisters and closes every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[domain.ConnID]Conn)
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
