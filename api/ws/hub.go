// Package ws carries the WebSocket surface: the connection registry and
// the client message protocol.
package ws

import (
	"sync"

	"github.com/RobertSloan22/AiAutoshopSystem-Backend/core/monitoring"
)

// Hub is the connection registry, client id to live connection. A
// reconnect under the same client id replaces the connection in place, so
// events enqueued afterwards flow to the new transport while the client's
// jobs keep running untouched.
type Hub struct {
	mu      sync.Mutex
	conns   map[string]*Conn
	metrics *monitoring.Collector
}

// NewHub creates an empty connection registry.
func NewHub() *Hub {
	return &Hub{conns: make(map[string]*Conn)}
}

// SetMetrics attaches the metrics collector.
func (h *Hub) SetMetrics(m *monitoring.Collector) {
	h.metrics = m
}

// register installs conn as the client's current connection and returns
// the connection it replaced, if any.
func (h *Hub) register(clientID string, conn *Conn) *Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	prev := h.conns[clientID]
	h.conns[clientID] = conn
	if prev == nil {
		h.metrics.ConnectionOpened()
	}
	return prev
}

// unregister removes conn only while it is still current; a reconnect that
// already replaced it is left alone.
func (h *Hub) unregister(clientID string, conn *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[clientID] == conn {
		delete(h.conns, clientID)
		h.metrics.ConnectionClosed()
	}
}

// Send delivers one event to the client's current connection, best effort.
// It satisfies the runner's notifier contract: a missing or dead connection
// reports false and the job carries on.
func (h *Hub) Send(clientID string, event map[string]interface{}) bool {
	h.mu.Lock()
	conn := h.conns[clientID]
	h.mu.Unlock()
	if conn == nil {
		return false
	}
	return conn.Send(event)
}

// IsConnected reports whether the client currently has a live connection.
func (h *Hub) IsConnected(clientID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns[clientID] != nil
}

// Count reports how many connections are registered.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// CloseAll tears down every registered connection. Used at shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*Conn, 0, len(h.conns))
	for _, conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[string]*Conn)
	h.mu.Unlock()

	for _, conn := range conns {
		conn.close()
		h.metrics.ConnectionClosed()
	}
}
