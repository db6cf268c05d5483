// Package stream fans ingested events and fired alerts out to
// connected dashboard clients over WebSocket.
package stream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
)

const writeTimeout = 5 * time.Second

// Connection is a live client transport. The WebSocket handler wraps
// real connections; tests substitute fakes.
type Connection interface {
	Write(ctx context.Context, data []byte) error
	Close() error
}

// Hub is the registry of open client connections. Membership changes
// and broadcast iteration are serialized by the mutex; a connection is
// never written to after it has been unregistered and closed.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[Connection]struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[Connection]struct{}),
	}
}

// Register adds a connection to the broadcast set. Idempotent.
func (h *Hub) Register(c Connection) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	h.logger.Info("stream client connected", zap.Int("total", total))
}

// Unregister removes a connection from the broadcast set. Idempotent.
func (h *Hub) Unregister(c Connection) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Info("stream client disconnected", zap.Int("total", total))
	}
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// BroadcastEvent pushes an ingested event to every open connection.
func (h *Hub) BroadcastEvent(ev domain.Event) {
	h.broadcast("event", ev)
}

// BroadcastAlert pushes a fired alert to every open connection.
func (h *Hub) BroadcastAlert(alert domain.Alert) {
	h.broadcast("alert", alert)
}

// broadcast serializes the message once and writes it to each client.
// A failed write drops that client only; the rest are unaffected.
func (h *Hub) broadcast(msgType string, data any) {
	payload, err := json.Marshal(map[string]any{
		"type": msgType,
		"data": data,
	})
	if err != nil {
		h.logger.Error("failed to marshal broadcast message",
			zap.String("type", msgType), zap.Error(err))
		return
	}

	h.mu.Lock()
	targets := make([]Connection, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	for _, c := range targets {
		if err := c.Write(ctx, payload); err != nil {
			h.logger.Warn("dropping stream client after failed write", zap.Error(err))
			h.Unregister(c)
			_ = c.Close()
		}
	}
}
