package stream

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// clientMessage is an inbound frame from a dashboard client.
type clientMessage struct {
	Type   string          `json:"type"`
	Filter json.RawMessage `json:"filter,omitempty"`
}

// Handler upgrades /api/v1/stream requests and services the client
// protocol: ping/pong keepalive and subscription acknowledgement.
type Handler struct {
	hub    *Hub
	logger *zap.Logger
}

func NewHandler(hub *Hub, logger *zap.Logger) *Handler {
	return &Handler{hub: hub, logger: logger}
}

// wsConn adapts a websocket connection to the hub's Connection.
type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Write(ctx context.Context, data []byte) error {
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Handler) ServeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Warn("failed to accept websocket", zap.Error(err))
		return
	}

	client := &wsConn{conn: conn}
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := r.Context()

	greeting, _ := json.Marshal(map[string]string{
		"type":    "connected",
		"message": "Connected to Observatory event stream",
	})
	if err := client.Write(ctx, greeting); err != nil {
		return
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			// Normal closure, client disconnect, or context cancel all
			// end the read loop; the deferred unregister runs promptly.
			return
		}
		h.handleMessage(ctx, client, data)
	}
}

// handleMessage answers the client protocol. Malformed frames are
// ignored without closing the connection.
func (h *Handler) handleMessage(ctx context.Context, client *wsConn, data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	switch msg.Type {
	case "ping":
		reply, _ := json.Marshal(map[string]string{"type": "pong"})
		_ = client.Write(ctx, reply)
	case "subscribe":
		// Subscriptions are acknowledged but not enforced: every client
		// receives the unfiltered firehose for now.
		reply, _ := json.Marshal(map[string]any{
			"type":   "subscribed",
			"filter": msg.Filter,
		})
		_ = client.Write(ctx, reply)
	}
}
