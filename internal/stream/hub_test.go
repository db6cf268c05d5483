package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
)

type fakeConn struct {
	mu       sync.Mutex
	writes   [][]byte
	writeErr error
	closed   bool
}

func (f *fakeConn) Write(ctx context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.writes = append(f.writes, data)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) writeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.writes)
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub(zap.NewNop())

	a := &fakeConn{}
	b := &fakeConn{}
	hub.Register(a)
	hub.Register(b)

	hub.BroadcastEvent(domain.Event{
		EventType:  "turn.completed",
		GatewayID:  "gw1",
		SessionKey: "agent:main:1",
	})

	for _, c := range []*fakeConn{a, b} {
		if c.writeCount() != 1 {
			t.Fatalf("client got %d writes, want 1", c.writeCount())
		}
	}

	var msg struct {
		Type string       `json:"type"`
		Data domain.Event `json:"data"`
	}
	if err := json.Unmarshal(a.writes[0], &msg); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if msg.Type != "event" {
		t.Errorf("type = %q, want event", msg.Type)
	}
	if msg.Data.SessionKey != "agent:main:1" {
		t.Errorf("sessionKey = %q", msg.Data.SessionKey)
	}
}

func TestHubBroadcastAlertEnvelope(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &fakeConn{}
	hub.Register(c)

	hub.BroadcastAlert(domain.Alert{ID: "alert-1", Message: "boom"})

	var msg struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(c.writes[0], &msg); err != nil {
		t.Fatalf("decoding broadcast: %v", err)
	}
	if msg.Type != "alert" {
		t.Errorf("type = %q, want alert", msg.Type)
	}
}

func TestHubDropsFailingClient(t *testing.T) {
	hub := NewHub(zap.NewNop())

	healthy := &fakeConn{}
	broken := &fakeConn{writeErr: errors.New("connection reset")}
	hub.Register(healthy)
	hub.Register(broken)

	hub.BroadcastEvent(domain.Event{EventType: "turn.completed"})

	if healthy.writeCount() != 1 {
		t.Errorf("healthy client got %d writes, want 1", healthy.writeCount())
	}
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}
	if !broken.closed {
		t.Error("failing client must be closed")
	}

	// Later broadcasts no longer touch the dropped client.
	hub.BroadcastEvent(domain.Event{EventType: "turn.completed"})
	if healthy.writeCount() != 2 {
		t.Errorf("healthy client got %d writes, want 2", healthy.writeCount())
	}
}

func TestHubRegisterUnregisterIdempotent(t *testing.T) {
	hub := NewHub(zap.NewNop())
	c := &fakeConn{}

	hub.Register(c)
	hub.Register(c)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() after double register = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(c)
	hub.Unregister(c)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() after double unregister = %d, want 0", hub.ClientCount())
	}
}
