package watcher

import (
	"math"
	"testing"
)

func TestTranslateLineAssistantTurn(t *testing.T) {
	line := `{
		"type": "message",
		"id": "turn-9",
		"parentId": "msg-8",
		"timestamp": "2026-03-01T12:00:00Z",
		"message": {
			"role": "assistant",
			"provider": "anthropic",
			"model": "claude-sonnet-4",
			"stopReason": "end_turn",
			"usage": {
				"input": 1200,
				"output": 300,
				"totalTokens": 1500,
				"cacheRead": 800,
				"cost": {"input": 0.01, "output": 0.02, "cacheRead": 0.001, "total": 0.031}
			}
		}
	}`

	ev := translateLine([]byte(line), "agent:main:1", "gw1")
	if ev == nil {
		t.Fatal("expected an event")
	}
	if ev.EventType != "turn.completed" {
		t.Errorf("eventType = %q, want turn.completed", ev.EventType)
	}
	if ev.GatewayID != "gw1" || ev.SessionKey != "agent:main:1" {
		t.Errorf("gateway/session = %q/%q", ev.GatewayID, ev.SessionKey)
	}
	if ev.AgentID != "main" {
		t.Errorf("agentId = %q, want main", ev.AgentID)
	}
	if ev.TurnID != "turn-9" || ev.MessageID != "msg-8" {
		t.Errorf("turnId/messageId = %q/%q", ev.TurnID, ev.MessageID)
	}
	if ev.Tokens == nil || *ev.Tokens.Input != 1200 || *ev.Tokens.Output != 300 || *ev.Tokens.Total != 1500 {
		t.Errorf("tokens = %+v", ev.Tokens)
	}
	if ev.Model == nil || ev.Model.Provider != "anthropic" || ev.Model.ModelID != "claude-sonnet-4" {
		t.Errorf("model = %+v", ev.Model)
	}
	// Cache costs fold into the input side.
	if ev.Cost == nil {
		t.Fatal("expected a cost block")
	}
	if math.Abs(*ev.Cost.InputCost-0.011) > 1e-9 || *ev.Cost.OutputCost != 0.02 || *ev.Cost.TotalCost != 0.031 {
		t.Errorf("cost = %+v", ev.Cost)
	}
	if ev.Payload["stopReason"] != "end_turn" {
		t.Errorf("payload = %v", ev.Payload)
	}
	if ev.Payload["cacheRead"] != int64(800) {
		t.Errorf("payload cacheRead = %v", ev.Payload["cacheRead"])
	}
}

func TestTranslateLineTotalFallsBackToSum(t *testing.T) {
	line := `{"type":"message","id":"t1","message":{"role":"assistant","usage":{"input":100,"output":50}}}`

	ev := translateLine([]byte(line), "agent:main:1", "gw1")
	if ev == nil {
		t.Fatal("expected an event")
	}
	if *ev.Tokens.Total != 150 {
		t.Errorf("total = %d, want 150", *ev.Tokens.Total)
	}
	if ev.Model.Provider != "unknown" || ev.Model.ModelID != "unknown" {
		t.Errorf("model = %+v, want unknown/unknown", ev.Model)
	}
	if ev.Cost != nil {
		t.Error("no cost block expected without usage cost")
	}
}

func TestTranslateLineSkipsNonTurns(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"user message", `{"type":"message","message":{"role":"user"}}`},
		{"assistant without usage", `{"type":"message","message":{"role":"assistant"}}`},
		{"non message entry", `{"type":"summary"}`},
		{"malformed json", `{"type":"message",`},
		{"empty object", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if ev := translateLine([]byte(tt.line), "agent:main:1", "gw1"); ev != nil {
				t.Errorf("expected nil, got %+v", ev)
			}
		})
	}
}

func TestAgentIDFromKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"agent:main:discord-123", "main"},
		{"agent:worker", "worker"},
		{"unknown:550e8400", "550e8400"},
		{"bare", "unknown"},
		{"", "unknown"},
		{"agent::x", "unknown"},
	}

	for _, tt := range tests {
		if got := agentIDFromKey(tt.key); got != tt.want {
			t.Errorf("agentIDFromKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}
