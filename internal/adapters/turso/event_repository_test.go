package turso_test

import (
	"context"
	"testing"
	"time"

	"github.com/openclaw/observatory/internal/adapters/turso"
	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
)

func turnEvent(id, sessionKey string, ts time.Time) domain.Event {
	return domain.Event{
		ID:         id,
		Timestamp:  ts,
		EventType:  "turn.completed",
		GatewayID:  "gw1",
		SessionKey: sessionKey,
		AgentID:    "main",
		Tokens: &domain.Tokens{
			Input:       ptrI64(1200),
			Output:      ptrI64(300),
			Total:       ptrI64(1500),
			PercentUsed: ptrF64(0.42),
		},
		Timing: &domain.Timing{DurationMs: ptrI64(2500)},
		Cost:   &domain.Cost{TotalCost: ptrF64(0.05)},
		Payload: map[string]any{
			"stopReason": "end_turn",
		},
	}
}

func TestEventRepositoryInsertAndQuery(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	failed := domain.Event{
		ID:         "ev-2",
		Timestamp:  base.Add(time.Minute),
		EventType:  "turn.failed",
		GatewayID:  "gw1",
		SessionKey: "agent:main:1",
		Error: &domain.ErrorInfo{
			Type:      "timeout",
			Message:   "deadline exceeded",
			Retriable: ptrBool(true),
		},
	}

	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("ev-1", "agent:main:1", base),
		failed,
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	events, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}

	// Newest first.
	if events[0].ID != "ev-2" || events[1].ID != "ev-1" {
		t.Errorf("expected ev-2 then ev-1, got %s then %s", events[0].ID, events[1].ID)
	}

	turn := events[1]
	if turn.Tokens == nil || *turn.Tokens.Total != 1500 || *turn.Tokens.PercentUsed != 0.42 {
		t.Errorf("tokens not round-tripped: %+v", turn.Tokens)
	}
	if turn.Timing == nil || *turn.Timing.DurationMs != 2500 {
		t.Errorf("timing not round-tripped: %+v", turn.Timing)
	}
	if turn.Cost == nil || *turn.Cost.TotalCost != 0.05 {
		t.Errorf("cost not round-tripped: %+v", turn.Cost)
	}
	if turn.Payload["stopReason"] != "end_turn" {
		t.Errorf("payload not round-tripped: %v", turn.Payload)
	}
	if turn.Error != nil {
		t.Error("turn event must not grow an error block")
	}

	errEv := events[0]
	if errEv.Error == nil || errEv.Error.Type != "timeout" || errEv.Error.Message != "deadline exceeded" {
		t.Errorf("error not round-tripped: %+v", errEv.Error)
	}
	if errEv.Error.Retriable == nil || !*errEv.Error.Retriable {
		t.Error("retriable flag not round-tripped")
	}
	if errEv.Tokens != nil {
		t.Error("error event must not grow a tokens block")
	}
}

func TestEventRepositoryInsertBatchRollsBackOnFailure(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// The second event violates the primary key; the whole batch must
	// roll back, including the first event and its gateway bookkeeping.
	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("dup", "agent:main:1", base),
		turnEvent("dup", "agent:main:2", base.Add(time.Minute)),
	})
	if err == nil {
		t.Fatal("expected InsertBatch to fail on a duplicate event ID")
	}

	var eventCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&eventCount); err != nil {
		t.Fatalf("counting events: %v", err)
	}
	if eventCount != 0 {
		t.Errorf("events table has %d rows after failed batch, want 0", eventCount)
	}

	var gatewayCount int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM gateways`).Scan(&gatewayCount); err != nil {
		t.Fatalf("counting gateways: %v", err)
	}
	if gatewayCount != 0 {
		t.Errorf("gateways table has %d rows after failed batch, want 0", gatewayCount)
	}
}

func TestEventRepositoryQueryFilters(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("f-1", "agent:main:1", base),
		turnEvent("f-2", "agent:main:2", base.Add(time.Hour)),
		{
			ID: "f-3", Timestamp: base.Add(2 * time.Hour),
			EventType: "session.ended", GatewayID: "gw2", SessionKey: "agent:main:2",
		},
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	byType, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{EventType: "session.ended"})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(byType) != 1 || byType[0].ID != "f-3" {
		t.Errorf("eventType filter: got %v", byType)
	}

	bySession, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{SessionKey: "agent:main:2"})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(bySession) != 2 {
		t.Errorf("sessionKey filter: expected 2, got %d", len(bySession))
	}

	start := base.Add(30 * time.Minute)
	byTime, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{StartTime: &start})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(byTime) != 2 {
		t.Errorf("startTime filter: expected 2, got %d", len(byTime))
	}

	limited, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{Limit: 1})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "f-3" {
		t.Errorf("limit: got %v", limited)
	}
}

func TestEventRepositoryListSessionEventsAscending(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("s-2", "agent:main:9", base.Add(time.Minute)),
		turnEvent("s-1", "agent:main:9", base),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	events, err := repo.ListSessionEvents(ctx, "agent:main:9", ports.SessionEventsOptions{})
	if err != nil {
		t.Fatalf("ListSessionEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "s-1" || events[1].ID != "s-2" {
		t.Errorf("expected chronological order s-1, s-2; got %v", events)
	}
}

func TestEventRepositoryGatewayBookkeeping(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("g-1", "agent:main:1", base),
		turnEvent("g-2", "agent:main:1", base.Add(time.Minute)),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	gateways, err := turso.NewGatewayRepository(db).ListGateways(ctx)
	if err != nil {
		t.Fatalf("ListGateways failed: %v", err)
	}
	if len(gateways) != 1 {
		t.Fatalf("expected 1 gateway, got %d", len(gateways))
	}
	if gateways[0].ID != "gw1" || gateways[0].EventCount != 2 {
		t.Errorf("gateway = %+v, want gw1 with 2 events", gateways[0])
	}
}

func TestEventRepositoryDeleteEventsBefore(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	repo := turso.NewEventRepository(db)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := repo.InsertBatch(ctx, []domain.Event{
		turnEvent("d-1", "agent:main:1", base.Add(-48*time.Hour)),
		turnEvent("d-2", "agent:main:1", base),
	})
	if err != nil {
		t.Fatalf("InsertBatch failed: %v", err)
	}

	n, err := repo.DeleteEventsBefore(ctx, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteEventsBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d events, want 1", n)
	}

	remaining, err := repo.QueryEvents(ctx, ports.QueryEventsOptions{})
	if err != nil {
		t.Fatalf("QueryEvents failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "d-2" {
		t.Errorf("remaining = %v, want only d-2", remaining)
	}
}
