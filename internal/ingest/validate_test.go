package ingest

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func validInput() EventInput {
	return EventInput{
		EventType:  "turn.completed",
		GatewayID:  "gw1",
		SessionKey: "agent:main:1",
	}
}

func violationsOf(t *testing.T, err error) []FieldViolation {
	t.Helper()
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T: %v", err, err)
	}
	return verr.Violations
}

func hasViolation(violations []FieldViolation, field string) bool {
	for _, v := range violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

func TestValidateBatchAcceptsValidEvents(t *testing.T) {
	v := NewValidator()
	if err := v.ValidateBatch([]EventInput{validInput()}); err != nil {
		t.Fatalf("ValidateBatch() = %v, want nil", err)
	}
}

func TestValidateBatchSize(t *testing.T) {
	v := NewValidator()

	err := v.ValidateBatch(nil)
	if err == nil {
		t.Fatal("empty batch must be rejected")
	}
	if !hasViolation(violationsOf(t, err), "events") {
		t.Error("expected a violation on the events field")
	}

	big := make([]EventInput, MaxBatchSize+1)
	for i := range big {
		big[i] = validInput()
	}
	err = v.ValidateBatch(big)
	if err == nil {
		t.Fatal("oversized batch must be rejected")
	}
	if !hasViolation(violationsOf(t, err), "events") {
		t.Error("expected a violation on the events field")
	}
}

func TestValidateBatchRequiredFields(t *testing.T) {
	v := NewValidator()

	err := v.ValidateBatch([]EventInput{{}})
	if err == nil {
		t.Fatal("event without required fields must be rejected")
	}
	violations := violationsOf(t, err)
	for _, field := range []string{"events[0].eventType", "events[0].gatewayId", "events[0].sessionKey"} {
		if !hasViolation(violations, field) {
			t.Errorf("missing violation for %s; got %v", field, violations)
		}
	}
}

func TestValidateBatchCollectsAllViolations(t *testing.T) {
	v := NewValidator()

	bad := validInput()
	neg := int64(-1)
	over := 1.5
	bad.Tokens = &TokensInput{Input: &neg, PercentUsed: &over}

	err := v.ValidateBatch([]EventInput{{}, bad})
	if err == nil {
		t.Fatal("expected validation failure")
	}
	violations := violationsOf(t, err)

	// Violations from both events are reported, not just the first.
	if !hasViolation(violations, "events[0].eventType") {
		t.Errorf("missing violation for events[0].eventType; got %v", violations)
	}
	if !hasViolation(violations, "events[1].tokens.input") {
		t.Errorf("missing violation for events[1].tokens.input; got %v", violations)
	}
	if !hasViolation(violations, "events[1].tokens.percentUsed") {
		t.Errorf("missing violation for events[1].tokens.percentUsed; got %v", violations)
	}
}

func TestValidateBatchFieldFormats(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name   string
		mutate func(*EventInput)
		field  string
	}{
		{"bad uuid", func(e *EventInput) { e.ID = "not-a-uuid" }, "events[0].id"},
		{"bad timestamp", func(e *EventInput) { e.Timestamp = "yesterday" }, "events[0].timestamp"},
		{"tool without name", func(e *EventInput) { e.Tool = &ToolInput{} }, "events[0].tool.name"},
		{"error without type", func(e *EventInput) { e.Error = &ErrorInput{Message: "boom"} }, "events[0].error.type"},
		{"model without provider", func(e *EventInput) { e.Model = &ModelInput{ModelID: "m"} }, "events[0].model.provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validInput()
			tt.mutate(&in)
			err := v.ValidateBatch([]EventInput{in})
			if err == nil {
				t.Fatal("expected validation failure")
			}
			if !hasViolation(violationsOf(t, err), tt.field) {
				t.Errorf("missing violation for %s; got %v", tt.field, violationsOf(t, err))
			}
		})
	}
}

func TestNormalizeAssignsDefaults(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ev := Normalize(validInput(), now)
	if ev.ID == "" {
		t.Error("expected an assigned ID")
	}
	if !ev.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", ev.Timestamp, now)
	}
}

func TestNormalizePreservesProducerValues(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	in := validInput()
	in.ID = "0b54a731-1c1e-4b0f-9e65-6a1fdfb8f3d2"
	in.Timestamp = "2026-02-28T10:30:00Z"
	percent := 0.5
	in.Tokens = &TokensInput{PercentUsed: &percent}

	ev := Normalize(in, now)
	if ev.ID != in.ID {
		t.Errorf("ID = %q, want %q", ev.ID, in.ID)
	}
	if got := ev.Timestamp.Format(time.RFC3339); got != in.Timestamp {
		t.Errorf("Timestamp = %q, want %q", got, in.Timestamp)
	}
	if ev.Tokens == nil || ev.Tokens.PercentUsed == nil || *ev.Tokens.PercentUsed != percent {
		t.Error("tokens block not carried through")
	}
}

func TestValidationErrorMessage(t *testing.T) {
	err := &ValidationError{Violations: []FieldViolation{
		{Field: "events[0].eventType", Message: "is required"},
	}}
	if !strings.Contains(err.Error(), "events[0].eventType: is required") {
		t.Errorf("unexpected error text %q", err.Error())
	}
}
