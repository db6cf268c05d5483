package ingest

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/openclaw/observatory/internal/domain"
)

// MaxBatchSize is the largest number of events accepted per request.
const MaxBatchSize = 1000

// EventInput is the wire form of an event as submitted by a producer.
// It is validated and normalized into a domain.Event before anything
// else touches it.
type EventInput struct {
	ID        string `json:"id" validate:"omitempty,uuid"`
	Timestamp string `json:"timestamp" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	EventType string `json:"eventType" validate:"required"`
	GatewayID string `json:"gatewayId" validate:"required"`

	SessionKey       string `json:"sessionKey" validate:"required"`
	ParentSessionKey string `json:"parentSessionKey"`
	AgentID          string `json:"agentId"`
	Channel          string `json:"channel"`

	TurnID    string `json:"turnId"`
	MessageID string `json:"messageId"`

	Tokens *TokensInput `json:"tokens" validate:"omitempty"`
	Timing *TimingInput `json:"timing" validate:"omitempty"`
	Tool   *ToolInput   `json:"tool" validate:"omitempty"`
	Error  *ErrorInput  `json:"error" validate:"omitempty"`
	Model  *ModelInput  `json:"model" validate:"omitempty"`
	Cost   *CostInput   `json:"cost" validate:"omitempty"`

	Payload map[string]any `json:"payload"`
}

type TokensInput struct {
	Input       *int64   `json:"input" validate:"omitempty,gte=0"`
	Output      *int64   `json:"output" validate:"omitempty,gte=0"`
	Total       *int64   `json:"total" validate:"omitempty,gte=0"`
	ContextUsed *int64   `json:"contextUsed" validate:"omitempty,gte=0"`
	ContextMax  *int64   `json:"contextMax" validate:"omitempty,gte=0"`
	PercentUsed *float64 `json:"percentUsed" validate:"omitempty,gte=0,lte=1"`
}

type TimingInput struct {
	StartMs    *float64 `json:"startMs"`
	EndMs      *float64 `json:"endMs"`
	DurationMs *int64   `json:"durationMs" validate:"omitempty,gte=0"`
	TTFTMs     *int64   `json:"ttftMs" validate:"omitempty,gte=0"`
}

type ToolInput struct {
	Name       string         `json:"name" validate:"required"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
	Error      string         `json:"error"`
}

type ErrorInput struct {
	Type      string `json:"type" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Stack     string `json:"stack"`
	Retriable *bool  `json:"retriable"`
}

type ModelInput struct {
	Provider string `json:"provider" validate:"required"`
	ModelID  string `json:"modelId" validate:"required"`
	Thinking string `json:"thinking"`
}

type CostInput struct {
	InputCost  *float64 `json:"inputCost" validate:"omitempty,gte=0"`
	OutputCost *float64 `json:"outputCost" validate:"omitempty,gte=0"`
	TotalCost  *float64 `json:"totalCost" validate:"omitempty,gte=0"`
}

// IngestRequest is the body of POST /api/v1/ingest.
type IngestRequest struct {
	Events []EventInput `json:"events"`
}

// FieldViolation names one failing field of one event in a batch.
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates every violation found in a batch. A batch
// with any violation is rejected whole.
type ValidationError struct {
	Violations []FieldViolation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Field + ": " + v.Message
	}
	return "invalid batch: " + strings.Join(msgs, "; ")
}

// Validator checks ingestion batches against the event schema.
type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New()

	// Report violations under the field's JSON name so producers can
	// correlate them with their request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	return &Validator{validate: v}
}

// ValidateBatch checks the batch size and every event, collecting all
// violations across all events rather than stopping at the first.
func (v *Validator) ValidateBatch(events []EventInput) error {
	var violations []FieldViolation

	if len(events) == 0 {
		violations = append(violations, FieldViolation{
			Field:   "events",
			Message: "batch must contain at least 1 event",
		})
	}
	if len(events) > MaxBatchSize {
		violations = append(violations, FieldViolation{
			Field:   "events",
			Message: fmt.Sprintf("batch must contain at most %d events", MaxBatchSize),
		})
	}

	for i, ev := range events {
		err := v.validate.Struct(ev)
		if err == nil {
			continue
		}
		ferrs, ok := err.(validator.ValidationErrors)
		if !ok {
			violations = append(violations, FieldViolation{
				Field:   fmt.Sprintf("events[%d]", i),
				Message: err.Error(),
			})
			continue
		}
		for _, fe := range ferrs {
			violations = append(violations, FieldViolation{
				Field:   fmt.Sprintf("events[%d].%s", i, fieldPath(fe)),
				Message: violationMessage(fe),
			})
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// fieldPath strips the struct name from the namespace, leaving the
// JSON path within the event (e.g. "tokens.percentUsed").
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return ns
}

func violationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return "must not be negative"
	case "lte":
		return "must be between 0 and 1"
	case "uuid":
		return "must be a valid UUID"
	case "datetime":
		return "must be a valid RFC3339 timestamp"
	default:
		return "is invalid"
	}
}

// Normalize converts a validated input into a domain event, assigning
// an ID and receipt timestamp where the producer omitted them.
func Normalize(in EventInput, now time.Time) domain.Event {
	ev := domain.Event{
		ID:               in.ID,
		EventType:        in.EventType,
		GatewayID:        in.GatewayID,
		SessionKey:       in.SessionKey,
		ParentSessionKey: in.ParentSessionKey,
		AgentID:          in.AgentID,
		Channel:          in.Channel,
		TurnID:           in.TurnID,
		MessageID:        in.MessageID,
		Payload:          in.Payload,
	}

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if in.Timestamp != "" {
		// Already validated as RFC3339.
		ev.Timestamp, _ = time.Parse(time.RFC3339, in.Timestamp)
	} else {
		ev.Timestamp = now
	}

	if in.Tokens != nil {
		ev.Tokens = &domain.Tokens{
			Input:       in.Tokens.Input,
			Output:      in.Tokens.Output,
			Total:       in.Tokens.Total,
			ContextUsed: in.Tokens.ContextUsed,
			ContextMax:  in.Tokens.ContextMax,
			PercentUsed: in.Tokens.PercentUsed,
		}
	}
	if in.Timing != nil {
		ev.Timing = &domain.Timing{
			StartMs:    in.Timing.StartMs,
			EndMs:      in.Timing.EndMs,
			DurationMs: in.Timing.DurationMs,
			TTFTMs:     in.Timing.TTFTMs,
		}
	}
	if in.Tool != nil {
		ev.Tool = &domain.Tool{
			Name:       in.Tool.Name,
			Parameters: in.Tool.Parameters,
			Result:     in.Tool.Result,
			Error:      in.Tool.Error,
		}
	}
	if in.Error != nil {
		ev.Error = &domain.ErrorInfo{
			Type:      in.Error.Type,
			Message:   in.Error.Message,
			Stack:     in.Error.Stack,
			Retriable: in.Error.Retriable,
		}
	}
	if in.Model != nil {
		ev.Model = &domain.Model{
			Provider: in.Model.Provider,
			ModelID:  in.Model.ModelID,
			Thinking: in.Model.Thinking,
		}
	}
	if in.Cost != nil {
		ev.Cost = &domain.Cost{
			InputCost:  in.Cost.InputCost,
			OutputCost: in.Cost.OutputCost,
			TotalCost:  in.Cost.TotalCost,
		}
	}

	return ev
}
