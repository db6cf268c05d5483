package domain

import "time"

// EventType identifies a gateway lifecycle event.
type EventType string

const (
	EventSessionCreated    EventType = "session.created"
	EventSessionEnded      EventType = "session.ended"
	EventTurnStarted       EventType = "turn.started"
	EventTurnCompleted     EventType = "turn.completed"
	EventTurnFailed        EventType = "turn.failed"
	EventToolInvoked       EventType = "tool.invoked"
	EventToolCompleted     EventType = "tool.completed"
	EventToolFailed        EventType = "tool.failed"
	EventSubagentSpawned   EventType = "subagent.spawned"
	EventSubagentCompleted EventType = "subagent.completed"
	EventSubagentFailed    EventType = "subagent.failed"
	EventContextWarning    EventType = "context.warning"
	EventContextOverflow   EventType = "context.overflow"
	EventCronTriggered     EventType = "cron.triggered"
	EventHeartbeatPoll     EventType = "heartbeat.poll"
)

// Tokens carries token accounting for a single event. All fields are
// optional; PercentUsed is a fraction in [0,1].
type Tokens struct {
	Input       *int64   `json:"input,omitempty"`
	Output      *int64   `json:"output,omitempty"`
	Total       *int64   `json:"total,omitempty"`
	ContextUsed *int64   `json:"contextUsed,omitempty"`
	ContextMax  *int64   `json:"contextMax,omitempty"`
	PercentUsed *float64 `json:"percentUsed,omitempty"`
}

// Timing carries wall-clock measurements in milliseconds.
type Timing struct {
	StartMs    *float64 `json:"startMs,omitempty"`
	EndMs      *float64 `json:"endMs,omitempty"`
	DurationMs *int64   `json:"durationMs,omitempty"`
	TTFTMs     *int64   `json:"ttftMs,omitempty"`
}

// Tool describes a tool invocation outcome.
type Tool struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     any            `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// ErrorInfo describes an error attached to an event.
type ErrorInfo struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Stack     string `json:"stack,omitempty"`
	Retriable *bool  `json:"retriable,omitempty"`
}

// Model identifies the provider and model serving a turn.
type Model struct {
	Provider string `json:"provider"`
	ModelID  string `json:"modelId"`
	Thinking string `json:"thinking,omitempty"`
}

// Cost carries dollar amounts for a single event.
type Cost struct {
	InputCost  *float64 `json:"inputCost,omitempty"`
	OutputCost *float64 `json:"outputCost,omitempty"`
	TotalCost  *float64 `json:"totalCost,omitempty"`
}

// Event is a single immutable fact about agent activity. ID and
// Timestamp are assigned at ingestion when absent; the measurement
// blocks are each independently optional.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	EventType string    `json:"eventType"`
	GatewayID string    `json:"gatewayId"`

	SessionKey       string `json:"sessionKey"`
	ParentSessionKey string `json:"parentSessionKey,omitempty"`
	AgentID          string `json:"agentId,omitempty"`
	Channel          string `json:"channel,omitempty"`

	TurnID    string `json:"turnId,omitempty"`
	MessageID string `json:"messageId,omitempty"`

	Tokens *Tokens    `json:"tokens,omitempty"`
	Timing *Timing    `json:"timing,omitempty"`
	Tool   *Tool      `json:"tool,omitempty"`
	Error  *ErrorInfo `json:"error,omitempty"`
	Model  *Model     `json:"model,omitempty"`
	Cost   *Cost      `json:"cost,omitempty"`

	Payload map[string]any `json:"payload,omitempty"`
}
