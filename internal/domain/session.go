package domain

import "time"

// SessionStatus is the derived lifecycle state of a session. It is
// computed from the aggregate on every read, never stored.
type SessionStatus string

const (
	StatusActive SessionStatus = "active"
	StatusIdle   SessionStatus = "idle"
	StatusError  SessionStatus = "error"
	StatusEnded  SessionStatus = "ended"
)

// IdleThreshold is how long a session may go without events before it
// is considered idle.
const IdleThreshold = 5 * time.Minute

// SessionSummary aggregates all events sharing a session key.
type SessionSummary struct {
	SessionKey        string
	GatewayID         string
	ParentSessionKey  *string
	AgentID           *string
	Channel           *string
	StartedAt         time.Time
	LastEventAt       time.Time
	EventCount        int64
	TurnCount         int64
	ErrorCount        int64
	TotalCost         float64
	MaxContextUsed    *int64
	ContextMax        *int64
	MaxContextPercent *float64
	IsEnded           bool
}

// Status derives the lifecycle state at the given instant. Ended and
// error take precedence over staleness; idle is anything without
// activity for more than IdleThreshold.
func (s *SessionSummary) Status(now time.Time) SessionStatus {
	switch {
	case s.IsEnded:
		return StatusEnded
	case s.ErrorCount > 0:
		return StatusError
	case now.Sub(s.LastEventAt) > IdleThreshold:
		return StatusIdle
	default:
		return StatusActive
	}
}
