package ports

import (
	"context"
	"time"

	"github.com/openclaw/observatory/internal/domain"
)

// EventRepository persists and queries ingested events.
type EventRepository interface {
	// InsertBatch writes all events and the per-gateway last-seen
	// bookkeeping in a single transaction. Either every event in the
	// batch is committed or none are.
	InsertBatch(ctx context.Context, events []domain.Event) error
	QueryEvents(ctx context.Context, opts QueryEventsOptions) ([]domain.Event, error)
	ListSessionEvents(ctx context.Context, sessionKey string, opts SessionEventsOptions) ([]domain.Event, error)
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// QueryEventsOptions filter the global event query.
type QueryEventsOptions struct {
	EventType  string
	GatewayID  string
	SessionKey string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int64
	Offset     int64
}

// SessionEventsOptions filter a single session's event listing.
type SessionEventsOptions struct {
	EventType string
	Limit     int64
	Offset    int64
}

// SessionRepository reads derived session aggregates.
type SessionRepository interface {
	ListSessions(ctx context.Context, opts ListSessionsOptions) ([]domain.SessionSummary, error)
	// GetSession returns nil when no session has the key.
	GetSession(ctx context.Context, sessionKey string) (*domain.SessionSummary, error)
}

// ListSessionsOptions filter the session listing. Status filters by
// the same derivation the projector applies, evaluated in SQL.
type ListSessionsOptions struct {
	GatewayID string
	Status    string
	Limit     int64
	Offset    int64
}

// AlertRepository stores alert rules and fired alerts.
type AlertRepository interface {
	ListRules(ctx context.Context) ([]domain.AlertRule, error)
	CreateAlert(ctx context.Context, params domain.NewAlertParams) (*domain.Alert, error)
	ListAlerts(ctx context.Context, opts ListAlertsOptions) ([]domain.Alert, error)
}

// ListAlertsOptions filter the alert listing. Resolved nil means both
// resolved and unresolved alerts.
type ListAlertsOptions struct {
	Resolved *bool
	Limit    int64
}

// GatewayRepository reads gateway bookkeeping.
type GatewayRepository interface {
	ListGateways(ctx context.Context) ([]domain.Gateway, error)
}

// MetricsRepository computes rollups over the event store.
type MetricsRepository interface {
	Summary(ctx context.Context) (*domain.MetricsSummary, error)
	Hourly(ctx context.Context, hours int) ([]domain.HourlyMetrics, error)
}
