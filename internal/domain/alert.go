package domain

import "time"

// Severity of an alert rule and the alerts it fires.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AlertRule is a configured condition over incoming events. Rules are
// managed out of band and read-only to the engine.
type AlertRule struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Condition       string   `json:"condition"`
	Severity        Severity `json:"severity"`
	MessageTemplate string   `json:"messageTemplate"`
	Enabled         bool     `json:"enabled"`
	CooldownSeconds int64    `json:"cooldownSeconds"`
}

// Cooldown returns the minimum interval between firings of the rule.
func (r *AlertRule) Cooldown() time.Duration {
	return time.Duration(r.CooldownSeconds) * time.Second
}

// Alert is a fired rule instance.
type Alert struct {
	ID             string         `json:"id"`
	RuleID         *string        `json:"ruleId"`
	Severity       Severity       `json:"severity"`
	Message        string         `json:"message"`
	SessionKey     *string        `json:"sessionKey"`
	GatewayID      *string        `json:"gatewayId"`
	TriggeredAt    time.Time      `json:"triggeredAt"`
	AcknowledgedAt *time.Time     `json:"acknowledgedAt"`
	ResolvedAt     *time.Time     `json:"resolvedAt"`
	Metadata       map[string]any `json:"metadata"`
}

// NewAlertParams are the caller-supplied fields of a new alert; the
// store assigns ID and TriggeredAt.
type NewAlertParams struct {
	RuleID     *string
	Severity   Severity
	Message    string
	SessionKey *string
	GatewayID  *string
	Metadata   map[string]any
}
