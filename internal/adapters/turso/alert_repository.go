package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/util"
)

type AlertRepository struct {
	db *sql.DB
}

func NewAlertRepository(db *sql.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

func (r *AlertRepository) ListRules(ctx context.Context) ([]domain.AlertRule, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, condition, severity, message_template, enabled, cooldown_seconds
		FROM alert_rules
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list alert rules: %w", err)
	}
	defer rows.Close()

	rules := make([]domain.AlertRule, 0)
	for rows.Next() {
		var rule domain.AlertRule
		var enabled int64
		err := rows.Scan(&rule.ID, &rule.Name, &rule.Condition, &rule.Severity,
			&rule.MessageTemplate, &enabled, &rule.CooldownSeconds)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert rule: %w", err)
		}
		rule.Enabled = enabled != 0
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *AlertRepository) CreateAlert(ctx context.Context, params domain.NewAlertParams) (*domain.Alert, error) {
	alert := &domain.Alert{
		ID:          uuid.NewString(),
		RuleID:      params.RuleID,
		Severity:    params.Severity,
		Message:     params.Message,
		SessionKey:  params.SessionKey,
		GatewayID:   params.GatewayID,
		TriggeredAt: time.Now().UTC(),
		Metadata:    params.Metadata,
	}

	var metadata sql.NullString
	if alert.Metadata != nil {
		raw, err := json.Marshal(alert.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal alert metadata: %w", err)
		}
		metadata = sql.NullString{String: string(raw), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, rule_id, severity, message, session_key, gateway_id, triggered_at, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		alert.ID,
		util.NullStringPtr(alert.RuleID),
		string(alert.Severity),
		alert.Message,
		util.NullStringPtr(alert.SessionKey),
		util.NullStringPtr(alert.GatewayID),
		alert.TriggeredAt.Format(time.RFC3339),
		metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert alert: %w", err)
	}
	return alert, nil
}

func (r *AlertRepository) ListAlerts(ctx context.Context, opts ports.ListAlertsOptions) ([]domain.Alert, error) {
	query := `
		SELECT id, rule_id, severity, message, session_key, gateway_id,
			triggered_at, acknowledged_at, resolved_at, metadata
		FROM alerts WHERE 1=1`

	if opts.Resolved != nil {
		if *opts.Resolved {
			query += ` AND resolved_at IS NOT NULL`
		} else {
			query += ` AND resolved_at IS NULL`
		}
	}

	query += ` ORDER BY triggered_at DESC LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, normalizeLimit(opts.Limit, 50))
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := make([]domain.Alert, 0)
	for rows.Next() {
		var (
			a                          domain.Alert
			ruleID                     sql.NullString
			sessionKey, gatewayID      sql.NullString
			triggeredAt                string
			acknowledgedAt, resolvedAt sql.NullString
			metadata                   sql.NullString
		)
		err := rows.Scan(&a.ID, &ruleID, &a.Severity, &a.Message, &sessionKey, &gatewayID,
			&triggeredAt, &acknowledgedAt, &resolvedAt, &metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		a.RuleID = util.NullStringToPtr(ruleID)
		a.SessionKey = util.NullStringToPtr(sessionKey)
		a.GatewayID = util.NullStringToPtr(gatewayID)
		if a.TriggeredAt, err = parseTimestamp(triggeredAt); err != nil {
			return nil, err
		}
		if a.AcknowledgedAt, err = parseNullTimestamp(acknowledgedAt); err != nil {
			return nil, err
		}
		if a.ResolvedAt, err = parseNullTimestamp(resolvedAt); err != nil {
			return nil, err
		}
		if metadata.Valid {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal alert metadata: %w", err)
			}
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func parseNullTimestamp(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTimestamp(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
