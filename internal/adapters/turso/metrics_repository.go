package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclaw/observatory/internal/domain"
)

type MetricsRepository struct {
	db *sql.DB
}

func NewMetricsRepository(db *sql.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

// Summary computes the 24-hour rollup; per-hour rates come from the
// most recent hourly bucket.
func (r *MetricsRepository) Summary(ctx context.Context) (*domain.MetricsSummary, error) {
	var m domain.MetricsSummary

	err := r.db.QueryRowContext(ctx, `
		SELECT
			COUNT(DISTINCT session_key),
			COUNT(DISTINCT CASE WHEN timestamp > `+rfc3339Now+`, '-5 minutes') THEN session_key END),
			COALESCE(SUM(CASE WHEN event_type = 'turn.completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN error_type IS NOT NULL THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(cost_total), 0),
			COALESCE(AVG(tokens_percent_used), 0),
			COALESCE(AVG(duration_ms), 0)
		FROM events
		WHERE timestamp > `+rfc3339Now+`, '-24 hours')
	`).Scan(
		&m.TotalSessions,
		&m.ActiveSessions,
		&m.TotalTurns,
		&m.TotalErrors,
		&m.TotalCost,
		&m.AvgContextPercent,
		&m.AvgDurationMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute metrics summary: %w", err)
	}

	lastHour, err := r.Hourly(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(lastHour) > 0 {
		m.TurnsPerHour = lastHour[0].Turns
		m.ErrorsPerHour = lastHour[0].Errors
		m.CostPerHour = lastHour[0].TotalCost
	}

	return &m, nil
}

func (r *MetricsRepository) Hourly(ctx context.Context, hours int) ([]domain.HourlyMetrics, error) {
	if hours <= 0 {
		hours = 24
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT
			strftime('%Y-%m-%dT%H:00:00Z', timestamp) AS hour,
			gateway_id,
			SUM(CASE WHEN event_type = 'turn.completed' THEN 1 ELSE 0 END) AS turns,
			SUM(CASE WHEN error_type IS NOT NULL THEN 1 ELSE 0 END) AS errors,
			COALESCE(SUM(cost_total), 0) AS total_cost,
			COALESCE(AVG(tokens_percent_used), 0) AS avg_context_pct,
			COALESCE(AVG(duration_ms), 0) AS avg_duration_ms,
			COUNT(DISTINCT session_key) AS unique_sessions,
			COALESCE(SUM(tokens_input), 0) AS total_input_tokens,
			COALESCE(SUM(tokens_output), 0) AS total_output_tokens
		FROM events
		WHERE timestamp > `+rfc3339Now+`, ?)
		GROUP BY strftime('%Y-%m-%dT%H:00:00Z', timestamp), gateway_id
		ORDER BY hour DESC
	`, fmt.Sprintf("-%d hours", hours))
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly metrics: %w", err)
	}
	defer rows.Close()

	metrics := make([]domain.HourlyMetrics, 0)
	for rows.Next() {
		var h domain.HourlyMetrics
		err := rows.Scan(&h.Hour, &h.GatewayID, &h.Turns, &h.Errors, &h.TotalCost,
			&h.AvgContextPct, &h.AvgDurationMs, &h.UniqueSessions,
			&h.TotalInputTokens, &h.TotalOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hourly metrics: %w", err)
		}
		metrics = append(metrics, h)
	}
	return metrics, rows.Err()
}
