package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/util"
)

const sessionColumns = `session_key, gateway_id, parent_session_key, agent_id, channel,
	started_at, last_event_at, event_count, turn_count, error_count, total_cost,
	max_context_used, context_max, max_context_percent, is_ended`

// Timestamps are stored as RFC3339 text, so staleness checks must
// compare against the same format that the events table uses.
const rfc3339Now = `strftime('%Y-%m-%dT%H:%M:%SZ', 'now'`

type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) ListSessions(ctx context.Context, opts ports.ListSessionsOptions) ([]domain.SessionSummary, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE 1=1`
	var args []any

	if opts.GatewayID != "" {
		query += ` AND gateway_id = ?`
		args = append(args, opts.GatewayID)
	}

	switch opts.Status {
	case "active":
		query += ` AND is_ended = 0 AND last_event_at > ` + rfc3339Now + `, '-5 minutes')`
	case "idle":
		query += ` AND is_ended = 0 AND last_event_at <= ` + rfc3339Now + `, '-5 minutes')`
	case "error":
		query += ` AND error_count > 0`
	case "ended":
		query += ` AND is_ended = 1`
	}

	query += ` ORDER BY last_event_at DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(opts.Limit, 50), opts.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.SessionSummary, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionKey string) (*domain.SessionSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE session_key = ?`, sessionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	return scanSession(rows)
}

func scanSession(rows *sql.Rows) (*domain.SessionSummary, error) {
	var (
		s                           domain.SessionSummary
		parentKey, agentID, channel sql.NullString
		startedAt, lastEventAt      string
		maxCtxUsed, ctxMax          sql.NullInt64
		maxCtxPercent               sql.NullFloat64
		isEnded                     int64
	)

	err := rows.Scan(
		&s.SessionKey, &s.GatewayID, &parentKey, &agentID, &channel,
		&startedAt, &lastEventAt, &s.EventCount, &s.TurnCount, &s.ErrorCount, &s.TotalCost,
		&maxCtxUsed, &ctxMax, &maxCtxPercent, &isEnded,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan session row: %w", err)
	}

	if s.StartedAt, err = parseTimestamp(startedAt); err != nil {
		return nil, err
	}
	if s.LastEventAt, err = parseTimestamp(lastEventAt); err != nil {
		return nil, err
	}
	s.ParentSessionKey = util.NullStringToPtr(parentKey)
	s.AgentID = util.NullStringToPtr(agentID)
	s.Channel = util.NullStringToPtr(channel)
	s.MaxContextUsed = util.NullInt64ToPtr(maxCtxUsed)
	s.ContextMax = util.NullInt64ToPtr(ctxMax)
	s.MaxContextPercent = util.NullFloat64ToPtr(maxCtxPercent)
	s.IsEnded = isEnded != 0

	return &s, nil
}
