package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/util"
)

const eventColumns = `id, timestamp, event_type, gateway_id, session_key, parent_session_key,
	agent_id, channel, turn_id, message_id,
	tokens_input, tokens_output, tokens_total, tokens_context_used, tokens_context_max, tokens_percent_used,
	timing_start_ms, timing_end_ms, duration_ms, ttft_ms,
	tool_name, tool_error,
	error_type, error_message, error_retriable,
	model_provider, model_id,
	cost_input, cost_output, cost_total,
	payload`

type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// InsertBatch writes every event and the gateway last-seen bookkeeping
// in one transaction. A failure on any row rolls back the whole batch.
func (r *EventRepository) InsertBatch(ctx context.Context, events []domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertEvent, err := tx.PrepareContext(ctx, `
		INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer insertEvent.Close()

	upsertGateway, err := tx.PrepareContext(ctx, `
		INSERT INTO gateways (id, first_seen, last_seen, event_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT (id) DO UPDATE SET
			last_seen = excluded.last_seen,
			event_count = gateways.event_count + 1
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare gateway upsert: %w", err)
	}
	defer upsertGateway.Close()

	now := time.Now().UTC().Format(time.RFC3339)

	for _, ev := range events {
		var payload sql.NullString
		if ev.Payload != nil {
			raw, err := json.Marshal(ev.Payload)
			if err != nil {
				return fmt.Errorf("failed to marshal payload for event %s: %w", ev.ID, err)
			}
			payload = sql.NullString{String: string(raw), Valid: true}
		}

		tok := ev.Tokens
		if tok == nil {
			tok = &domain.Tokens{}
		}
		tim := ev.Timing
		if tim == nil {
			tim = &domain.Timing{}
		}

		var toolName, toolError sql.NullString
		if ev.Tool != nil {
			toolName = util.NullString(ev.Tool.Name)
			toolError = util.NullString(ev.Tool.Error)
		}

		var errType, errMessage sql.NullString
		var errRetriable sql.NullBool
		if ev.Error != nil {
			errType = util.NullString(ev.Error.Type)
			errMessage = sql.NullString{String: ev.Error.Message, Valid: true}
			errRetriable = util.NullBoolPtr(ev.Error.Retriable)
		}

		var modelProvider, modelID sql.NullString
		if ev.Model != nil {
			modelProvider = util.NullString(ev.Model.Provider)
			modelID = util.NullString(ev.Model.ModelID)
		}

		cost := ev.Cost
		if cost == nil {
			cost = &domain.Cost{}
		}

		_, err = insertEvent.ExecContext(ctx,
			ev.ID,
			ev.Timestamp.UTC().Format(time.RFC3339),
			ev.EventType,
			ev.GatewayID,
			ev.SessionKey,
			util.NullString(ev.ParentSessionKey),
			util.NullString(ev.AgentID),
			util.NullString(ev.Channel),
			util.NullString(ev.TurnID),
			util.NullString(ev.MessageID),
			util.NullInt64(tok.Input),
			util.NullInt64(tok.Output),
			util.NullInt64(tok.Total),
			util.NullInt64(tok.ContextUsed),
			util.NullInt64(tok.ContextMax),
			util.NullFloat64(tok.PercentUsed),
			util.NullFloat64(tim.StartMs),
			util.NullFloat64(tim.EndMs),
			util.NullInt64(tim.DurationMs),
			util.NullInt64(tim.TTFTMs),
			toolName,
			toolError,
			errType,
			errMessage,
			errRetriable,
			modelProvider,
			modelID,
			util.NullFloat64(cost.InputCost),
			util.NullFloat64(cost.OutputCost),
			util.NullFloat64(cost.TotalCost),
			payload,
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
		}

		if _, err := upsertGateway.ExecContext(ctx, ev.GatewayID, now, now); err != nil {
			return fmt.Errorf("failed to upsert gateway %s: %w", ev.GatewayID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event batch: %w", err)
	}
	return nil
}

func (r *EventRepository) QueryEvents(ctx context.Context, opts ports.QueryEventsOptions) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	var args []any

	if opts.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, opts.EventType)
	}
	if opts.GatewayID != "" {
		query += ` AND gateway_id = ?`
		args = append(args, opts.GatewayID)
	}
	if opts.SessionKey != "" {
		query += ` AND session_key = ?`
		args = append(args, opts.SessionKey)
	}
	if opts.StartTime != nil {
		query += ` AND timestamp >= ?`
		args = append(args, opts.StartTime.UTC().Format(time.RFC3339))
	}
	if opts.EndTime != nil {
		query += ` AND timestamp <= ?`
		args = append(args, opts.EndTime.UTC().Format(time.RFC3339))
	}

	query += ` ORDER BY timestamp DESC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(opts.Limit, 100), opts.Offset)

	return r.queryEvents(ctx, query, args...)
}

func (r *EventRepository) ListSessionEvents(ctx context.Context, sessionKey string, opts ports.SessionEventsOptions) ([]domain.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE session_key = ?`
	args := []any{sessionKey}

	if opts.EventType != "" {
		query += ` AND event_type = ?`
		args = append(args, opts.EventType)
	}

	query += ` ORDER BY timestamp ASC LIMIT ? OFFSET ?`
	args = append(args, normalizeLimit(opts.Limit, 100), opts.Offset)

	return r.queryEvents(ctx, query, args...)
}

// DeleteEventsBefore prunes events older than the cutoff and returns
// the number of rows removed.
func (r *EventRepository) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM events WHERE timestamp < ?`,
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *EventRepository) queryEvents(ctx context.Context, query string, args ...any) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func scanEvent(rows *sql.Rows) (*domain.Event, error) {
	var (
		ev                               domain.Event
		timestamp                        string
		parentKey, agentID, channel      sql.NullString
		turnID, messageID                sql.NullString
		tokInput, tokOutput, tokTotal    sql.NullInt64
		tokCtxUsed, tokCtxMax            sql.NullInt64
		tokPercent                       sql.NullFloat64
		startMs, endMs                   sql.NullFloat64
		durationMs, ttftMs               sql.NullInt64
		toolName, toolError              sql.NullString
		errType, errMessage              sql.NullString
		errRetriable                     sql.NullBool
		modelProvider, modelID           sql.NullString
		costInput, costOutput, costTotal sql.NullFloat64
		payload                          sql.NullString
	)

	err := rows.Scan(
		&ev.ID, &timestamp, &ev.EventType, &ev.GatewayID, &ev.SessionKey, &parentKey,
		&agentID, &channel, &turnID, &messageID,
		&tokInput, &tokOutput, &tokTotal, &tokCtxUsed, &tokCtxMax, &tokPercent,
		&startMs, &endMs, &durationMs, &ttftMs,
		&toolName, &toolError,
		&errType, &errMessage, &errRetriable,
		&modelProvider, &modelID,
		&costInput, &costOutput, &costTotal,
		&payload,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan event row: %w", err)
	}

	ev.Timestamp, err = parseTimestamp(timestamp)
	if err != nil {
		return nil, err
	}
	ev.ParentSessionKey = nullStringValue(parentKey)
	ev.AgentID = nullStringValue(agentID)
	ev.Channel = nullStringValue(channel)
	ev.TurnID = nullStringValue(turnID)
	ev.MessageID = nullStringValue(messageID)

	// Measurement blocks come back only when their anchor column is set.
	if tokInput.Valid {
		ev.Tokens = &domain.Tokens{
			Input:       util.NullInt64ToPtr(tokInput),
			Output:      util.NullInt64ToPtr(tokOutput),
			Total:       util.NullInt64ToPtr(tokTotal),
			ContextUsed: util.NullInt64ToPtr(tokCtxUsed),
			ContextMax:  util.NullInt64ToPtr(tokCtxMax),
			PercentUsed: util.NullFloat64ToPtr(tokPercent),
		}
	}
	if durationMs.Valid {
		ev.Timing = &domain.Timing{
			StartMs:    util.NullFloat64ToPtr(startMs),
			EndMs:      util.NullFloat64ToPtr(endMs),
			DurationMs: util.NullInt64ToPtr(durationMs),
			TTFTMs:     util.NullInt64ToPtr(ttftMs),
		}
	}
	if toolName.Valid {
		ev.Tool = &domain.Tool{
			Name:  toolName.String,
			Error: nullStringValue(toolError),
		}
	}
	if errType.Valid {
		ev.Error = &domain.ErrorInfo{
			Type:      errType.String,
			Message:   nullStringValue(errMessage),
			Retriable: util.NullBoolToPtr(errRetriable),
		}
	}
	if modelProvider.Valid {
		ev.Model = &domain.Model{
			Provider: modelProvider.String,
			ModelID:  nullStringValue(modelID),
		}
	}
	if costTotal.Valid {
		ev.Cost = &domain.Cost{
			InputCost:  util.NullFloat64ToPtr(costInput),
			OutputCost: util.NullFloat64ToPtr(costOutput),
			TotalCost:  util.NullFloat64ToPtr(costTotal),
		}
	}
	if payload.Valid {
		if err := json.Unmarshal([]byte(payload.String), &ev.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal payload for event %s: %w", ev.ID, err)
		}
	}

	return &ev, nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullStringValue(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}

func normalizeLimit(limit, def int64) int64 {
	if limit <= 0 {
		return def
	}
	return limit
}
