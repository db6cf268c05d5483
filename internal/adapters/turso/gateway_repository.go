package turso

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/util"
)

type GatewayRepository struct {
	db *sql.DB
}

func NewGatewayRepository(db *sql.DB) *GatewayRepository {
	return &GatewayRepository{db: db}
}

func (r *GatewayRepository) ListGateways(ctx context.Context) ([]domain.Gateway, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, first_seen, last_seen, event_count
		FROM gateways
		ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list gateways: %w", err)
	}
	defer rows.Close()

	gateways := make([]domain.Gateway, 0)
	for rows.Next() {
		var g domain.Gateway
		var name sql.NullString
		var firstSeen, lastSeen string
		if err := rows.Scan(&g.ID, &name, &firstSeen, &lastSeen, &g.EventCount); err != nil {
			return nil, fmt.Errorf("failed to scan gateway: %w", err)
		}
		g.Name = util.NullStringToPtr(name)
		if g.FirstSeen, err = parseTimestamp(firstSeen); err != nil {
			return nil, err
		}
		if g.LastSeen, err = parseTimestamp(lastSeen); err != nil {
			return nil, err
		}
		gateways = append(gateways, g)
	}
	return gateways, rows.Err()
}
