package web

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
)

func (s *Server) handleMetricsSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := s.metrics.Summary(r.Context())
	if err != nil {
		s.logger.Error("failed to compute metrics summary", zap.Error(err))
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"totalSessions":     summary.TotalSessions,
		"activeSessions":    summary.ActiveSessions,
		"totalTurns":        summary.TotalTurns,
		"totalErrors":       summary.TotalErrors,
		"totalCost":         summary.TotalCost,
		"avgContextPercent": summary.AvgContextPercent,
		"avgDurationMs":     summary.AvgDurationMs,
		"turnsPerHour":      summary.TurnsPerHour,
		"errorsPerHour":     summary.ErrorsPerHour,
		"costPerHour":       summary.CostPerHour,
	})
}

func (s *Server) handleMetricsHourly(w http.ResponseWriter, r *http.Request) {
	hours := 24
	if raw := r.URL.Query().Get("hours"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			hours = v
		}
	}

	metrics, err := s.metrics.Hourly(r.Context(), hours)
	if err != nil {
		s.logger.Error("failed to compute hourly metrics", zap.Error(err))
		writeServerError(w, err)
		return
	}

	buckets := make([]map[string]any, len(metrics))
	for i, m := range metrics {
		buckets[i] = map[string]any{
			"hour":              m.Hour,
			"gatewayId":         m.GatewayID,
			"turns":             m.Turns,
			"errors":            m.Errors,
			"totalCost":         m.TotalCost,
			"avgContextPct":     m.AvgContextPct,
			"avgDurationMs":     m.AvgDurationMs,
			"uniqueSessions":    m.UniqueSessions,
			"totalInputTokens":  m.TotalInputTokens,
			"totalOutputTokens": m.TotalOutputTokens,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": buckets,
		"count":   len(buckets),
	})
}

func (s *Server) handleListGateways(w http.ResponseWriter, r *http.Request) {
	gateways, err := s.gateways.ListGateways(r.Context())
	if err != nil {
		s.logger.Error("failed to list gateways", zap.Error(err))
		writeServerError(w, err)
		return
	}

	responses := make([]map[string]any, len(gateways))
	for i, g := range gateways {
		responses[i] = map[string]any{
			"id":         g.ID,
			"name":       g.Name,
			"firstSeen":  g.FirstSeen.Format(time.RFC3339),
			"lastSeen":   g.LastSeen.Format(time.RFC3339),
			"eventCount": g.EventCount,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"gateways": responses,
		"count":    len(responses),
	})
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var resolved *bool
	switch r.URL.Query().Get("resolved") {
	case "true":
		v := true
		resolved = &v
	case "false":
		v := false
		resolved = &v
	}

	alerts, err := s.alerts.ListAlerts(r.Context(), ports.ListAlertsOptions{
		Resolved: resolved,
		Limit:    queryInt64(r, "limit", 50),
	})
	if err != nil {
		s.logger.Error("failed to list alerts", zap.Error(err))
		writeServerError(w, err)
		return
	}
	if alerts == nil {
		alerts = []domain.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}
