package web

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/ports"
)

func (s *Server) handleQueryEvents(w http.ResponseWriter, r *http.Request) {
	events, err := s.events.QueryEvents(r.Context(), ports.QueryEventsOptions{
		EventType:  r.URL.Query().Get("type"),
		GatewayID:  r.URL.Query().Get("gatewayId"),
		SessionKey: r.URL.Query().Get("sessionKey"),
		StartTime:  queryTime(r, "startTime"),
		EndTime:    queryTime(r, "endTime"),
		Limit:      queryInt64(r, "limit", 100),
		Offset:     queryInt64(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to query events", zap.Error(err))
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
