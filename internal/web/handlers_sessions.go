package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
)

// sessionResponse is the API shape of a session aggregate, with the
// lifecycle status derived at response time.
type sessionResponse struct {
	SessionKey        string               `json:"sessionKey"`
	GatewayID         string               `json:"gatewayId"`
	ParentSessionKey  *string              `json:"parentSessionKey"`
	AgentID           *string              `json:"agentId"`
	Channel           *string              `json:"channel"`
	StartedAt         time.Time            `json:"startedAt"`
	LastEventAt       time.Time            `json:"lastEventAt"`
	EventCount        int64                `json:"eventCount"`
	TurnCount         int64                `json:"turnCount"`
	ErrorCount        int64                `json:"errorCount"`
	TotalCost         float64              `json:"totalCost"`
	MaxContextUsed    *int64               `json:"maxContextUsed"`
	ContextMax        *int64               `json:"contextMax"`
	MaxContextPercent *float64             `json:"maxContextPercent"`
	IsEnded           bool                 `json:"isEnded"`
	Status            domain.SessionStatus `json:"status"`
}

func toSessionResponse(s domain.SessionSummary, now time.Time) sessionResponse {
	return sessionResponse{
		SessionKey:        s.SessionKey,
		GatewayID:         s.GatewayID,
		ParentSessionKey:  s.ParentSessionKey,
		AgentID:           s.AgentID,
		Channel:           s.Channel,
		StartedAt:         s.StartedAt,
		LastEventAt:       s.LastEventAt,
		EventCount:        s.EventCount,
		TurnCount:         s.TurnCount,
		ErrorCount:        s.ErrorCount,
		TotalCost:         s.TotalCost,
		MaxContextUsed:    s.MaxContextUsed,
		ContextMax:        s.ContextMax,
		MaxContextPercent: s.MaxContextPercent,
		IsEnded:           s.IsEnded,
		Status:            s.Status(now),
	}
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.sessions.ListSessions(r.Context(), ports.ListSessionsOptions{
		GatewayID: r.URL.Query().Get("gatewayId"),
		Status:    r.URL.Query().Get("status"),
		Limit:     queryInt64(r, "limit", 50),
		Offset:    queryInt64(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list sessions", zap.Error(err))
		writeServerError(w, err)
		return
	}

	now := time.Now()
	responses := make([]sessionResponse, len(sessions))
	for i, sess := range sessions {
		responses[i] = toSessionResponse(sess, now)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": responses,
		"count":    len(responses),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	session, err := s.sessions.GetSession(r.Context(), key)
	if err != nil {
		s.logger.Error("failed to get session", zap.String("session_key", key), zap.Error(err))
		writeServerError(w, err)
		return
	}
	if session == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Session not found"})
		return
	}

	writeJSON(w, http.StatusOK, toSessionResponse(*session, time.Now()))
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	events, err := s.events.ListSessionEvents(r.Context(), key, ports.SessionEventsOptions{
		EventType: r.URL.Query().Get("eventType"),
		Limit:     queryInt64(r, "limit", 100),
		Offset:    queryInt64(r, "offset", 0),
	})
	if err != nil {
		s.logger.Error("failed to list session events", zap.String("session_key", key), zap.Error(err))
		writeServerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"count":  len(events),
	})
}
