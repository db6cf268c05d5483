package web

import (
	"net/http"
	"time"
)

const version = "1.0.0"

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbErr := s.db.PingContext(r.Context())

	health := map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   version,
		"checks": map[string]any{
			"database":         dbErr == nil,
			"websocketClients": s.hub.ClientCount(),
		},
	}

	status := http.StatusOK
	if dbErr != nil {
		health["status"] = "unhealthy"
		health["error"] = dbErr.Error()
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, health)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.db.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"alive": true})
}
