package ingest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Handler exposes the ingestion boundary over HTTP.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// ServeIngest handles POST /api/v1/ingest. Callers only ever see
// validation or persistence failures; the downstream fan-out is
// invisible best-effort.
func (h *Handler) ServeIngest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid request body",
			"message": err.Error(),
		})
		return
	}

	count, err := h.svc.Ingest(r.Context(), req.Events)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "Invalid request body",
				"details": verr.Violations,
			})
			return
		}
		h.logger.Error("failed to ingest events", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "Internal server error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"received": count,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
