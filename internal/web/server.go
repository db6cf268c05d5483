// Package web wires the HTTP surface: the ingestion endpoint, the
// query/metrics API, the live stream, and the static dashboard.
package web

import (
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/config"
	"github.com/openclaw/observatory/internal/ingest"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/stream"
)

// Server holds the handler dependencies behind the router.
type Server struct {
	logger   *zap.Logger
	db       *sql.DB
	sessions ports.SessionRepository
	events   ports.EventRepository
	alerts   ports.AlertRepository
	gateways ports.GatewayRepository
	metrics  ports.MetricsRepository
	hub      *stream.Hub
}

// Deps are the collaborators the HTTP surface exposes.
type Deps struct {
	DB       *sql.DB
	Sessions ports.SessionRepository
	Events   ports.EventRepository
	Alerts   ports.AlertRepository
	Gateways ports.GatewayRepository
	Metrics  ports.MetricsRepository
	Hub      *stream.Hub
	Ingest   *ingest.Handler
	Stream   *stream.Handler
}

// NewHTTPServer builds the chi router and returns the configured
// http.Server.
func NewHTTPServer(cfg *config.Server, deps Deps, logger *zap.Logger) *http.Server {
	s := &Server{
		logger:   logger,
		db:       deps.DB,
		sessions: deps.Sessions,
		events:   deps.Events,
		alerts:   deps.Alerts,
		gateways: deps.Gateways,
		metrics:  deps.Metrics,
		hub:      deps.Hub,
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(RequireBearer(cfg.AuthToken))
			r.Post("/ingest", deps.Ingest.ServeIngest)
		})

		r.Get("/stream", deps.Stream.ServeStream)

		r.Get("/sessions", s.handleListSessions)
		r.Get("/sessions/{key}", s.handleGetSession)
		r.Get("/sessions/{key}/events", s.handleSessionEvents)
		r.Get("/events", s.handleQueryEvents)
		r.Get("/metrics/summary", s.handleMetricsSummary)
		r.Get("/metrics/hourly", s.handleMetricsHourly)
		r.Get("/gateways", s.handleListGateways)
		r.Get("/alerts", s.handleListAlerts)
		r.Get("/health", s.handleHealth)
		r.Get("/ready", s.handleReady)
		r.Get("/live", s.handleLive)
	})

	// The dashboard is a prebuilt SPA: serve its assets and fall back
	// to index.html for client-side routes.
	r.NotFound(spaHandler(cfg.StaticDir))

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler: r,
	}
}

func spaHandler(staticDir string) http.HandlerFunc {
	fileServer := http.FileServer(http.Dir(staticDir))
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Not found"})
			return
		}

		path := filepath.Join(staticDir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(staticDir, "index.html"))
	}
}
