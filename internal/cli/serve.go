package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/adapters/turso"
	"github.com/openclaw/observatory/internal/alerts"
	"github.com/openclaw/observatory/internal/config"
	"github.com/openclaw/observatory/internal/ingest"
	"github.com/openclaw/observatory/internal/migrate"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/stream"
	"github.com/openclaw/observatory/internal/telemetry"
	"github.com/openclaw/observatory/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the observatory server",
	Long: `Start the observatory server: ingestion endpoint, query API,
WebSocket stream, alert engine and dashboard.

Examples:
  observatory serve                 # Listen on the configured port (default 3200)
  PORT=8080 observatory serve       # Listen on port 8080`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("shutting down")
		cancel()
	}()

	db, err := turso.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if err := migrate.Up(ctx, db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	var recorder telemetry.Recorder = telemetry.Noop{}
	if cfg.OTELEndpoint != "" {
		exporter, err := telemetry.NewExporter(ctx, cfg.OTELEndpoint, cfg.OTELInsecure)
		if err != nil {
			return fmt.Errorf("starting metrics exporter: %w", err)
		}
		defer func() {
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutCancel()
			if err := exporter.Shutdown(shutCtx); err != nil {
				logger.Warn("metrics exporter shutdown", zap.Error(err))
			}
		}()
		recorder = exporter
	}

	events := turso.NewEventRepository(db)
	sessions := turso.NewSessionRepository(db)
	alertRepo := turso.NewAlertRepository(db)
	gateways := turso.NewGatewayRepository(db)
	metrics := turso.NewMetricsRepository(db)

	hub := stream.NewHub(logger)
	engine := alerts.NewEngine(alertRepo, hub, cfg.AlertWebhookURL, logger, recorder)
	ingestSvc := ingest.NewService(events, engine, hub, logger, recorder)

	if cfg.RetentionDays > 0 {
		go runRetention(ctx, events, cfg.RetentionDays, logger)
	}

	srv := web.NewHTTPServer(cfg, web.Deps{
		DB:       db,
		Sessions: sessions,
		Events:   events,
		Alerts:   alertRepo,
		Gateways: gateways,
		Metrics:  metrics,
		Hub:      hub,
		Ingest:   ingest.NewHandler(ingestSvc, logger),
		Stream:   stream.NewHandler(hub, logger),
	}, logger)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("observatory listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	return srv.Shutdown(shutCtx)
}

// runRetention prunes events past the retention window once a day,
// starting with an immediate pass.
func runRetention(ctx context.Context, events ports.EventRepository, days int, logger *zap.Logger) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	prune := func() {
		cutoff := time.Now().UTC().AddDate(0, 0, -days)
		pruneCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		n, err := events.DeleteEventsBefore(pruneCtx, cutoff)
		if err != nil {
			logger.Warn("pruning events", zap.Error(err))
			return
		}
		if n > 0 {
			logger.Info("pruned events", zap.Int64("count", n), zap.Time("cutoff", cutoff))
		}
	}

	prune()
	for {
		select {
		case <-ticker.C:
			prune()
		case <-ctx.Done():
			return
		}
	}
}
