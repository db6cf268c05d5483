package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/config"
	"github.com/openclaw/observatory/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail agent transcripts and forward turns to the observatory",
	Long: `Watch a gateway's transcript directory and forward completed turns
to the observatory's ingestion endpoint.

Examples:
  TRANSCRIPTS_DIR=~/.openclaw/agents/main/sessions observatory watch`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWatcher()
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

	client := watcher.NewClient(cfg.ObservatoryURL, cfg.AuthToken)
	collector, err := watcher.NewCollector(*cfg, client, logger)
	if err != nil {
		return err
	}

	logger.Info("watching transcripts",
		zap.String("observatory", cfg.ObservatoryURL),
		zap.String("gateway_id", cfg.GatewayID))

	if err := collector.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
