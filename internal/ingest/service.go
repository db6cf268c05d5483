// Package ingest is the ingestion boundary: it validates incoming
// event batches, persists them atomically, and hands each event to the
// alert engine and the broadcast hub.
package ingest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
	"github.com/openclaw/observatory/internal/telemetry"
)

const persistTimeout = 10 * time.Second

// AlertChecker evaluates alert rules against one ingested event.
type AlertChecker interface {
	CheckEvent(ctx context.Context, ev domain.Event)
}

// Broadcaster pushes ingested events to connected clients.
type Broadcaster interface {
	BroadcastEvent(ev domain.Event)
}

// Service orchestrates the ingestion pipeline.
type Service struct {
	events    ports.EventRepository
	checker   AlertChecker
	hub       Broadcaster
	validator *Validator
	metrics   telemetry.Recorder
	logger    *zap.Logger

	now func() time.Time
}

func NewService(events ports.EventRepository, checker AlertChecker, hub Broadcaster, logger *zap.Logger, metrics telemetry.Recorder) *Service {
	if metrics == nil {
		metrics = telemetry.Noop{}
	}
	return &Service{
		events:    events,
		checker:   checker,
		hub:       hub,
		validator: NewValidator(),
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}
}

// Ingest validates and persists a batch, then runs the per-event
// fan-out. The batch commits all-or-nothing; once committed, the
// returned count always equals the batch size regardless of what the
// best-effort fan-out does.
func (s *Service) Ingest(ctx context.Context, inputs []EventInput) (int, error) {
	if err := s.validator.ValidateBatch(inputs); err != nil {
		return 0, err
	}

	now := s.now().UTC()
	events := make([]domain.Event, len(inputs))
	for i := range inputs {
		events[i] = Normalize(inputs[i], now)
	}

	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	defer cancel()
	if err := s.events.InsertBatch(persistCtx, events); err != nil {
		return 0, fmt.Errorf("failed to persist event batch: %w", err)
	}

	for _, ev := range events {
		s.metrics.EventsIngested(ctx, 1, ev.GatewayID)
		if s.checker != nil {
			s.checker.CheckEvent(ctx, ev)
		}
		if s.hub != nil {
			s.hub.BroadcastEvent(ev)
		}
	}

	return len(events), nil
}
