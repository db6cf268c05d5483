package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/openclaw/observatory/internal/domain"
	"github.com/openclaw/observatory/internal/ports"
)

type fakeEventRepo struct {
	inserted  [][]domain.Event
	insertErr error
}

func (f *fakeEventRepo) InsertBatch(ctx context.Context, events []domain.Event) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, events)
	return nil
}

func (f *fakeEventRepo) QueryEvents(ctx context.Context, opts ports.QueryEventsOptions) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListSessionEvents(ctx context.Context, sessionKey string, opts ports.SessionEventsOptions) ([]domain.Event, error) {
	return nil, nil
}

func (f *fakeEventRepo) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

type recordingChecker struct {
	events []domain.Event
}

func (r *recordingChecker) CheckEvent(ctx context.Context, ev domain.Event) {
	r.events = append(r.events, ev)
}

type recordingBroadcaster struct {
	events []domain.Event
}

func (r *recordingBroadcaster) BroadcastEvent(ev domain.Event) {
	r.events = append(r.events, ev)
}

func TestIngestPersistsAndFansOut(t *testing.T) {
	repo := &fakeEventRepo{}
	checker := &recordingChecker{}
	hub := &recordingBroadcaster{}
	svc := NewService(repo, checker, hub, zap.NewNop(), nil)

	batch := []EventInput{validInput(), validInput(), validInput()}
	count, err := svc.Ingest(context.Background(), batch)
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if len(repo.inserted) != 1 || len(repo.inserted[0]) != 3 {
		t.Errorf("expected one batch of 3 inserts, got %v", repo.inserted)
	}
	if len(checker.events) != 3 {
		t.Errorf("checker saw %d events, want 3", len(checker.events))
	}
	if len(hub.events) != 3 {
		t.Errorf("hub saw %d events, want 3", len(hub.events))
	}
}

func TestIngestRejectsInvalidBatchBeforePersisting(t *testing.T) {
	repo := &fakeEventRepo{}
	checker := &recordingChecker{}
	svc := NewService(repo, checker, nil, zap.NewNop(), nil)

	// One bad event poisons the whole batch.
	_, err := svc.Ingest(context.Background(), []EventInput{validInput(), {}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(repo.inserted) != 0 {
		t.Error("invalid batch must not reach the repository")
	}
	if len(checker.events) != 0 {
		t.Error("invalid batch must not reach the alert engine")
	}
}

func TestIngestStopsFanOutOnPersistFailure(t *testing.T) {
	repo := &fakeEventRepo{insertErr: errors.New("disk full")}
	checker := &recordingChecker{}
	hub := &recordingBroadcaster{}
	svc := NewService(repo, checker, hub, zap.NewNop(), nil)

	_, err := svc.Ingest(context.Background(), []EventInput{validInput()})
	if err == nil {
		t.Fatal("expected persist failure to surface")
	}
	if len(checker.events) != 0 || len(hub.events) != 0 {
		t.Error("unpersisted events must not fan out")
	}
}

func TestIngestAssignsSharedReceiptTime(t *testing.T) {
	repo := &fakeEventRepo{}
	svc := NewService(repo, nil, nil, zap.NewNop(), nil)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	if _, err := svc.Ingest(context.Background(), []EventInput{validInput(), validInput()}); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	for _, ev := range repo.inserted[0] {
		if !ev.Timestamp.Equal(now) {
			t.Errorf("Timestamp = %v, want %v", ev.Timestamp, now)
		}
		if ev.ID == "" {
			t.Error("expected assigned event ID")
		}
	}
}
