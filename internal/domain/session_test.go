package domain

import (
	"testing"
	"time"
)

func TestSessionStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		isEnded   bool
		errCount  int64
		lastEvent time.Time
		want      SessionStatus
	}{
		{"recent activity", false, 0, now.Add(-30 * time.Second), StatusActive},
		{"stale", false, 0, now.Add(-10 * time.Minute), StatusIdle},
		{"exactly at threshold", false, 0, now.Add(-IdleThreshold), StatusActive},
		{"error takes precedence over idle", false, 1, now.Add(-10 * time.Minute), StatusError},
		{"ended takes precedence over error", true, 3, now.Add(-time.Minute), StatusEnded},
		{"ended while stale", true, 0, now.Add(-time.Hour), StatusEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SessionSummary{
				IsEnded:     tt.isEnded,
				ErrorCount:  tt.errCount,
				LastEventAt: tt.lastEvent,
			}
			if got := s.Status(now); got != tt.want {
				t.Errorf("Status() = %q, want %q", got, tt.want)
			}
		})
	}
}
