package domain

import "time"

// Gateway is a known event producer, tracked by last-seen bookkeeping
// on every ingested event.
type Gateway struct {
	ID         string
	Name       *string
	FirstSeen  time.Time
	LastSeen   time.Time
	EventCount int64
}
