package repo

import (
	"context"
	"time"
)

// AlertRecord is the last up/down state seen for a target key
// ("<kind>/<id>") and when a notification was last sent for it.
type AlertRecord struct {
	TargetKey  string
	LastState  bool
	LastSentAt *time.Time
}

// AlertStore persists alert state between restarts.
type AlertStore interface {
	// Get returns nil, nil if there's no record yet.
	Get(ctx context.Context, targetKey string) (*AlertRecord, error)
	// Set upserts the record. If sentAt.IsZero() the previous send time is
	// kept, so cooldowns survive unsent state flips.
	Set(ctx context.Context, targetKey string, lastState bool, sentAt time.Time) error
}
