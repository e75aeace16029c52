package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netprobe/internal/repo"
)

func (s *Store) Get(ctx context.Context, targetKey string) (*repo.AlertRecord, error) {
	const q = `SELECT last_state, last_sent_at FROM alerts WHERE target_key=$1`
	r := repo.AlertRecord{TargetKey: targetKey}
	var lastSent null.Time
	err := s.db.QueryRowContext(ctx, q, targetKey).Scan(&r.LastState, &lastSent)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	r.LastSentAt = lastSent.Ptr()
	return &r, nil
}

func (s *Store) Set(ctx context.Context, targetKey string, lastState bool, sentAt time.Time) error {
	const q = `
		INSERT INTO alerts (target_key, last_state, last_sent_at)
		VALUES ($1,$2,$3)
		ON CONFLICT (target_key)
		DO UPDATE SET last_state=EXCLUDED.last_state,
		              last_sent_at=COALESCE(EXCLUDED.last_sent_at, alerts.last_sent_at)
	`
	ts := null.NewTime(sentAt.UTC(), !sentAt.IsZero())
	if _, err := s.db.ExecContext(ctx, q, targetKey, lastState, ts); err != nil {
		return fmt.Errorf("set alert: %w", err)
	}
	return nil
}
