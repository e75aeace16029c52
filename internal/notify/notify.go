package notify

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Alert is a state transition of one configured target.
type Alert struct {
	Target    string // "<kind>/<id>"
	Address   string
	Down      bool
	LatencyMS float64
	Reason    string
	CheckedAt time.Time
}

func (a Alert) Title() string {
	if a.Down {
		return "🔴 Target DOWN"
	}
	return "🟢 Target RECOVERED"
}

// Text renders the alert as plain lines for channels without formatting.
func (a Alert) Text() string {
	reason := a.Reason
	if reason == "" {
		reason = "ok"
	}
	return fmt.Sprintf(
		"Target: %s\nAddress: %s\nLatency: %.0f ms\nReason: %s\nChecked: %s",
		a.Target, a.Address, a.LatencyMS, reason, a.CheckedAt.UTC().Format(time.RFC3339),
	)
}

type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// Multi delivers to every notifier and reports all failures.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, a Alert) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Notify(ctx, a))
	}
	return err
}

// Log writes alerts to the structured log.
type Log struct {
	Logger *zap.Logger
}

func NewLog(l *zap.Logger) *Log { return &Log{Logger: l} }

func (l *Log) Notify(_ context.Context, a Alert) error {
	l.Logger.Warn("alert",
		zap.String("target", a.Target),
		zap.String("address", a.Address),
		zap.Bool("down", a.Down),
		zap.Float64("latency_ms", a.LatencyMS),
		zap.String("reason", a.Reason),
		zap.Time("checked_at", a.CheckedAt),
	)
	return nil
}
