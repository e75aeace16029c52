package scheduler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/bus"
	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/notify"
	"github.com/hamed0406/netprobe/internal/repo"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

// Alerter follows the live sample stream and notifies when a configured
// target flips between up and down.
type Alerter struct {
	bus      *bus.Bus
	alertDB  repo.AlertStore
	notifier notify.Notifier
	cfg      AlerterConfig
	logger   *zap.Logger
	now      func() time.Time
}

func NewAlerter(
	b *bus.Bus,
	alertDB repo.AlertStore,
	notifier notify.Notifier,
	cfg AlerterConfig,
	logger *zap.Logger,
) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		bus:      b,
		alertDB:  alertDB,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

func (a *Alerter) Run(ctx context.Context) error {
	sub := a.bus.Subscribe(false)
	defer sub.Close()

	for {
		ev, ok := sub.Next(ctx)
		if !ok {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return nil
		}
		if err := a.handle(ctx, ev.Data); err != nil {
			a.logger.Warn("alert_failed",
				zap.String("target", alertKey(ev.Data)),
				zap.Error(err),
			)
		}
	}
}

func (a *Alerter) handle(ctx context.Context, s domain.Sample) error {
	// Ad-hoc probes carry no target id.
	if s.TargetID == "" {
		return nil
	}
	key := alertKey(s)
	up := s.Success

	rec, err := a.alertDB.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get alert state: %w", err)
	}

	// First sighting: remember the state, only a DOWN is worth telling.
	if rec == nil && up {
		return a.alertDB.Set(ctx, key, up, time.Time{})
	}
	if rec != nil && rec.LastState == up {
		return nil
	}

	now := a.now()
	cooled := true
	if rec != nil && rec.LastSentAt != nil {
		cooled = now.Sub(*rec.LastSentAt) >= a.cfg.Cooldown
	}

	downAlert := !up && cooled
	recoveryAlert := up && a.cfg.AlertOnRecovery // bypasses cooldown

	if !downAlert && !recoveryAlert {
		return a.alertDB.Set(ctx, key, up, time.Time{})
	}

	if err := a.notifier.Notify(ctx, alertFor(s)); err != nil {
		// Keep the old state so the next sample retries the notification.
		return fmt.Errorf("send alert: %w", err)
	}
	a.logger.Info("alert_sent", zap.String("target", key), zap.Bool("up", up))
	return a.alertDB.Set(ctx, key, up, now)
}

func alertKey(s domain.Sample) string {
	return string(s.Kind) + "/" + s.TargetID
}

func alertFor(s domain.Sample) notify.Alert {
	addr := "n/a"
	switch {
	case s.TCP != nil:
		addr = fmt.Sprintf("%s:%d", s.TCP.Host, s.TCP.Port)
	case s.DNS != nil:
		addr = fmt.Sprintf("%s %s via %s (%s)", s.DNS.FQDN, s.DNS.RecordType, s.DNS.Resolver, s.DNS.Rcode)
	case s.HTTP != nil:
		addr = fmt.Sprintf("%s %s", s.HTTP.Method, s.HTTP.URL)
		if s.HTTP.StatusCode != 0 {
			addr += fmt.Sprintf(" -> %d", s.HTTP.StatusCode)
		}
	}
	return notify.Alert{
		Target:    alertKey(s),
		Address:   addr,
		Down:      !s.Success,
		LatencyMS: s.LatencyMS,
		Reason:    s.Error,
		CheckedAt: s.Timestamp,
	}
}
