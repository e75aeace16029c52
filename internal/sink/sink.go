// Package sink fans a probe sample out to the event bus, the recent-history
// ring, the persistence store and an optional external mirror.
package sink

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/bus"
	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/metrics"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/ringbuf"
)

// Mirror receives a copy of every emitted event.
type Mirror interface {
	Mirror(ctx context.Context, ev domain.Event) error
}

// Set is the group of sinks every scheduled sample goes to. Store and
// Mirror are optional. Samples are not modified after they are emitted.
type Set struct {
	Bus     *bus.Bus
	Ring    *ringbuf.Ring[domain.Event]
	Store   repo.SampleStore
	Mirror  Mirror
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// Emit delivers smp to every sink. Storage and mirror failures are logged
// and counted; only a malformed sample is returned as an error.
func (s *Set) Emit(ctx context.Context, smp domain.Sample) error {
	if err := smp.Validate(); err != nil {
		return err
	}
	ev := s.Publish(smp)

	var errs error
	if s.Store != nil {
		if err := s.Store.InsertSample(ctx, smp); err != nil {
			s.Metrics.SinkError("store")
			errs = multierr.Append(errs, fmt.Errorf("store: %w", err))
		}
	}
	if s.Mirror != nil {
		if err := s.Mirror.Mirror(ctx, ev); err != nil {
			s.Metrics.SinkError("mirror")
			errs = multierr.Append(errs, fmt.Errorf("mirror: %w", err))
		}
	}
	if errs != nil {
		s.logger().Warn("sink_write_error",
			zap.String("kind", string(smp.Kind)),
			zap.String("target_id", smp.TargetID),
			zap.Error(errs),
		)
	}
	return nil
}

// Publish sends smp to the live sinks only (bus and ring). Used for ad-hoc
// probes that are not part of the stored history.
func (s *Set) Publish(smp domain.Sample) domain.Event {
	ev := domain.NewEvent(smp)
	if s.Bus != nil {
		ev = s.Bus.Publish(ev)
	}
	if s.Ring != nil {
		s.Ring.Append(ev)
	}
	s.Metrics.ObserveSample(smp)
	return ev
}

func (s *Set) logger() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}
