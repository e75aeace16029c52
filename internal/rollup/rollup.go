// Package rollup compresses raw samples into per-minute aggregates and
// prunes samples past the retention horizon.
package rollup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/metrics"
	"github.com/hamed0406/netprobe/internal/repo"
)

type Store interface {
	repo.SampleStore
	repo.AggregateStore
}

type Config struct {
	Interval  time.Duration
	Lookback  time.Duration
	Width     time.Duration
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:  time.Minute,
		Lookback:  2 * time.Hour,
		Width:     time.Minute,
		Retention: 14 * 24 * time.Hour,
	}
}

type Engine struct {
	store   Store
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func NewEngine(store Store, cfg Config, logger *zap.Logger, m *metrics.Metrics) *Engine {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = def.Lookback
	}
	if cfg.Width <= 0 {
		cfg.Width = def.Width
	}
	if cfg.Retention <= 0 {
		cfg.Retention = def.Retention
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, cfg: cfg, logger: logger, metrics: m, now: time.Now}
}

// Run ticks immediately and then every Interval until ctx is cancelled.
// Tick failures are logged and retried on the next interval.
func (e *Engine) Run(ctx context.Context) error {
	t := time.NewTicker(e.cfg.Interval)
	defer t.Stop()

	_ = e.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_ = e.runTick(ctx)
		}
	}
}

func (e *Engine) runTick(ctx context.Context) error {
	started := time.Now()
	err := e.Tick(ctx, e.now())
	e.metrics.RollupTick(err == nil)
	if err != nil {
		if ctx.Err() == nil {
			e.logger.Error("rollup_tick_failed", zap.Error(err))
		}
		return err
	}
	e.logger.Debug("rollup_tick_done", zap.Duration("took", time.Since(started)))
	return nil
}

// Tick recomputes every bucket in the lookback window for all kinds, then
// prunes. Pruning is skipped when any rollup step fails. The window starts on
// a bucket boundary so the oldest bucket is always recomputed whole.
func (e *Engine) Tick(ctx context.Context, now time.Time) error {
	since := Bucket(now.Add(-e.cfg.Lookback), e.cfg.Width)
	for _, kind := range domain.Kinds {
		samples, err := e.store.FetchSamples(ctx, kind, since, time.Time{}, repo.Filter{})
		if err != nil {
			return fmt.Errorf("fetch %s samples: %w", kind, err)
		}
		rows := Compute(kind, samples, e.cfg.Width)
		if len(rows) == 0 {
			continue
		}
		if err := e.store.UpsertAggregates(ctx, kind, rows); err != nil {
			return fmt.Errorf("upsert %s aggregates: %w", kind, err)
		}
		e.metrics.RollupRows(len(rows))
	}

	cutoff := now.Add(-e.cfg.Retention)
	for _, kind := range domain.Kinds {
		n, err := e.store.DeleteSamplesOlderThan(ctx, kind, cutoff)
		if err != nil {
			return fmt.Errorf("prune %s samples: %w", kind, err)
		}
		if n > 0 {
			e.metrics.SamplesPruned(n)
			e.logger.Info("samples_pruned", zap.String("kind", string(kind)), zap.Int64("rows", n))
		}
	}
	return nil
}
