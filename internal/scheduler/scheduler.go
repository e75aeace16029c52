package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/metrics"
	"github.com/hamed0406/netprobe/internal/probe"
	"github.com/hamed0406/netprobe/internal/targets"
)

// Source is the versioned configuration the scheduler follows.
type Source interface {
	Snapshot() targets.State
	Changed() <-chan struct{}
}

// Emitter receives every sample a worker produces.
type Emitter interface {
	Emit(ctx context.Context, s domain.Sample) error
}

type Options struct {
	// PollInterval bounds how long a configuration change can go unnoticed
	// when no change signal arrives.
	PollInterval   time.Duration
	MinDelay       time.Duration
	JitterFraction float64
	TimeoutCap     time.Duration
	EmitTimeout    time.Duration
}

func DefaultOptions() Options {
	return Options{
		PollInterval:   time.Second,
		MinDelay:       200 * time.Millisecond,
		JitterFraction: 0.1,
		TimeoutCap:     2 * time.Second,
		EmitTimeout:    5 * time.Second,
	}
}

// Scheduler runs one worker per configured target. Every configuration
// version gets its own generation of workers; a new generation starts only
// after the previous one has fully stopped.
type Scheduler struct {
	Logger  *zap.Logger
	Source  Source
	Checker probe.Checker
	Sink    Emitter
	Metrics *metrics.Metrics
	Opts    Options

	mu   sync.Mutex
	gen  *generation
	rand func() float64
}

type generation struct {
	version int64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	keys    []string
}

func New(
	logger *zap.Logger,
	src Source,
	checker probe.Checker,
	sink Emitter,
	m *metrics.Metrics,
	opts Options,
) *Scheduler {
	def := DefaultOptions()
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.MinDelay <= 0 {
		opts.MinDelay = def.MinDelay
	}
	if opts.JitterFraction < 0 {
		opts.JitterFraction = 0
	}
	if opts.TimeoutCap <= 0 {
		opts.TimeoutCap = def.TimeoutCap
	}
	if opts.EmitTimeout <= 0 {
		opts.EmitTimeout = def.EmitTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Logger:  logger,
		Source:  src,
		Checker: checker,
		Sink:    sink,
		Metrics: m,
		Opts:    opts,
		rand:    rand.Float64,
	}
}

// Run starts the first generation immediately, then follows configuration
// changes until ctx is cancelled. It stops all workers before returning.
func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Opts.PollInterval)
	defer t.Stop()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			s.stopGeneration()
			s.Logger.Info("scheduler_stopped")
			return ctx.Err()
		case <-t.C:
			s.reconcile(ctx)
		case <-s.Source.Changed():
			s.reconcile(ctx)
		}
	}
}

// Generation returns the configuration version of the running workers, or
// 0 before the first start.
func (s *Scheduler) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return 0
	}
	return s.gen.version
}

// Workers lists the running workers as "<kind>/<id>", sorted.
func (s *Scheduler) Workers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen == nil {
		return nil
	}
	return append([]string(nil), s.gen.keys...)
}

func (s *Scheduler) reconcile(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	st := s.Source.Snapshot()
	if s.Generation() == st.Version {
		return
	}
	s.stopGeneration()
	s.startGeneration(ctx, st)
}

func (s *Scheduler) startGeneration(parent context.Context, st targets.State) {
	ctx, cancel := context.WithCancel(parent)
	g := &generation{version: st.Version, cancel: cancel}

	list := st.Targets()
	for _, t := range list {
		g.keys = append(g.keys, key(t))
		g.wg.Add(1)
		go func(t domain.Target) {
			defer g.wg.Done()
			s.runWorker(ctx, t)
		}(t)
	}
	sort.Strings(g.keys)

	s.mu.Lock()
	s.gen = g
	s.mu.Unlock()

	s.Metrics.SetGeneration(st.Version, len(list))
	s.Logger.Info("scheduler_generation_started",
		zap.Int64("version", st.Version),
		zap.Int("workers", len(list)),
	)
}

// stopGeneration cancels the running generation and waits for every worker
// to return.
func (s *Scheduler) stopGeneration() {
	s.mu.Lock()
	g := s.gen
	s.mu.Unlock()
	if g == nil {
		return
	}
	started := time.Now()
	g.cancel()
	g.wg.Wait()
	s.Logger.Info("scheduler_generation_stopped",
		zap.Int64("version", g.version),
		zap.Duration("took", time.Since(started)),
	)
}

func (s *Scheduler) runWorker(ctx context.Context, t domain.Target) {
	interval := t.Interval()
	timeout := min(s.Opts.TimeoutCap, interval)

	for {
		start := time.Now()
		smp := s.probeOnce(ctx, t, timeout)

		// A failure produced by the generation being retired says nothing
		// about the target.
		if ctx.Err() != nil && !smp.Success {
			return
		}
		s.emit(ctx, t, smp)
		if ctx.Err() != nil {
			return
		}

		timer := time.NewTimer(s.nextDelay(interval, time.Since(start)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (s *Scheduler) probeOnce(ctx context.Context, t domain.Target, timeout time.Duration) (smp domain.Sample) {
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			smp = probe.Base(t)
			smp.LatencyMS = float64(time.Since(start)) / float64(time.Millisecond)
			smp.Error = fmt.Sprintf("probe panic: %v", r)
			s.Logger.Error("scheduler_probe_panic",
				zap.String("target", key(t)),
				zap.Any("panic", r),
			)
		}
	}()
	return s.Checker.Check(pctx, t)
}

// emit is not tied to the generation context so a sample taken just before
// retirement is still stored.
func (s *Scheduler) emit(ctx context.Context, t domain.Target, smp domain.Sample) {
	ectx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Opts.EmitTimeout)
	defer cancel()
	if err := s.Sink.Emit(ectx, smp); err != nil {
		s.Logger.Error("scheduler_emit_error",
			zap.String("target", key(t)),
			zap.Error(err),
		)
		return
	}
	s.Logger.Debug("scheduler_probed",
		zap.String("target", key(t)),
		zap.Bool("success", smp.Success),
		zap.Float64("latency_ms", smp.LatencyMS),
		zap.String("error", smp.Error),
	)
}

// nextDelay is interval minus the probe's own time, floored at MinDelay,
// plus a symmetric jitter of JitterFraction*interval.
func (s *Scheduler) nextDelay(interval, elapsed time.Duration) time.Duration {
	d := max(interval-elapsed, s.Opts.MinDelay)
	jitter := float64(interval) * s.Opts.JitterFraction * (2*s.rand() - 1)
	d += time.Duration(jitter)
	return max(d, s.Opts.MinDelay)
}

func key(t domain.Target) string {
	return string(t.TargetKind()) + "/" + t.TargetID()
}
