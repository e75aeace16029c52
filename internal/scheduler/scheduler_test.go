package scheduler

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/probe"
	"github.com/hamed0406/netprobe/internal/targets"
)

// ---- shared helpers ----

type checkerFunc func(ctx context.Context, t domain.Target) domain.Sample

func (f checkerFunc) Check(ctx context.Context, t domain.Target) domain.Sample { return f(ctx, t) }

func okChecker() probe.Checker {
	return checkerFunc(func(ctx context.Context, t domain.Target) domain.Sample {
		s := probe.Base(t)
		s.Success = true
		s.LatencyMS = 1
		return s
	})
}

type recordingSink struct {
	mu      sync.Mutex
	samples []domain.Sample
}

func (r *recordingSink) Emit(ctx context.Context, s domain.Sample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
	return nil
}

func (r *recordingSink) forTarget(id string) []domain.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Sample
	for _, s := range r.samples {
		if s.TargetID == id {
			out = append(out, s)
		}
	}
	return out
}

func (r *recordingSink) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.samples)
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func tcp(id string) domain.TCPTarget {
	return domain.TCPTarget{ID: id, Host: "127.0.0.1", Port: 9, IntervalSec: 0.5}
}

func startScheduler(t *testing.T, s *Scheduler) (cancel func() error) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	var once sync.Once
	var runErr error
	cancel = func() error {
		once.Do(func() {
			stop()
			select {
			case runErr = <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("scheduler did not stop")
			}
		})
		return runErr
	}
	t.Cleanup(func() { _ = cancel() })
	return cancel
}

func testOptions() Options {
	o := DefaultOptions()
	o.PollInterval = 20 * time.Millisecond
	o.MinDelay = 50 * time.Millisecond
	return o
}

// ---- tests ----

func TestScheduler_FollowsConfigVersions(t *testing.T) {
	reg := targets.NewRegistry(targets.State{TCP: []domain.TCPTarget{tcp("a"), tcp("b")}})
	sink := &recordingSink{}
	s := New(zap.NewNop(), reg, okChecker(), sink, nil, testOptions())
	stop := startScheduler(t, s)

	eventually(t, 2*time.Second, func() bool {
		return s.Generation() == 1 && slices.Equal(s.Workers(), []string{"tcp/a", "tcp/b"})
	}, "first generation")

	if _, err := reg.AddTCP(tcp("c")); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Remove(domain.KindTCP, "a"); err != nil {
		t.Fatal(err)
	}

	eventually(t, 2*time.Second, func() bool {
		return s.Generation() == 3 && slices.Equal(s.Workers(), []string{"tcp/b", "tcp/c"})
	}, "generation after reconfigure")
	eventually(t, 2*time.Second, func() bool {
		return len(sink.forTarget("c")) > 0
	}, "new target probed")

	// The retired worker for "a" has fully stopped once the new generation is up.
	before := len(sink.forTarget("a"))
	time.Sleep(700 * time.Millisecond)
	if after := len(sink.forTarget("a")); after != before {
		t.Fatalf("removed target still probed: %d -> %d samples", before, after)
	}

	if err := stop(); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v, want context.Canceled", err)
	}
	n := sink.len()
	time.Sleep(100 * time.Millisecond)
	if sink.len() != n {
		t.Fatal("samples emitted after Run returned")
	}
}

func TestScheduler_SameVersionKeepsGeneration(t *testing.T) {
	reg := targets.NewRegistry(targets.State{TCP: []domain.TCPTarget{tcp("a")}})
	var starts atomic.Int32
	checker := checkerFunc(func(ctx context.Context, t domain.Target) domain.Sample {
		starts.Add(1)
		s := probe.Base(t)
		s.Success = true
		return s
	})
	s := New(zap.NewNop(), reg, checker, &recordingSink{}, nil, testOptions())
	startScheduler(t, s)

	eventually(t, time.Second, func() bool { return starts.Load() >= 1 }, "first probe")
	// Many polls pass within this window; a rebuilt generation would probe
	// immediately on every poll.
	time.Sleep(300 * time.Millisecond)
	if got := starts.Load(); got > 2 {
		t.Fatalf("probed %d times in 300ms with a 500ms interval", got)
	}
}

func TestScheduler_PanicBecomesFailedSample(t *testing.T) {
	reg := targets.NewRegistry(targets.State{TCP: []domain.TCPTarget{tcp("boom"), tcp("fine")}})
	checker := checkerFunc(func(ctx context.Context, t domain.Target) domain.Sample {
		if t.TargetID() == "boom" {
			panic("kaboom")
		}
		s := probe.Base(t)
		s.Success = true
		return s
	})
	sink := &recordingSink{}
	s := New(zap.NewNop(), reg, checker, sink, nil, testOptions())
	startScheduler(t, s)

	eventually(t, 3*time.Second, func() bool { return len(sink.forTarget("boom")) >= 2 }, "worker survives panic")
	for _, smp := range sink.forTarget("boom") {
		if smp.Success || !strings.Contains(smp.Error, "kaboom") {
			t.Fatalf("unexpected sample after panic: %+v", smp)
		}
		if smp.TCP == nil || smp.TCP.Host != "127.0.0.1" {
			t.Fatalf("panic sample lost its target detail: %+v", smp)
		}
	}
	if len(sink.forTarget("fine")) == 0 {
		t.Fatal("healthy target not probed")
	}
}

func TestScheduler_DropsFailureCausedByCancellation(t *testing.T) {
	reg := targets.NewRegistry(targets.State{TCP: []domain.TCPTarget{tcp("slow")}})
	entered := make(chan struct{}, 1)
	checker := checkerFunc(func(ctx context.Context, t domain.Target) domain.Sample {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		s := probe.Base(t)
		s.Error = ctx.Err().Error()
		return s
	})
	opts := testOptions()
	opts.TimeoutCap = time.Minute
	sink := &recordingSink{}
	s := New(zap.NewNop(), reg, checker, sink, nil, opts)
	stop := startScheduler(t, s)

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("probe never started")
	}
	_ = stop()
	if n := sink.len(); n != 0 {
		t.Fatalf("want no samples from a cancelled probe, got %d", n)
	}
}

func TestScheduler_ProbeTimeoutBoundedByInterval(t *testing.T) {
	reg := targets.NewRegistry(targets.State{TCP: []domain.TCPTarget{tcp("a")}})
	got := make(chan time.Duration, 1)
	checker := checkerFunc(func(ctx context.Context, t domain.Target) domain.Sample {
		if dl, ok := ctx.Deadline(); ok {
			select {
			case got <- time.Until(dl):
			default:
			}
		}
		return probe.Base(t)
	})
	s := New(zap.NewNop(), reg, checker, &recordingSink{}, nil, testOptions())
	startScheduler(t, s)

	select {
	case d := <-got:
		if d > 500*time.Millisecond {
			t.Fatalf("probe deadline %s exceeds the 500ms interval", d)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no probe with a deadline")
	}
}

func TestScheduler_NextDelay(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, Options{MinDelay: 200 * time.Millisecond, JitterFraction: 0.1})
	interval := 5 * time.Second

	cases := []struct {
		name    string
		rand    float64
		elapsed time.Duration
		want    time.Duration
	}{
		{"no jitter", 0.5, time.Second, 4 * time.Second},
		{"negative jitter", 0, time.Second, 3500 * time.Millisecond},
		{"positive jitter", 1, time.Second, 4500 * time.Millisecond},
		{"slow probe floors at min delay", 0, 10 * time.Second, 200 * time.Millisecond},
		{"slow probe with positive jitter", 1, 10 * time.Second, 700 * time.Millisecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := tc.rand
			s.rand = func() float64 { return r }
			if got := s.nextDelay(interval, tc.elapsed); got != tc.want {
				t.Fatalf("nextDelay = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestScheduler_NextDelayStaysInJitterBand(t *testing.T) {
	s := New(nil, nil, nil, nil, nil, Options{MinDelay: 200 * time.Millisecond, JitterFraction: 0.1})
	for i := 0; i < 1000; i++ {
		d := s.nextDelay(2*time.Second, 0)
		if d < 1800*time.Millisecond || d > 2200*time.Millisecond {
			t.Fatalf("delay %s outside 2s±10%%", d)
		}
	}
}
