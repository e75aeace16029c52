// Package bus is the in-process event fan-out hub.
//
// Each subscriber owns a bounded queue. Publish never blocks: when a queue is
// full the event is dropped for that subscriber only. New subscribers may ask
// for a replay of the most recent events, which is loaded into their queue in
// the same critical section that registers them, so no event is lost or
// duplicated between replay and live delivery.
package bus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/metrics"
	"github.com/hamed0406/netprobe/internal/ringbuf"
)

const (
	DefaultReplaySize = 500
	DefaultQueueSize  = 1000
)

type Bus struct {
	// pubMu orders publishers so every subscriber sees publish order.
	pubMu sync.Mutex

	mu     sync.Mutex
	replay *ringbuf.Ring[domain.Event]
	subs   map[*Subscription]struct{}
	closed bool

	queueSize int
	metrics   *metrics.Metrics
	now       func() time.Time
}

func New(replaySize, queueSize int, m *metrics.Metrics) *Bus {
	if replaySize < 1 {
		replaySize = DefaultReplaySize
	}
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	return &Bus{
		replay:    ringbuf.New[domain.Event](replaySize),
		subs:      make(map[*Subscription]struct{}),
		queueSize: queueSize,
		metrics:   m,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Publish stamps ev if it has no timestamp, records it for replay and offers
// it to every subscriber. It returns the stamped event.
func (b *Bus) Publish(ev domain.Event) domain.Event {
	b.pubMu.Lock()
	defer b.pubMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ev
	}
	if ev.TS.IsZero() {
		ev.TS = b.now()
	}
	b.replay.Append(ev)
	targets := make([]*Subscription, 0, len(b.subs))
	for s := range b.subs {
		targets = append(targets, s)
	}
	b.mu.Unlock()

	b.metrics.EventPublished()
	for _, s := range targets {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			b.metrics.EventDropped()
		}
	}
	return ev
}

// Subscribe registers a new subscriber. With replay set, its queue starts
// with the buffered history (trimmed to the queue size, newest kept).
func (b *Bus) Subscribe(replay bool) *Subscription {
	s := &Subscription{
		ch:   make(chan domain.Event, b.queueSize),
		done: make(chan struct{}),
		bus:  b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.closeDone()
		return s
	}
	if replay {
		for _, ev := range b.replay.Snapshot(b.queueSize) {
			s.ch <- ev
		}
	}
	b.subs[s] = struct{}{}
	b.metrics.SetSubscribers(len(b.subs))
	return s
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close detaches every subscriber and rejects further publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[*Subscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for s := range subs {
		s.closeDone()
	}
	b.metrics.SetSubscribers(0)
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	delete(b.subs, s)
	n := len(b.subs)
	b.mu.Unlock()
	b.metrics.SetSubscribers(n)
}

// Subscription is one consumer's view of the bus. The event channel is never
// closed; Done is closed when the subscription ends.
type Subscription struct {
	ch      chan domain.Event
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
	bus     *Bus
}

func (s *Subscription) C() <-chan domain.Event { return s.ch }

func (s *Subscription) Done() <-chan struct{} { return s.done }

// Dropped reports how many events were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Next blocks until an event arrives, ctx ends or the subscription closes.
func (s *Subscription) Next(ctx context.Context) (domain.Event, bool) {
	select {
	case ev := <-s.ch:
		return ev, true
	case <-s.done:
		return domain.Event{}, false
	case <-ctx.Done():
		return domain.Event{}, false
	}
}

// Close deregisters the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.closeDone()
}

func (s *Subscription) closeDone() {
	s.once.Do(func() { close(s.done) })
}
