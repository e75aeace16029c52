package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
)

var _ repo.Store = (*Store)(nil)

// Store keeps samples, aggregates and alert state in process memory.
type Store struct {
	mu         sync.RWMutex
	samples    map[domain.Kind][]domain.Sample
	aggregates map[domain.Kind]map[domain.BucketKey]domain.AggregateRow
	alerts     map[string]repo.AlertRecord
}

func New() *Store {
	return &Store{
		samples:    make(map[domain.Kind][]domain.Sample),
		aggregates: make(map[domain.Kind]map[domain.BucketKey]domain.AggregateRow),
		alerts:     make(map[string]repo.AlertRecord),
	}
}

// ---- SampleStore ----

func (m *Store) InsertSample(ctx context.Context, s domain.Sample) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[s.Kind] = append(m.samples[s.Kind], s)
	return nil
}

func (m *Store) FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time, f repo.Filter) ([]domain.Sample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Sample, 0)
	for _, s := range m.samples[kind] {
		if s.Timestamp.Before(start) || (!end.IsZero() && !s.Timestamp.Before(end)) {
			continue
		}
		if !f.Match(s) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *Store) DeleteSamplesOlderThan(ctx context.Context, kind domain.Kind, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[kind][:0]
	var n int64
	for _, s := range m.samples[kind] {
		if s.Timestamp.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	m.samples[kind] = kept
	return n, nil
}

// ---- AggregateStore ----

func (m *Store) UpsertAggregates(ctx context.Context, kind domain.Kind, rows []domain.AggregateRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey := m.aggregates[kind]
	if byKey == nil {
		byKey = make(map[domain.BucketKey]domain.AggregateRow)
		m.aggregates[kind] = byKey
	}
	for _, r := range rows {
		r.Kind = kind
		byKey[domain.BucketKey{Start: r.Bucket.UTC(), Group: r.Key}] = r
	}
	return nil
}

func (m *Store) ListAggregates(ctx context.Context, kind domain.Kind, start, end time.Time, f repo.Filter) ([]domain.AggregateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.AggregateRow, 0)
	for _, r := range m.aggregates[kind] {
		if r.Bucket.Before(start) || (!end.IsZero() && !r.Bucket.Before(end)) {
			continue
		}
		if !f.MatchGroup(r.Key) {
			continue
		}
		out = append(out, r)
	}
	sortRows(out)
	return out, nil
}

func sortRows(rows []domain.AggregateRow) {
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Bucket.Equal(b.Bucket) {
			return a.Bucket.Before(b.Bucket)
		}
		ka, kb := a.Key, b.Key
		if ka.Host+ka.FQDN+ka.URL != kb.Host+kb.FQDN+kb.URL {
			return ka.Host+ka.FQDN+ka.URL < kb.Host+kb.FQDN+kb.URL
		}
		if ka.Port != kb.Port {
			return ka.Port < kb.Port
		}
		return ka.Resolver+ka.Method < kb.Resolver+kb.Method
	})
}

// ---- AlertStore ----

func (m *Store) Get(ctx context.Context, targetKey string) (*repo.AlertRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.alerts[targetKey]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (m *Store) Set(ctx context.Context, targetKey string, lastState bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := repo.AlertRecord{TargetKey: targetKey, LastState: lastState}
	if prev, ok := m.alerts[targetKey]; ok {
		rec.LastSentAt = prev.LastSentAt
	}
	if !sentAt.IsZero() {
		ts := sentAt
		rec.LastSentAt = &ts
	}
	m.alerts[targetKey] = rec
	return nil
}
