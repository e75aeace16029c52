package repo

import (
	"context"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Filter narrows sample and aggregate reads. Zero value matches everything.
type Filter struct {
	TargetID string
	// Group, when set, matches aggregate rows by their grouping fields.
	// Empty fields inside Group are wildcards.
	Group *domain.GroupKey
}

// Match reports whether a sample passes the filter.
func (f Filter) Match(s domain.Sample) bool {
	if f.TargetID != "" && s.TargetID != f.TargetID {
		return false
	}
	if f.Group != nil && !f.MatchGroup(s.Group()) {
		return false
	}
	return true
}

// MatchGroup reports whether g satisfies the Group part of the filter.
func (f Filter) MatchGroup(g domain.GroupKey) bool {
	w := f.Group
	if w == nil {
		return true
	}
	return (w.Host == "" || w.Host == g.Host) &&
		(w.Port == 0 || w.Port == g.Port) &&
		(w.FQDN == "" || w.FQDN == g.FQDN) &&
		(w.Resolver == "" || w.Resolver == g.Resolver) &&
		(w.URL == "" || w.URL == g.URL) &&
		(w.Method == "" || w.Method == g.Method)
}

// Ports (interfaces) for the persistence sink.

// SampleStore is the durable log of raw probe samples.
type SampleStore interface {
	InsertSample(ctx context.Context, s domain.Sample) error
	// FetchSamples returns samples of kind with start <= ts < end, oldest
	// first. A zero end means no upper bound.
	FetchSamples(ctx context.Context, kind domain.Kind, start, end time.Time, f Filter) ([]domain.Sample, error)
	// DeleteSamplesOlderThan removes samples with ts < cutoff.
	DeleteSamplesOlderThan(ctx context.Context, kind domain.Kind, cutoff time.Time) (int64, error)
}

// AggregateStore keeps per-minute rollups. Upserts replace rows with the
// same (bucket, group).
type AggregateStore interface {
	UpsertAggregates(ctx context.Context, kind domain.Kind, rows []domain.AggregateRow) error
	ListAggregates(ctx context.Context, kind domain.Kind, start, end time.Time, f Filter) ([]domain.AggregateRow, error)
}

// Store is everything a full persistence backend provides.
type Store interface {
	SampleStore
	AggregateStore
	AlertStore
}
