package rollup

import (
	"math"
	"sort"
	"time"

	"github.com/guregu/null/v5"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Bucket floors ts to a multiple of width since the Unix epoch, in UTC.
func Bucket(ts time.Time, width time.Duration) time.Time {
	w := int64(width / time.Second)
	if w <= 0 {
		w = 1
	}
	sec := ts.Unix()
	start := sec - mod(sec, w)
	return time.Unix(start, 0).UTC()
}

func mod(a, b int64) int64 {
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

// Quantile returns the nearest-rank value at q from an ascending slice:
// index round(q*(n-1)), ties to even, clamped to the slice.
func Quantile(sorted []float64, q float64) null.Float {
	n := len(sorted)
	if n == 0 {
		return null.Float{}
	}
	idx := int(math.RoundToEven(q * float64(n-1)))
	idx = max(0, min(n-1, idx))
	return null.FloatFrom(sorted[idx])
}

// Stats summarizes latencies of successful samples.
type Stats struct {
	P50, P95, Avg, Min, Max null.Float
}

// Summarize computes Stats over lat. lat is sorted in place.
func Summarize(lat []float64) Stats {
	if len(lat) == 0 {
		return Stats{}
	}
	sort.Float64s(lat)
	var sum float64
	for _, v := range lat {
		sum += v
	}
	return Stats{
		P50: Quantile(lat, 0.5),
		P95: Quantile(lat, 0.95),
		Avg: null.FloatFrom(sum / float64(len(lat))),
		Min: null.FloatFrom(lat[0]),
		Max: null.FloatFrom(lat[len(lat)-1]),
	}
}

type acc struct {
	count, ok int
	lat       []float64
}

func (a *acc) add(s domain.Sample) {
	a.count++
	if s.Success {
		a.ok++
		a.lat = append(a.lat, s.LatencyMS)
	}
}

// Compute groups samples of one kind into (bucket, group) rows, ordered by
// bucket then group.
func Compute(kind domain.Kind, samples []domain.Sample, width time.Duration) []domain.AggregateRow {
	groups := map[domain.BucketKey]*acc{}
	for _, s := range samples {
		k := domain.BucketKey{Start: Bucket(s.Timestamp, width), Group: s.Group()}
		a := groups[k]
		if a == nil {
			a = &acc{}
			groups[k] = a
		}
		a.add(s)
	}

	rows := make([]domain.AggregateRow, 0, len(groups))
	for k, a := range groups {
		st := Summarize(a.lat)
		rows = append(rows, domain.AggregateRow{
			Kind:         kind,
			Bucket:       k.Start,
			Key:          k.Group,
			Count:        a.count,
			SuccessCount: a.ok,
			P50:          st.P50,
			P95:          st.P95,
			Avg:          st.Avg,
			Min:          st.Min,
			Max:          st.Max,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.Bucket.Equal(b.Bucket) {
			return a.Bucket.Before(b.Bucket)
		}
		return groupLess(a.Key, b.Key)
	})
	return rows
}

func groupLess(a, b domain.GroupKey) bool {
	switch {
	case a.Host != b.Host:
		return a.Host < b.Host
	case a.Port != b.Port:
		return a.Port < b.Port
	case a.FQDN != b.FQDN:
		return a.FQDN < b.FQDN
	case a.Resolver != b.Resolver:
		return a.Resolver < b.Resolver
	case a.URL != b.URL:
		return a.URL < b.URL
	default:
		return a.Method < b.Method
	}
}

// Series buckets samples by step regardless of group and returns the points
// in bucket order.
func Series(samples []domain.Sample, step time.Duration) []domain.SeriesPoint {
	buckets := map[time.Time]*acc{}
	for _, s := range samples {
		b := Bucket(s.Timestamp, step)
		a := buckets[b]
		if a == nil {
			a = &acc{}
			buckets[b] = a
		}
		a.add(s)
	}

	points := make([]domain.SeriesPoint, 0, len(buckets))
	for b, a := range buckets {
		st := Summarize(a.lat)
		points = append(points, domain.SeriesPoint{
			Bucket:      b,
			Count:       a.count,
			SuccessRate: float64(a.ok) / float64(a.count),
			P50:         st.P50,
			P95:         st.P95,
			Avg:         st.Avg,
		})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Bucket.Before(points[j].Bucket) })
	return points
}
