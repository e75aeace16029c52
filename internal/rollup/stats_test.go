package rollup

import (
	"testing"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func tcpSample(at time.Time, host string, ok bool, lat float64) domain.Sample {
	return domain.Sample{
		Kind:      domain.KindTCP,
		TargetID:  host,
		Timestamp: at,
		LatencyMS: lat,
		Success:   ok,
		TCP:       &domain.TCPDetail{Host: host, Port: 443},
	}
}

func TestBucket(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"2024-05-01T12:00:37Z", "2024-05-01T12:00:00Z"},
		{"2024-05-01T12:00:59Z", "2024-05-01T12:00:00Z"},
		{"2024-05-01T12:01:00Z", "2024-05-01T12:01:00Z"},
		{"2024-05-01T14:00:37+02:00", "2024-05-01T12:00:00Z"},
	}
	for _, c := range cases {
		got := Bucket(ts(c.in), time.Minute)
		if !got.Equal(ts(c.want)) || got.Location() != time.UTC {
			t.Errorf("Bucket(%s) = %s, want %s UTC", c.in, got, c.want)
		}
	}
	if got := Bucket(ts("2024-05-01T12:00:44Z"), 15*time.Second); !got.Equal(ts("2024-05-01T12:00:30Z")) {
		t.Errorf("15s bucket = %s", got)
	}
}

func TestQuantile(t *testing.T) {
	data := []float64{10, 20, 30, 40, 50}
	if got := Quantile(data, 0.5); got.Float64 != 30 {
		t.Fatalf("p50 = %v, want 30", got)
	}
	if got := Quantile(data, 0.95); got.Float64 != 50 {
		t.Fatalf("p95 = %v, want 50", got)
	}
	if got := Quantile(nil, 0.5); got.Valid {
		t.Fatalf("empty quantile should be null, got %v", got)
	}
	// q*(n-1) = 0.5 rounds to the even index 0; 1.5 rounds to 2.
	if got := Quantile([]float64{1, 2}, 0.5); got.Float64 != 1 {
		t.Fatalf("half-way index should round to even, got %v", got)
	}
	if got := Quantile([]float64{1, 2, 3, 4}, 0.5); got.Float64 != 3 {
		t.Fatalf("1.5 should round to index 2, got %v", got)
	}
	if got := Quantile([]float64{7}, 0.95); got.Float64 != 7 {
		t.Fatalf("single value = %v", got)
	}
}

func TestCompute_StatsOverSuccessesOnly(t *testing.T) {
	base := ts("2024-05-01T12:00:00Z")
	samples := []domain.Sample{
		tcpSample(base.Add(1*time.Second), "a", true, 50),
		tcpSample(base.Add(2*time.Second), "a", true, 10),
		tcpSample(base.Add(3*time.Second), "a", false, 9999),
		tcpSample(base.Add(4*time.Second), "a", true, 30),
		tcpSample(base.Add(5*time.Second), "a", true, 20),
		tcpSample(base.Add(6*time.Second), "a", true, 40),
		tcpSample(base.Add(10*time.Second), "b", false, 5),
		tcpSample(base.Add(61*time.Second), "a", true, 1),
	}

	rows := Compute(domain.KindTCP, samples, time.Minute)
	if len(rows) != 3 {
		t.Fatalf("want 3 rows, got %d: %+v", len(rows), rows)
	}

	a := rows[0]
	if !a.Bucket.Equal(base) || a.Key.Host != "a" || a.Key.Port != 443 {
		t.Fatalf("unexpected first row key: %+v", a)
	}
	if a.Count != 6 || a.SuccessCount != 5 {
		t.Fatalf("count=%d success=%d", a.Count, a.SuccessCount)
	}
	if a.P50.Float64 != 30 || a.P95.Float64 != 50 || a.Avg.Float64 != 30 || a.Min.Float64 != 10 || a.Max.Float64 != 50 {
		t.Fatalf("unexpected stats: %+v", a)
	}

	b := rows[1]
	if b.Key.Host != "b" || b.Count != 1 || b.SuccessCount != 0 {
		t.Fatalf("unexpected row b: %+v", b)
	}
	if b.P50.Valid || b.P95.Valid || b.Avg.Valid || b.Min.Valid || b.Max.Valid {
		t.Fatalf("no successes must give null stats: %+v", b)
	}

	if !rows[2].Bucket.Equal(base.Add(time.Minute)) || rows[2].Count != 1 {
		t.Fatalf("unexpected next-minute row: %+v", rows[2])
	}
}

func TestCompute_Deterministic(t *testing.T) {
	base := ts("2024-05-01T12:00:00Z")
	var samples []domain.Sample
	for i := 0; i < 50; i++ {
		host := []string{"x", "y", "z"}[i%3]
		samples = append(samples, tcpSample(base.Add(time.Duration(i)*7*time.Second), host, i%4 != 0, float64(i)))
	}
	first := Compute(domain.KindTCP, samples, time.Minute)
	for i := 0; i < 5; i++ {
		again := Compute(domain.KindTCP, samples, time.Minute)
		if len(again) != len(first) {
			t.Fatalf("row count drifted: %d vs %d", len(again), len(first))
		}
		for j := range first {
			if first[j] != again[j] {
				t.Fatalf("row %d differs:\n%+v\n%+v", j, first[j], again[j])
			}
		}
	}
}

func TestSeries(t *testing.T) {
	base := ts("2024-05-01T12:00:00Z")
	samples := []domain.Sample{
		tcpSample(base.Add(20*time.Second), "a", true, 10),
		tcpSample(base.Add(5*time.Second), "b", false, 0),
		tcpSample(base.Add(35*time.Second), "a", true, 20),
		tcpSample(base.Add(40*time.Second), "a", true, 30),
	}
	pts := Series(samples, 30*time.Second)
	if len(pts) != 2 {
		t.Fatalf("want 2 points, got %+v", pts)
	}
	if !pts[0].Bucket.Equal(base) || pts[0].Count != 2 || pts[0].SuccessRate != 0.5 || pts[0].P50.Float64 != 10 {
		t.Fatalf("unexpected first point: %+v", pts[0])
	}
	if !pts[1].Bucket.Equal(base.Add(30*time.Second)) || pts[1].SuccessRate != 1 || pts[1].Avg.Float64 != 25 {
		t.Fatalf("unexpected second point: %+v", pts[1])
	}
}
