package repo_test

import (
	"testing"

	"github.com/hamed0406/netprobe/internal/domain"
	"github.com/hamed0406/netprobe/internal/repo"
	"github.com/hamed0406/netprobe/internal/repo/memory"
	pg "github.com/hamed0406/netprobe/internal/repo/postgres"
)

// Compile-time interface satisfaction checks.
// Using external test package avoids import cycle.
func TestInterfaceSatisfaction(t *testing.T) {
	var _ repo.Store = memory.New()

	// Postgres store types compile against the interfaces, too.
	var _ repo.Store = (*pg.Store)(nil)
}

func TestFilter_Match(t *testing.T) {
	s := domain.Sample{
		Kind:     domain.KindHTTP,
		TargetID: "web",
		HTTP:     &domain.HTTPDetail{URL: "https://example.com", Method: "GET"},
	}
	cases := []struct {
		name string
		f    repo.Filter
		want bool
	}{
		{"zero", repo.Filter{}, true},
		{"target hit", repo.Filter{TargetID: "web"}, true},
		{"target miss", repo.Filter{TargetID: "api"}, false},
		{"group wildcard method", repo.Filter{Group: &domain.GroupKey{URL: "https://example.com"}}, true},
		{"group miss", repo.Filter{Group: &domain.GroupKey{URL: "https://example.com", Method: "HEAD"}}, false},
	}
	for _, c := range cases {
		if got := c.f.Match(s); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}
