package probe

import (
	"context"
	"fmt"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Mux routes a target to the checker registered for its kind.
type Mux struct {
	checkers map[domain.Kind]Checker
}

func NewMux(tcp, dns, http Checker) *Mux {
	return &Mux{checkers: map[domain.Kind]Checker{
		domain.KindTCP:  tcp,
		domain.KindDNS:  dns,
		domain.KindHTTP: http,
	}}
}

func (m *Mux) Check(ctx context.Context, t domain.Target) domain.Sample {
	c := m.checkers[t.TargetKind()]
	if c == nil {
		s := Base(t)
		s.Error = fmt.Sprintf("no checker for kind %q", t.TargetKind())
		return s
	}
	return c.Check(ctx, t)
}
