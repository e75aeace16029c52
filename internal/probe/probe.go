// Package probe runs single TCP, DNS and HTTP measurements. Probes never
// return errors: failures are reported as a Sample with Success=false.
package probe

import (
	"context"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// Checker performs one probe of a configured target. The deadline of ctx
// bounds the probe.
type Checker interface {
	Check(ctx context.Context, t domain.Target) domain.Sample
}

// Base returns a failed sample for t with the target fields filled in.
func Base(t domain.Target) domain.Sample {
	s := domain.Sample{
		Kind:      t.TargetKind(),
		TargetID:  t.TargetID(),
		Timestamp: time.Now().UTC(),
	}
	switch v := t.(type) {
	case domain.TCPTarget:
		s.TCP = &domain.TCPDetail{Host: v.Host, Port: v.Port}
	case domain.DNSTarget:
		d := &domain.DNSDetail{FQDN: v.FQDN, RecordType: v.RecordType, Answers: []string{}}
		if len(v.Resolvers) > 0 {
			d.Resolver = v.Resolvers[0]
		}
		s.DNS = d
	case domain.HTTPTarget:
		s.HTTP = &domain.HTTPDetail{URL: v.URL, Method: v.Method}
	}
	return s
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func sinceMS(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}
