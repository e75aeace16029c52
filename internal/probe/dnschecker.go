package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/hamed0406/netprobe/internal/domain"
)

const defaultResolvConf = "/etc/resolv.conf"

// DNSChecker queries the given resolvers in order and reports the first
// response. Without resolvers the system configuration is used.
type DNSChecker struct {
	ResolvConf string
	Net        string // "udp" or "tcp"
}

func NewDNSChecker() *DNSChecker {
	return &DNSChecker{ResolvConf: defaultResolvConf, Net: "udp"}
}

func (d *DNSChecker) Probe(ctx context.Context, fqdn, recordType string, resolvers []string, timeout time.Duration) domain.Sample {
	t := domain.DNSTarget{FQDN: fqdn, RecordType: strings.ToUpper(recordType), Resolvers: resolvers}
	return d.probe(ctx, t, timeout)
}

func (d *DNSChecker) Check(ctx context.Context, t domain.Target) domain.Sample {
	dt, ok := t.(domain.DNSTarget)
	if !ok {
		s := Base(t)
		s.Error = "dns checker: unexpected target kind " + string(t.TargetKind())
		return s
	}
	return d.probe(ctx, dt, 0)
}

func (d *DNSChecker) probe(ctx context.Context, t domain.DNSTarget, timeout time.Duration) domain.Sample {
	s := Base(t)
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	qtype, ok := dns.StringToType[t.RecordType]
	if !ok {
		s.Error = fmt.Sprintf("unsupported record type %q", t.RecordType)
		return s
	}
	servers := t.Resolvers
	if len(servers) == 0 {
		servers = d.systemResolvers()
	}
	if len(servers) == 0 {
		s.Error = "no resolvers configured"
		return s
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(t.FQDN), qtype)
	client := &dns.Client{Net: d.Net}
	if timeout > 0 {
		client.Timeout = timeout
	}

	start := time.Now()
	var lastErr error
	for _, srv := range servers {
		s.DNS.Resolver = srv
		resp, _, err := client.ExchangeContext(ctx, m, resolverAddr(srv))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		s.LatencyMS = sinceMS(start)
		s.DNS.Rcode = dns.RcodeToString[resp.Rcode]
		for _, rr := range resp.Answer {
			if rr.Header().Rrtype == qtype {
				s.DNS.Answers = append(s.DNS.Answers, rrValue(rr))
			}
		}
		switch {
		case resp.Rcode != dns.RcodeSuccess:
			s.Error = s.DNS.Rcode
		case len(s.DNS.Answers) == 0:
			s.Error = "no answer"
		default:
			s.Success = true
		}
		return s
	}

	s.LatencyMS = sinceMS(start)
	s.Error = lastErr.Error()
	var ne net.Error
	if errors.Is(lastErr, context.DeadlineExceeded) || (errors.As(lastErr, &ne) && ne.Timeout()) {
		s.DNS.Rcode = "TIMEOUT"
	}
	return s
}

func (d *DNSChecker) systemResolvers() []string {
	path := d.ResolvConf
	if path == "" {
		path = defaultResolvConf
	}
	cc, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(cc.Servers))
	for _, srv := range cc.Servers {
		out = append(out, net.JoinHostPort(srv, cc.Port))
	}
	return out
}

// resolverAddr appends the default port when srv has none.
func resolverAddr(srv string) string {
	if _, _, err := net.SplitHostPort(srv); err == nil {
		return srv
	}
	return net.JoinHostPort(strings.Trim(srv, "[]"), "53")
}

func rrValue(rr dns.RR) string {
	return strings.TrimPrefix(rr.String(), rr.Header().String())
}
