package probe

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

type TCPChecker struct {
	Dialer *net.Dialer
}

func NewTCPChecker() *TCPChecker {
	return &TCPChecker{Dialer: &net.Dialer{}}
}

// Probe measures the time to establish a TCP connection to host:port.
func (c *TCPChecker) Probe(ctx context.Context, host string, port int, timeout time.Duration) domain.Sample {
	return c.probe(ctx, Base(domain.TCPTarget{Host: host, Port: port}), timeout)
}

func (c *TCPChecker) Check(ctx context.Context, t domain.Target) domain.Sample {
	if _, ok := t.(domain.TCPTarget); !ok {
		s := Base(t)
		s.Error = "tcp checker: unexpected target kind " + string(t.TargetKind())
		return s
	}
	return c.probe(ctx, Base(t), 0)
}

func (c *TCPChecker) probe(ctx context.Context, s domain.Sample, timeout time.Duration) domain.Sample {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(s.TCP.Host, strconv.Itoa(s.TCP.Port))
	start := time.Now()
	conn, err := c.Dialer.DialContext(ctx, "tcp", addr)
	s.LatencyMS = sinceMS(start)
	if err != nil {
		s.Error = err.Error()
		return s
	}
	_ = conn.Close()
	s.Success = true
	return s
}
