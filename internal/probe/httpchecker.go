package probe

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

type HTTPChecker struct {
	Client *http.Client
	// Timeout bounds scheduled checks. Probe takes its own per-call timeout;
	// the client itself has none.
	Timeout time.Duration
}

// NewHTTPChecker returns a checker whose client never follows redirects, so
// a 3xx is reported as-is.
func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Timeout: timeout,
		Client: &http.Client{
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (h *HTTPChecker) Probe(ctx context.Context, url, method string, timeout time.Duration) domain.Sample {
	t := domain.HTTPTarget{URL: url, Method: strings.ToUpper(method)}.WithDefaults()
	return h.probe(ctx, Base(t), timeout)
}

func (h *HTTPChecker) Check(ctx context.Context, t domain.Target) domain.Sample {
	if _, ok := t.(domain.HTTPTarget); !ok {
		s := Base(t)
		s.Error = "http checker: unexpected target kind " + string(t.TargetKind())
		return s
	}
	return h.probe(ctx, Base(t), h.Timeout)
}

func (h *HTTPChecker) probe(ctx context.Context, s domain.Sample, timeout time.Duration) domain.Sample {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, s.HTTP.Method, s.HTTP.URL, nil)
	if err != nil {
		s.LatencyMS = sinceMS(start)
		s.Error = err.Error()
		return s
	}

	resp, err := h.Client.Do(req)
	s.LatencyMS = sinceMS(start) // ms
	if err != nil {
		s.Error = err.Error()
		return s
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	s.HTTP.StatusCode = resp.StatusCode
	s.Success = resp.StatusCode >= 200 && resp.StatusCode < 400
	if !s.Success {
		s.Error = resp.Status
	}
	return s
}
