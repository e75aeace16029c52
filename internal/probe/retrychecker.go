package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/hamed0406/netprobe/internal/domain"
)

// RetryChecker repeats failed probes up to Attempts times, waiting Backoff
// between tries. All attempts share the caller's deadline.
type RetryChecker struct {
	Inner    Checker
	Attempts int
	Backoff  time.Duration
}

func (r *RetryChecker) Check(ctx context.Context, t domain.Target) domain.Sample {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last domain.Sample
	for i := 0; i < attempts; i++ {
		last = r.Inner.Check(ctx, t)
		if last.Success {
			return last
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return last
		case <-time.After(r.Backoff):
		}
	}
	if attempts > 1 {
		// annotate so the series is visible in the error
		last.Error = fmt.Sprintf("%s (after %d attempts)", last.Error, attempts)
	}
	return last
}
