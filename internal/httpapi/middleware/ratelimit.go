package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiter keeps one token bucket per client key and forgets keys idle for
// longer than ttl.
type limiter struct {
	every rate.Limit
	burst int
	ttl   time.Duration

	now func() time.Time

	mu        sync.Mutex
	m         map[string]*visitor
	lastSweep time.Time
}

func newLimiter(rps float64, burst int, ttl time.Duration) *limiter {
	if burst < 1 {
		burst = 1
	}
	return &limiter{
		every: rate.Limit(rps),
		burst: burst,
		ttl:   ttl,
		now:   time.Now,
		m:     make(map[string]*visitor),
	}
}

func (l *limiter) allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	v := l.m[key]
	if v == nil {
		v = &visitor{lim: rate.NewLimiter(l.every, l.burst)}
		l.m[key] = v
	}
	v.seen = now
	if now.Sub(l.lastSweep) > l.ttl {
		for k, o := range l.m {
			if now.Sub(o.seen) > l.ttl {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}
	l.mu.Unlock()
	return v.lim.AllowN(now, 1)
}

// RateLimit returns a middleware that rate-limits by client IP.
// Example: RateLimit(120, 60) => 120 req/min with burst 60
func RateLimit(reqPerMin int, burst int) func(http.Handler) http.Handler {
	if reqPerMin <= 0 {
		// disabled
		return func(next http.Handler) http.Handler { return next }
	}
	return newLimiter(float64(reqPerMin)/60.0, burst, 10*time.Minute).middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeJSONError(w, http.StatusTooManyRequests, `{"error":"rate limit exceeded"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// honor X-Forwarded-For if behind a proxy
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
