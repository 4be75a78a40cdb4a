package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyFunc extracts the limiting key for a request, typically the
// authenticated user's id.
type KeyFunc func(r *http.Request) string

// RateLimitOptions configures RateLimit. Zero values get sane defaults; a
// non-positive RPS disables the middleware entirely.
type RateLimitOptions struct {
	RPS          float64
	Burst        int
	KeyFn        KeyFunc
	RejectStatus int
	RetryAfter   time.Duration
}

// RateLimit applies a per-key token bucket. Keys that exhaust their burst
// get RejectStatus (default 429) with a Retry-After header.
func RateLimit(opts RateLimitOptions) func(next http.Handler) http.Handler {
	if opts.RPS <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.KeyFn == nil {
		opts.KeyFn = func(r *http.Request) string { return r.RemoteAddr }
	}

	var (
		mu       sync.Mutex
		limiters = make(map[string]*rate.Limiter)
	)

	limiterFor := func(key string) *rate.Limiter {
		mu.Lock()
		defer mu.Unlock()
		l, ok := limiters[key]
		if !ok {
			l = rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst)
			limiters[key] = l
		}
		return l
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiterFor(opts.KeyFn(r)).Allow() {
				w.Header().Set("Retry-After", strconv.Itoa(int(opts.RetryAfter/time.Second)))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
