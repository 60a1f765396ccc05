package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-key token bucket.
type RateLimitConfig struct {
	// Max is the bucket size; Max tokens are refilled evenly over Window.
	// Zero disables limiting.
	Max    int
	Window time.Duration
	// KeyFunc defaults to the client IP.
	KeyFunc func(*http.Request) string
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Decision is the outcome of a single Allow call.
type Decision struct {
	Allowed   bool
	Remaining int
	// Reset is when the bucket is full again.
	Reset time.Time
	// RetryAfter is how long a rejected client has to wait for one token.
	RetryAfter time.Duration
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	max     int
	window  time.Duration
	keyFunc func(*http.Request) string

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLimiter returns a Limiter for cfg.
func NewLimiter(cfg RateLimitConfig) *Limiter {
	l := &Limiter{
		max:      cfg.Max,
		window:   cfg.Window,
		keyFunc:  cfg.KeyFunc,
		visitors: make(map[string]*visitor),
	}
	if l.keyFunc == nil {
		l.keyFunc = ClientIP
	}
	if l.window <= 0 {
		l.window = time.Minute
	}
	return l
}

func (l *Limiter) visitor(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, ok := l.visitors[key]
	if !ok {
		limit := rate.Limit(float64(l.max) / l.window.Seconds())
		v = &visitor{limiter: rate.NewLimiter(limit, l.max)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// refill returns how long it takes to earn n tokens.
func (l *Limiter) refill(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n * float64(l.window) / float64(l.max))
}

// Allow takes one token for key at now.
func (l *Limiter) Allow(key string, now time.Time) Decision {
	lim := l.visitor(key, now)
	allowed := lim.AllowN(now, 1)
	tokens := lim.TokensAt(now)

	d := Decision{
		Allowed:   allowed,
		Remaining: max(0, int(math.Floor(tokens))),
		Reset:     now.Add(l.refill(float64(l.max) - tokens)),
	}
	if !allowed {
		d.RetryAfter = l.refill(1 - tokens)
	}
	return d
}

// Sweep drops keys idle for a whole window; their buckets are full again.
func (l *Limiter) Sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) >= l.window {
			delete(l.visitors, key)
		}
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

// RunSweeper calls Sweep every window until ctx is done.
func (l *Limiter) RunSweeper(ctx context.Context) {
	ticker := time.NewTicker(l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			l.Sweep(now)
		}
	}
}

// Middleware rejects requests over the limit with 429 and reports the
// X-RateLimit-* headers on every response.
func (l *Limiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		if l.max <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(l.keyFunc(r), time.Now())

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(l.max))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))
			if !d.Allowed {
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
				WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit returns a limiting middleware without background sweeping.
func RateLimit(cfg RateLimitConfig) Middleware {
	return NewLimiter(cfg).Middleware()
}

// RateLimitWithCleanup is RateLimit plus a sweeper that stops with ctx.
func RateLimitWithCleanup(ctx context.Context, cfg RateLimitConfig) Middleware {
	l := NewLimiter(cfg)
	go l.RunSweeper(ctx)
	return l.Middleware()
}

// ClientIP returns the first X-Forwarded-For address, X-Real-IP, or the
// remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
