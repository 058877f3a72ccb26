package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter buckets idle longer than limiterIdleTTL are dropped once a set
// tracks more than maxTrackedClients keys.
const (
	maxTrackedClients = 10000
	limiterIdleTTL    = 10 * time.Minute
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet hands out one token bucket per key.
type limiterSet[K comparable] struct {
	mu      sync.Mutex
	buckets map[K]*bucket
	limit   rate.Limit
	burst   int
}

func newLimiterSet[K comparable](rps float64, burst int) *limiterSet[K] {
	if burst <= 0 {
		burst = 1
	}
	return &limiterSet[K]{
		buckets: make(map[K]*bucket),
		limit:   rate.Limit(rps),
		burst:   burst,
	}
}

func (s *limiterSet[K]) disabled() bool {
	return s.limit <= 0
}

// allow takes a token from key's bucket.
func (s *limiterSet[K]) allow(key K) bool {
	now := time.Now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		if len(s.buckets) >= maxTrackedClients {
			s.pruneIdle(now)
		}
		b = &bucket{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	return b.limiter.AllowN(now, 1)
}

// pruneIdle drops idle buckets; s.mu must be held.
func (s *limiterSet[K]) pruneIdle(now time.Time) {
	before := len(s.buckets)
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > limiterIdleTTL {
			delete(s.buckets, key)
		}
	}
	if len(s.buckets) >= maxTrackedClients {
		clear(s.buckets)
	}
	slog.Info("pruned rate limiter buckets", "before", before, "after", len(s.buckets))
}

// IPRateLimiter limits requests per client IP.
type IPRateLimiter struct {
	set     *limiterSet[string]
	message string
}

// NewIPRateLimiter allows rps requests per second per IP with the given
// burst. A non-positive rps disables limiting.
func NewIPRateLimiter(rps float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		set:     newLimiterSet[string](rps, burst),
		message: "Too many requests, please slow down.",
	}
}

// WithMessage sets the message returned with 429 responses.
func (rl *IPRateLimiter) WithMessage(msg string) *IPRateLimiter {
	rl.message = msg
	return rl
}

// Allow reports whether a request from ip may proceed.
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.set.disabled() || rl.set.allow(ip)
}

// Middleware rejects clients over the limit with a JSON 429.
func (rl *IPRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ip := ClientIP(r); !rl.Allow(ip) {
				slog.Debug("rate limit exceeded", "ip", ip, "path", r.URL.Path)
				w.Header().Set("Retry-After", "1")
				WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited, rl.message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AdminRateLimit limits requests per authenticated admin and must run after
// JWTAuth. Anonymous requests pass through.
func AdminRateLimit(rps float64, burst int) func(http.Handler) http.Handler {
	set := newLimiterSet[int64](rps, burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin := GetAdmin(r)
			if admin != nil && !set.disabled() && !set.allow(admin.ID) {
				WriteAPIError(w, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating client address. chi's RealIP normally
// rewrites RemoteAddr already; the proxy headers are a fallback.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
