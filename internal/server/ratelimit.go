package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/54b3r/ragchat-go/internal/logging"
)

// Per-IP token bucket defaults for ask, ingest and reindex. A burst of 20
// lets a UI send a few quick follow-ups without being throttled.
const (
	defaultRateLimit = 10
	defaultRateBurst = 20
)

// limiterIdleTTL is how long an IP's bucket survives without requests.
const limiterIdleTTL = 5 * time.Minute

// ipLimiter is one client's bucket and when it was last used.
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter enforces a per-IP token bucket. Idle buckets are evicted in the
// background so the map stays bounded.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	rps      rate.Limit
	burst    int
	// retryAfter is the Retry-After value in seconds: the time to earn one
	// token, at least 1.
	retryAfter string
	log        *slog.Logger
}

// newRateLimiter constructs a rateLimiter and starts its eviction goroutine,
// which exits when the returned stop function is called.
func newRateLimiter(rps float64, burst int, log *slog.Logger) (*rateLimiter, func()) {
	wait := 1.0
	if rps > 0 {
		wait = math.Max(1, math.Ceil(1/rps))
	}
	rl := &rateLimiter{
		limiters:   make(map[string]*ipLimiter),
		rps:        rate.Limit(rps),
		burst:      burst,
		retryAfter: strconv.Itoa(int(wait)),
		log:        log,
	}

	stopCh := make(chan struct{})
	var once sync.Once
	go rl.evictLoop(stopCh)

	return rl, func() { once.Do(func() { close(stopCh) }) }
}

// allow spends one token from ip's bucket, creating the bucket on first use.
func (rl *rateLimiter) allow(ip string, now time.Time) bool {
	rl.mu.Lock()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &ipLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	rl.mu.Unlock()

	return entry.limiter.AllowN(now, 1)
}

func (rl *rateLimiter) evictLoop(stopCh <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			rl.evict(now)
		}
	}
}

// evict drops buckets idle for longer than limiterIdleTTL.
func (rl *rateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := now.Add(-limiterIdleTTL)
	for ip, entry := range rl.limiters {
		if entry.lastSeen.Before(cutoff) {
			delete(rl.limiters, ip)
		}
	}
}

// middleware rejects over-limit requests with 429, a Retry-After header and
// the JSON error body.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.allow(ip, time.Now()) {
			logging.FromContextOr(r.Context(), rl.log).Warn("rate limit exceeded",
				slog.String("ip", ip),
				slog.String("path", r.URL.Path),
			)
			w.Header().Set("Retry-After", rl.retryAfter)
			writeJSON(w, r, http.StatusTooManyRequests, errorResponse{Error: "Too many requests. Please slow down.", Code: "rate_limited"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. X-Forwarded-For is not
// trusted; put a proxy that rewrites RemoteAddr in front if needed.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if i := strings.LastIndexByte(r.RemoteAddr, ':'); i >= 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}
