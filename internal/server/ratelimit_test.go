package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/ragchat-go/internal/logging"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newTestLimiter(t *testing.T, rps float64, burst int) *rateLimiter {
	t.Helper()
	rl, stop := newRateLimiter(rps, burst, logging.Discard())
	t.Cleanup(stop)
	return rl
}

func hit(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()

	h := newTestLimiter(t, 0.001, 3).middleware(okHandler)

	for i := range 3 {
		if w := hit(h, "10.0.0.1:9999"); w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status %d", i, w.Code)
		}
	}

	w := hit(h, "10.0.0.1:9999")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("request past burst: status %d, want 429", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"code":"rate_limited"`) {
		t.Errorf("body = %s, want rate_limited code", w.Body.String())
	}
	// 0.001 rps earns a token every 1000s.
	if got := w.Header().Get("Retry-After"); got != "1000" {
		t.Errorf("Retry-After = %q, want 1000", got)
	}
}

func TestRateLimit_RetryAfterFloorsAtOneSecond(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(t, 50, 1)
	if rl.retryAfter != "1" {
		t.Errorf("retryAfter = %q, want 1", rl.retryAfter)
	}
}

func TestRateLimit_BucketsArePerClient(t *testing.T) {
	t.Parallel()

	h := newTestLimiter(t, 0.001, 1).middleware(okHandler)

	hit(h, "192.168.1.1:1111")
	if w := hit(h, "192.168.1.1:2222"); w.Code != http.StatusTooManyRequests {
		t.Errorf("same host, new port: status %d, want 429", w.Code)
	}
	if w := hit(h, "192.168.1.2:1111"); w.Code != http.StatusOK {
		t.Errorf("other host: status %d, want 200", w.Code)
	}
}

func TestRateLimit_EvictsIdleBuckets(t *testing.T) {
	t.Parallel()

	rl := newTestLimiter(t, 1, 1)
	now := time.Now()
	rl.allow("10.0.0.1", now.Add(-2*limiterIdleTTL))
	rl.allow("10.0.0.2", now)

	rl.evict(now)

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.limiters["10.0.0.1"]; ok {
		t.Error("idle bucket survived eviction")
	}
	if _, ok := rl.limiters["10.0.0.2"]; !ok {
		t.Error("active bucket was evicted")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"[::1]:8080":      "::1",
		"::1:8080":        "::1",
		"noport":          "noport",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		if got := clientIP(req); got != want {
			t.Errorf("clientIP(%q) = %q, want %q", addr, got, want)
		}
	}
}
