package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Togather-Foundation/tsukuyomi/internal/config"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	handler := RateLimit(config.RateLimitConfig{PerMinute: 60, Burst: 3}, "test")(okHandler())

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/posts", nil)
		req.RemoteAddr = "192.168.1.100:12345"
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected status 200, got %d", i+1, res.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.RemoteAddr = "192.168.1.100:12345"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected status 429, got %d", res.Code)
	}
	if res.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
	if ct := res.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/problem+json") {
		t.Errorf("expected problem+json body, got Content-Type %q", ct)
	}
	var body map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if status, _ := body["status"].(float64); int(status) != http.StatusTooManyRequests {
		t.Errorf("expected status 429 in body, got %v", body["status"])
	}

	// Another client has its own bucket.
	req = httptest.NewRequest(http.MethodGet, "/posts", nil)
	req.RemoteAddr = "192.168.1.200:12345"
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected other client to pass, got %d", res.Code)
	}
}

func TestRateLimit_HealthExemptAndDisabled(t *testing.T) {
	handler := RateLimit(config.RateLimitConfig{PerMinute: 1, Burst: 1}, "test", "/healthz", "/readyz")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("healthz request %d: expected 200, got %d", i+1, res.Code)
		}
	}

	disabled := RateLimit(config.RateLimitConfig{PerMinute: 0}, "test")(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		disabled.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/posts", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 with limiting disabled, got %d", i+1, res.Code)
		}
	}
}

func TestRateLimit_ExemptPathsFollowRoutingPrefix(t *testing.T) {
	handler := RateLimit(config.RateLimitConfig{PerMinute: 1, Burst: 1}, "test", "/api/healthz", "/api/readyz")(okHandler())

	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/api/readyz", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("prefixed readyz request %d: expected 200, got %d", i+1, res.Code)
		}
	}

	// The unprefixed path is an ordinary route under a prefix and is limited.
	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		codes = append(codes, res.Code)
	}
	if codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected unprefixed /healthz to be limited, got %v", codes)
	}
}

func TestLimiterStore_SweepIsThrottled(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PerMinute: 10})
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	for i := 0; i < 1000; i++ {
		store.limiter(fmt.Sprintf("client-%d", i))
	}
	if store.len() != 1000 {
		t.Fatalf("expected 1000 entries, got %d", store.len())
	}

	now = now.Add(store.ttl / 4)
	store.lastSweep = now
	now = now.Add(store.ttl)
	store.limiter("fresh-1")
	if store.len() != 1 {
		t.Fatalf("expected stale entries to be evicted once the sweep interval passed, got %d", store.len())
	}

	now = now.Add(store.ttl + time.Minute)
	store.lastSweep = now.Add(-time.Minute)
	store.limiter("fresh-2")
	if store.len() != 2 {
		t.Fatalf("expected no sweep within half a TTL of the last one, got %d entries", store.len())
	}

	// fresh-1 is stale and goes; fresh-2 is still live.
	now = now.Add(store.ttl / 2)
	store.limiter("fresh-3")
	if store.len() != 2 {
		t.Fatalf("expected sweep after half a TTL to evict stale entries, got %d entries", store.len())
	}
}

func TestLimiterStore_SweepsStaleEntries(t *testing.T) {
	store := newLimiterStore(config.RateLimitConfig{PerMinute: 10})
	now := time.Unix(1_700_000_000, 0)
	store.now = func() time.Time { return now }

	store.limiter("a")
	store.limiter("b")
	if store.len() != 2 {
		t.Fatalf("expected 2 entries, got %d", store.len())
	}

	now = now.Add(time.Hour)
	store.limiter("c")
	if store.len() != 1 {
		t.Fatalf("expected stale entries to be swept, got %d", store.len())
	}
}

func TestClientKey_TrustedProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:4444"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")

	if got := clientKey(req, nil); got != "10.0.0.5" {
		t.Errorf("expected untrusted proxy to be ignored, got %q", got)
	}
	if got := clientKey(req, []string{"10.0.0.0/8"}); got != "203.0.113.9" {
		t.Errorf("expected forwarded client, got %q", got)
	}

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.7")
	if got := clientKey(req, []string{"bogus", "10.0.0.0/8"}); got != "198.51.100.7" {
		t.Errorf("expected X-Real-IP, got %q", got)
	}
}
