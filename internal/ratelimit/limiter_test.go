package ratelimit

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/JaimeStill/scribe/internal/auth"
	"github.com/JaimeStill/scribe/internal/telemetry"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func limiterFor(t *testing.T, addr string, capacity int, failClosed bool) (*Limiter, *telemetry.Metrics) {
	t.Helper()
	cfg := &Config{Enabled: true, RedisAddr: addr, Capacity: capacity, RefillPerSecond: 0.01, FailClosed: failClosed}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("config: %v", err)
	}
	m := telemetry.New()
	l := New(cfg, m, discard())
	t.Cleanup(func() { l.client.Close() })
	return l, m
}

func serve(h http.Handler, user string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/documents/upload", nil)
	if user != "" {
		req = req.WithContext(auth.WithPrincipal(req.Context(), auth.Principal{Subject: user}))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
})

func TestMiddlewareLimitsPerUser(t *testing.T) {
	mr, _ := newRedis(t)
	l, m := limiterFor(t, mr.Addr(), 2, false)
	h := l.Middleware()(okHandler)

	for range 2 {
		if rec := serve(h, "user1"); rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201", rec.Code)
		}
	}

	rec := serve(h, "user1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header")
	}

	if rec := serve(h, "user2"); rec.Code != http.StatusCreated {
		t.Errorf("other user status = %d, want 201", rec.Code)
	}
	if rec := serve(h, ""); rec.Code != http.StatusCreated {
		t.Errorf("anonymous status = %d, want 201", rec.Code)
	}

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(scrape.Body.String(), "scribe_http_rate_limited_total 1") {
		t.Error("rate limited metric not recorded")
	}
}

func TestMiddlewareRedisDown(t *testing.T) {
	mr, _ := newRedis(t)
	addr := mr.Addr()
	mr.Close()

	tests := []struct {
		name       string
		failClosed bool
		wantCode   int
	}{
		{"fail open", false, http.StatusCreated},
		{"fail closed", true, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _ := limiterFor(t, addr, 2, tt.failClosed)
			if rec := serve(l.Middleware()(okHandler), "user1"); rec.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantCode)
			}
		})
	}
}

func TestDisabledPassesThrough(t *testing.T) {
	var cfg Config
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	l := New(&cfg, nil, discard())
	if l.Enabled() {
		t.Fatal("limiter should be disabled by default")
	}
	for range 20 {
		if rec := serve(l.Middleware()(okHandler), "user1"); rec.Code != http.StatusCreated {
			t.Fatalf("status = %d", rec.Code)
		}
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"zero refill after default", Config{RefillPerSecond: -1}},
		{"bad capacity", Config{Capacity: -2}},
		{"bad ttl", Config{TTL: "later"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Finalize(nil); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestConfigEnv(t *testing.T) {
	t.Setenv("TEST_RL_ENABLED", "true")
	t.Setenv("TEST_RL_CAPACITY", "4")
	t.Setenv("TEST_RL_REFILL", "0.25")

	var c Config
	if err := c.Finalize(&Env{Enabled: "TEST_RL_ENABLED", Capacity: "TEST_RL_CAPACITY", RefillPerSecond: "TEST_RL_REFILL"}); err != nil {
		t.Fatal(err)
	}
	if !c.Enabled || c.Capacity != 4 || c.RefillPerSecond != 0.25 {
		t.Errorf("config = %+v", c)
	}
}
