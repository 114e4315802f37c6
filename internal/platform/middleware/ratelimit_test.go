package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/inhalecare/inhalecare/internal/platform/auth"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		if err := handler(c); err != nil {
			t.Fatalf("request %d: unexpected error %v", i+1, err)
		}
	}

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
}

func TestRateLimit_PerAccountIsolation(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)

	call := func(account string) error {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(auth.WithAccountID(req.Context(), account))
		return handler(e.NewContext(req, httptest.NewRecorder()))
	}

	if err := call("acct-a"); err != nil {
		t.Fatalf("acct-a first request: %v", err)
	}
	if err := call("acct-a"); err == nil {
		t.Fatal("expected acct-a second request to be limited")
	}
	if err := call("acct-b"); err != nil {
		t.Errorf("expected acct-b to have its own bucket, got %v", err)
	}
}

func TestRateLimiterStore_EvictsIdleKeys(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Now()
	store.now = func() time.Time { return now }

	store.get("a")
	store.get("b")
	if store.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", store.size())
	}

	now = now.Add(2 * time.Minute)
	store.lastSweep = now.Add(-2 * time.Minute)
	store.get("c")
	if store.size() != 1 {
		t.Errorf("expected idle limiters evicted, got %d", store.size())
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 50 || cfg.BurstSize != 100 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}
