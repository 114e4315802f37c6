package db

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

func runReadiness(t *testing.T, checks ...Check) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := ReadinessHandler(checks...)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestReadiness_AllHealthy(t *testing.T) {
	ok := func(context.Context) error { return nil }
	rec, body := runReadiness(t, Check{Name: "database", Ping: ok}, Check{Name: "redis", Ping: ok})
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if body["status"] != "ready" {
		t.Errorf("expected ready, got %v", body["status"])
	}
}

func TestReadiness_FailingCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }
	rec, body := runReadiness(t, Check{Name: "database", Ping: down}, Check{Name: "redis", Ping: ok})
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	checks := body["checks"].(map[string]interface{})
	if checks["database"] != "connection refused" {
		t.Errorf("expected database failure detail, got %v", checks["database"])
	}
	if checks["redis"] != "ok" {
		t.Errorf("expected redis ok, got %v", checks["redis"])
	}
}

func TestStatsHandler_ReportsPoolCounters(t *testing.T) {
	cfg, err := pgxpool.ParseConfig("postgres://inhalecare@127.0.0.1:1/inhalecare")
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.MaxConns = 7
	// No connection is opened until the first acquire.
	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	defer pool.Close()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/stats", nil), rec)
	if err := StatsHandler(pool)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats PoolStats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.MaxConns != 7 || stats.TotalConns != 0 || stats.AcquiredConns != 0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
