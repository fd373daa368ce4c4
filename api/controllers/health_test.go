package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/teamup-app/teamup-backend/pkg/config"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func testConfig() *config.Config {
	return &config.Config{App: config.AppConfig{Env: "test"}}
}

func TestHealthLive(t *testing.T) {
	handler := HealthLive(testConfig())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := rec.Header().Get("X-TeamUp-Env"); got != "test" {
		t.Fatalf("expected env header got %q", got)
	}
}

func TestHealthReadyAllHealthy(t *testing.T) {
	handler := HealthReady(testConfig(), nil,
		ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		ReadinessCheck{Name: "redis", Pinger: stubPinger{}},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
}

func TestHealthReadyFailsWhenDependencyDown(t *testing.T) {
	handler := HealthReady(testConfig(), nil,
		ReadinessCheck{Name: "db", Pinger: stubPinger{}},
		ReadinessCheck{Name: "redis", Pinger: stubPinger{err: errors.New("connection refused")}},
	)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
}
