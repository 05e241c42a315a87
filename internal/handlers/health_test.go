package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/plateroute/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestHealthHandlersHealthz(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	handlers := NewHealthHandlers(
		WithHealthVersion("1.2.3"),
		WithHealthClock(func() time.Time { return now }),
	)

	rr := httptest.NewRecorder()
	handlers.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Status != domain.HealthStatusOK || body.Version != "1.2.3" {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestHealthHandlersReadyzSuccess(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Checks:      map[string]string{"firestore": domain.HealthStatusOK},
			Version:     "1.2.3",
			GeneratedAt: time.Now(),
		},
	}
	handlers := NewHealthHandlers(WithHealthRepository(repo))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var body healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if body.Checks["firestore"] != domain.HealthStatusOK {
		t.Fatalf("unexpected checks %#v", body.Checks)
	}
}

func TestHealthHandlersReadyzDegraded(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Status: domain.HealthStatusError,
			Checks: map[string]string{"firestore": "rpc error: unavailable"},
		},
	}
	handlers := NewHealthHandlers(WithHealthRepository(repo))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}

func TestHealthHandlersReadyzCollectError(t *testing.T) {
	handlers := NewHealthHandlers(WithHealthRepository(&stubHealthRepository{err: errors.New("boom")}))

	rr := httptest.NewRecorder()
	handlers.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503, got %d", rr.Code)
	}
}
