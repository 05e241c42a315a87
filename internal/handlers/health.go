package handlers

import (
	"net/http"
	"time"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/repositories"
)

// HealthHandlers serves liveness and readiness probes.
type HealthHandlers struct {
	health    repositories.HealthRepository
	version   string
	startedAt time.Time
	clock     func() time.Time
}

// HealthOption customises the health handlers.
type HealthOption func(*HealthHandlers)

// WithHealthRepository wires the dependency probe used by /readyz.
func WithHealthRepository(repo repositories.HealthRepository) HealthOption {
	return func(h *HealthHandlers) {
		h.health = repo
	}
}

// WithHealthVersion reports the build version in probe responses.
func WithHealthVersion(version string) HealthOption {
	return func(h *HealthHandlers) {
		h.version = version
	}
}

// WithHealthClock overrides the time source, primarily for testing.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs health handlers with the provided options.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{
		clock:     time.Now,
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type healthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

// Healthz reports process liveness; it never touches downstream dependencies.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	writeJSONResponse(w, http.StatusOK, healthResponse{
		Status:    domain.HealthStatusOK,
		Version:   h.version,
		Uptime:    now.Sub(h.startedAt).Truncate(time.Second).String(),
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}

// Readyz probes downstream dependencies and reports 503 until they respond.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	now := h.clock()
	if h.health == nil {
		writeJSONResponse(w, http.StatusOK, healthResponse{
			Status:    domain.HealthStatusOK,
			Version:   h.version,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		return
	}

	report, err := h.health.Collect(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, healthResponse{
			Status:    domain.HealthStatusError,
			Version:   h.version,
			Timestamp: now.UTC().Format(time.RFC3339),
		})
		return
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, healthResponse{
		Status:    report.Status,
		Version:   report.Version,
		Checks:    report.Checks,
		Timestamp: now.UTC().Format(time.RFC3339),
	})
}
