package firestore

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/iterator"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"

	domain "github.com/plateroute/api/internal/domain"
)

// HealthRepository probes Firestore reachability for health endpoints.
type HealthRepository struct {
	provider *pfirestore.Provider
	version  string
}

// NewHealthRepository constructs a Firestore-backed health prober.
func NewHealthRepository(provider *pfirestore.Provider, version string) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("health repository requires firestore provider")
	}
	return &HealthRepository{provider: provider, version: version}, nil
}

// Collect performs a cheap read against Firestore and reports the result.
func (r *HealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if r == nil || r.provider == nil {
		return domain.SystemHealthReport{}, errors.New("health repository not initialised")
	}

	report := domain.SystemHealthReport{
		Status:      domain.HealthStatusOK,
		Checks:      map[string]string{"firestore": domain.HealthStatusOK},
		Version:     r.version,
		GeneratedAt: time.Now().UTC(),
	}

	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	client, err := r.provider.Client(probeCtx)
	if err != nil {
		report.Status = domain.HealthStatusError
		report.Checks["firestore"] = err.Error()
		return report, nil
	}

	iter := client.Collections(probeCtx)
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		report.Status = domain.HealthStatusError
		report.Checks["firestore"] = err.Error()
	}
	return report, nil
}
