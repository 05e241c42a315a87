package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"
)

const countersCollection = "counters"

type counterDocument struct {
	Value     int64     `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// CounterRepository hands out order-number sequence values. Each counter is a
// single document incremented inside a transaction, which serialises
// concurrent checkouts on the same sequence.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.Collection[counterDocument]
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	return &CounterRepository{
		provider: provider,
		counters: pfirestore.NewCollection[counterDocument](provider, countersCollection),
	}, nil
}

// Next increments the counter and returns the new value, creating the
// document on first use. Runs its own transaction, so callers must not invoke
// it from inside another one.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if r == nil || r.provider == nil {
		return 0, errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return 0, errors.New("counter repository: counter id is required")
	}
	if step <= 0 {
		return 0, fmt.Errorf("counter repository: step must be positive, got %d", step)
	}

	var next int64
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.Doc(ctx, id)
		if err != nil {
			return err
		}

		doc := counterDocument{}
		snapshot, err := tx.Get(ref)
		switch status.Code(err) {
		case codes.OK:
			if err := snapshot.DataTo(&doc); err != nil {
				return fmt.Errorf("counter repository: decode %s: %w", id, err)
			}
		case codes.NotFound:
			// first use, start from zero
		default:
			return err
		}

		doc.Value += step
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		next = doc.Value
		return nil
	})
	if err != nil {
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return next, nil
}
