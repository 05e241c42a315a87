package ratelimit

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	defaultCollection  = "rate_limits"
	defaultMaxAttempts = 5
)

// FirestoreOption customises the FirestoreStore behaviour.
type FirestoreOption func(*FirestoreStore)

// WithCollection overrides the collection name used to store rate limit windows.
func WithCollection(name string) FirestoreOption {
	return func(store *FirestoreStore) {
		if name != "" {
			store.collection = name
		}
	}
}

// WithMaxAttempts configures the transaction retry attempts.
func WithMaxAttempts(attempts int) FirestoreOption {
	return func(store *FirestoreStore) {
		if attempts > 0 {
			store.maxAttempts = attempts
		}
	}
}

// FirestoreStore implements Store backed by Google Cloud Firestore, so the
// limit holds across replicas rather than per process.
type FirestoreStore struct {
	client      *firestore.Client
	collection  string
	maxAttempts int
}

// NewFirestoreStore constructs a Firestore-backed rate limit store.
func NewFirestoreStore(client *firestore.Client, opts ...FirestoreOption) *FirestoreStore {
	store := &FirestoreStore{
		client:      client,
		collection:  defaultCollection,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

type windowDocument struct {
	Key         string    `firestore:"key"`
	Count       int       `firestore:"count"`
	WindowStart time.Time `firestore:"window_start"`
	ResetAt     time.Time `firestore:"reset_at"`
	UpdatedAt   time.Time `firestore:"updated_at"`
}

// Increment implements the Store interface using a transactional
// read-modify-write on the per-key window document.
func (s *FirestoreStore) Increment(ctx context.Context, key string, now time.Time, window time.Duration) (int, error) {
	now = now.UTC()
	if window <= 0 {
		window = DefaultWindow
	}

	ref := s.client.Collection(s.collection).Doc(documentID(key))
	attempts := s.maxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var count int
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		doc := windowDocument{Key: key}
		if err == nil {
			if err := snap.DataTo(&doc); err != nil {
				return err
			}
		}

		if doc.ResetAt.IsZero() || !now.Before(doc.ResetAt) {
			doc.Count = 1
			doc.WindowStart = now
			doc.ResetAt = now.Add(window)
		} else {
			doc.Count++
		}
		doc.UpdatedAt = now

		if err := tx.Set(ref, doc); err != nil {
			return err
		}
		count = doc.Count
		return nil
	}, firestore.MaxAttempts(attempts))

	return count, err
}
