package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/plateroute/api/internal/platform/firestore"
)

type txContextKey struct{}

// UnitOfWork implements repositories.UnitOfWork on top of Firestore
// transactions. The transaction handle travels through the context so
// repositories invoked inside fn join the same transaction.
type UnitOfWork struct {
	provider *pfirestore.Provider
}

// NewUnitOfWork constructs a Firestore-backed unit of work.
func NewUnitOfWork(provider *pfirestore.Provider) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("unit of work requires firestore provider")
	}
	return &UnitOfWork{provider: provider}, nil
}

// RunInTx executes fn inside one Firestore transaction. Firestore requires
// all transactional reads to happen before the first write; callers follow a
// read-then-write shape.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u == nil || u.provider == nil {
		return errors.New("unit of work not initialised")
	}
	if fn == nil {
		return errors.New("unit of work: fn is required")
	}
	return u.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(context.WithValue(txCtx, txContextKey{}, tx))
	})
}

// transactionFrom extracts the ambient transaction, if any.
func transactionFrom(ctx context.Context) (*firestore.Transaction, bool) {
	tx, ok := ctx.Value(txContextKey{}).(*firestore.Transaction)
	return tx, ok && tx != nil
}
