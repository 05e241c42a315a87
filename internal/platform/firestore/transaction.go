package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// Transactions retry on contention up to txMaxAttempts and always run under
// a bounded deadline so a wedged commit cannot hold a request open.
const (
	txMaxAttempts = 5
	txDeadline    = 15 * time.Second
)

// TxFunc runs inside a Firestore transaction. Firestore requires all reads
// to happen before the first write.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// RunTransaction executes fn in a transaction on the given client.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc) error {
	if client == nil {
		return WrapError("transaction", errors.New("firestore: client is nil"))
	}
	if fn == nil {
		return WrapError("transaction", errors.New("firestore: transaction function is nil"))
	}

	txCtx := ctx
	if deadline, ok := ctx.Deadline(); !ok || time.Until(deadline) > txDeadline {
		var cancel context.CancelFunc
		txCtx, cancel = context.WithTimeout(ctx, txDeadline)
		defer cancel()
	}

	err := client.RunTransaction(txCtx, fn, firestore.MaxAttempts(txMaxAttempts))
	return WrapError("transaction", err)
}
