package firestore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind buckets Firestore failures into the categories the repository layer
// switches on.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindUnavailable
)

// Error carries an operation label and a failure kind alongside the cause.
// It satisfies the repositories.RepositoryError categorisation.
type Error struct {
	Op    string
	Kind  Kind
	cause error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Op == "" {
		return e.cause.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsNotFound reports whether the document does not exist.
func (e *Error) IsNotFound() bool { return e != nil && e.Kind == KindNotFound }

// IsConflict reports whether the write lost to a concurrent or conflicting
// mutation.
func (e *Error) IsConflict() bool { return e != nil && e.Kind == KindConflict }

// IsUnavailable reports whether the failure is a transient backend problem
// worth retrying.
func (e *Error) IsUnavailable() bool { return e != nil && e.Kind == KindUnavailable }

func classify(code codes.Code) Kind {
	switch code {
	case codes.NotFound:
		return KindNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted, codes.OutOfRange:
		return KindConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		return KindUnavailable
	default:
		return KindUnknown
	}
}

// WrapError attaches repository semantics to a Firestore failure. Context
// cancellations pass through untouched so callers can match on them, and an
// already-wrapped error keeps its original classification.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}

	var wrapped *Error
	if errors.As(err, &wrapped) {
		if wrapped.Op == "" {
			wrapped.Op = op
		}
		return wrapped
	}
	return &Error{Op: op, Kind: classify(status.Code(err)), cause: err}
}
