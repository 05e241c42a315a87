package services

import "errors"

// Error kinds shared across the order core. Handlers map these onto transport
// status codes; services always wrap them with %w so callers can errors.Is.
var (
	// ErrInvalidInput signals malformed or missing request data.
	ErrInvalidInput = errors.New("orders: invalid input")
	// ErrNotFound indicates a referenced order, item, or user is absent.
	ErrNotFound = errors.New("orders: not found")
	// ErrNotAuthorized indicates the actor lacks the role or ownership for the action.
	ErrNotAuthorized = errors.New("orders: not authorized")
	// ErrIllegalTransition indicates the state machine rejects the target status.
	ErrIllegalTransition = errors.New("orders: illegal status transition")
	// ErrOrderNotPayable indicates payment preconditions are unmet.
	ErrOrderNotPayable = errors.New("orders: order not payable")
	// ErrPaymentGateway indicates an external gateway call failed; local state is unchanged.
	ErrPaymentGateway = errors.New("orders: payment gateway error")
	// ErrInvalidSignature indicates webhook authenticity verification failed.
	ErrInvalidSignature = errors.New("orders: invalid webhook signature")
	// ErrConflict indicates a duplicate or concurrently-modified record.
	ErrConflict = errors.New("orders: conflict")
)

// Pricing sentinels; all are ErrInvalidInput-kind failures at the transport layer.
var (
	// ErrEmptyOrder is returned when an order is placed without any lines.
	ErrEmptyOrder = errors.New("pricing: order must contain at least one item")
	// ErrItemUnavailable is returned when a requested catalog item is inactive at order time.
	ErrItemUnavailable = errors.New("pricing: item unavailable")
	// ErrInvalidSelection is returned when a referenced size or customization option does not exist.
	ErrInvalidSelection = errors.New("pricing: invalid selection")
)
