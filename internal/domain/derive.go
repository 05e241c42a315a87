package domain

import "time"

// Derived order properties are computed on read and never persisted.

// CanBeCancelled reports whether the order is still in a customer-cancellable state.
func (o Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusConfirmed
}

// IsTerminal reports whether the order has reached a state with no further transitions.
func (o Order) IsTerminal() bool {
	switch o.Status {
	case OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

// EstimatedTimeRemaining returns the time left until the estimated delivery,
// clamped at zero. It returns false when no estimate exists or the order is terminal.
func (o Order) EstimatedTimeRemaining(now time.Time) (time.Duration, bool) {
	if o.IsTerminal() || o.Tracking.EstimatedDeliveryAt == nil {
		return 0, false
	}
	remaining := o.Tracking.EstimatedDeliveryAt.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// StatusMessage renders a human-readable description of the current status.
func (o Order) StatusMessage() string {
	switch o.Status {
	case OrderStatusPending:
		return "Waiting for the restaurant to confirm your order"
	case OrderStatusConfirmed:
		return "Your order has been confirmed"
	case OrderStatusPreparing:
		return "The restaurant is preparing your order"
	case OrderStatusReadyForPickup:
		if o.Type == OrderTypePickup {
			return "Your order is ready for pickup"
		}
		return "Your order is ready and waiting for a driver"
	case OrderStatusOutForDelivery:
		return "Your order is on its way"
	case OrderStatusDelivered:
		return "Your order has been delivered"
	case OrderStatusCancelled:
		return "Your order was cancelled"
	case OrderStatusRefunded:
		return "Your order was refunded"
	}
	return "Unknown order status"
}
