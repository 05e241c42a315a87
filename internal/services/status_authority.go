package services

import (
	"fmt"
	"time"

	domain "github.com/plateroute/api/internal/domain"
)

// statusTransitions is the adjacency table of the order lifecycle. A target
// absent from a status's list is unreachable through the normal flow;
// refunded is reachable only through ApplyRefund.
var statusTransitions = map[OrderStatus][]OrderStatus{
	domain.OrderStatusPending:        {domain.OrderStatusConfirmed, domain.OrderStatusCancelled},
	domain.OrderStatusConfirmed:      {domain.OrderStatusPreparing, domain.OrderStatusCancelled},
	domain.OrderStatusPreparing:      {domain.OrderStatusReadyForPickup, domain.OrderStatusCancelled},
	domain.OrderStatusReadyForPickup: {domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusOutForDelivery: {domain.OrderStatusDelivered, domain.OrderStatusCancelled},
	domain.OrderStatusDelivered:      {},
	domain.OrderStatusCancelled:      {},
	domain.OrderStatusRefunded:       {},
}

// IsLegalTransition reports whether the adjacency table permits from -> to.
func IsLegalTransition(from, to OrderStatus) bool {
	for _, next := range statusTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StatusChange carries everything needed to rule on one transition request.
// RestaurantOwnerID is resolved by the caller so ownership checks need no
// further reads here.
type StatusChange struct {
	Order             Order
	Target            OrderStatus
	Actor             Actor
	RestaurantOwnerID string
	Details           TransitionDetails
	Now               time.Time
}

// ApplyStatusChange authorizes, validates, and applies a status transition,
// returning the updated order. Authorization is decided before legality so
// an unauthorized caller learns nothing about the order's current state.
func ApplyStatusChange(ch StatusChange) (Order, error) {
	if err := authorizeTransition(ch); err != nil {
		return Order{}, err
	}
	if !IsLegalTransition(ch.Order.Status, ch.Target) {
		return Order{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, ch.Order.Status, ch.Target)
	}

	order := ch.Order
	stampTransition(&order, ch)
	order.Status = ch.Target
	order.UpdatedAt = ch.Now
	return order, nil
}

// ApplyRefund marks an order refunded. Refunds follow settled gateway money
// rather than the fulfilment flow, so they bypass the adjacency table; the
// payment service is the only caller and owns the preconditions.
func ApplyRefund(order Order, now time.Time) Order {
	order.Status = domain.OrderStatusRefunded
	order.UpdatedAt = now
	return order
}

func authorizeTransition(ch StatusChange) error {
	actor := ch.Actor
	if actor.Role == domain.RoleAdmin {
		return nil
	}

	switch ch.Target {
	case domain.OrderStatusConfirmed:
		if actor.Role == domain.RoleSystem {
			return nil
		}
		return requireRestaurantOwner(ch)
	case domain.OrderStatusPreparing, domain.OrderStatusReadyForPickup:
		return requireRestaurantOwner(ch)
	case domain.OrderStatusOutForDelivery:
		return requireAssignedDriver(ch)
	case domain.OrderStatusDelivered:
		// Pickup orders are handed over by the restaurant, delivery orders
		// by the assigned driver.
		if ch.Order.Type == domain.OrderTypePickup {
			return requireRestaurantOwner(ch)
		}
		return requireAssignedDriver(ch)
	case domain.OrderStatusCancelled:
		if actor.Role == domain.RoleCustomer {
			if actor.ID == ch.Order.CustomerID {
				return nil
			}
			return fmt.Errorf("%w: customers may only cancel their own orders", ErrNotAuthorized)
		}
		return requireRestaurantOwner(ch)
	default:
		return fmt.Errorf("%w: status %s cannot be requested directly", ErrNotAuthorized, ch.Target)
	}
}

func requireRestaurantOwner(ch StatusChange) error {
	if ch.Actor.Role == domain.RoleRestaurantOwner && ch.Actor.ID == ch.RestaurantOwnerID {
		return nil
	}
	return fmt.Errorf("%w: %s requires the restaurant owner", ErrNotAuthorized, ch.Target)
}

func requireAssignedDriver(ch StatusChange) error {
	if ch.Actor.Role == domain.RoleDeliveryDriver &&
		ch.Order.DriverID != nil && ch.Actor.ID == *ch.Order.DriverID {
		return nil
	}
	return fmt.Errorf("%w: %s requires the assigned driver", ErrNotAuthorized, ch.Target)
}

func stampTransition(order *Order, ch StatusChange) {
	now := ch.Now
	switch ch.Target {
	case domain.OrderStatusConfirmed:
		order.Tracking.Confirmed = &domain.EstimateStamp{At: now, EstimatedMinutes: ch.Details.EstimatedMinutes}
		if ch.Details.EstimatedMinutes > 0 {
			eta := now.Add(time.Duration(ch.Details.EstimatedMinutes) * time.Minute)
			order.Tracking.EstimatedDeliveryAt = &eta
		}
	case domain.OrderStatusPreparing:
		order.Tracking.PreparationStarted = &domain.EstimateStamp{At: now, EstimatedMinutes: ch.Details.EstimatedMinutes}
	case domain.OrderStatusReadyForPickup:
		order.Tracking.ReadyForPickup = &domain.Stamp{At: now}
	case domain.OrderStatusOutForDelivery:
		order.Tracking.PickedUp = &domain.Stamp{At: now}
		stamp := &domain.ArrivalStamp{At: now}
		if ch.Details.EstimatedMinutes > 0 {
			eta := now.Add(time.Duration(ch.Details.EstimatedMinutes) * time.Minute)
			stamp.EstimatedArrivalAt = &eta
			order.Tracking.EstimatedDeliveryAt = &eta
		}
		order.Tracking.OutForDelivery = stamp
	case domain.OrderStatusDelivered:
		deliveredBy := ch.Details.DeliveredBy
		if deliveredBy == "" {
			deliveredBy = ch.Actor.ID
		}
		order.Tracking.Delivered = &domain.DeliveredStamp{
			At:          now,
			DeliveredBy: deliveredBy,
			Signature:   ch.Details.Signature,
			PhotoURL:    ch.Details.PhotoURL,
		}
		at := now
		order.Tracking.ActualDeliveryAt = &at
	case domain.OrderStatusCancelled:
		order.Tracking.Cancelled = &domain.CancelledStamp{
			At:          now,
			Reason:      ch.Details.Reason,
			CancelledBy: ch.Actor.Role,
		}
	}
}
