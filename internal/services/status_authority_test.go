package services

import (
	"errors"
	"testing"
	"time"

	domain "github.com/plateroute/api/internal/domain"
)

var transitionNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func deliveryOrder(status OrderStatus) Order {
	driverID := "user_driver"
	return Order{
		ID:           "ord_1",
		CustomerID:   "user_customer",
		RestaurantID: "rest_1",
		DriverID:     &driverID,
		Type:         domain.OrderTypeDelivery,
		Status:       status,
	}
}

func TestIsLegalTransition(t *testing.T) {
	cases := []struct {
		from, to OrderStatus
		want     bool
	}{
		{domain.OrderStatusPending, domain.OrderStatusConfirmed, true},
		{domain.OrderStatusPending, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPending, domain.OrderStatusPreparing, false},
		{domain.OrderStatusConfirmed, domain.OrderStatusPreparing, true},
		{domain.OrderStatusConfirmed, domain.OrderStatusCancelled, true},
		{domain.OrderStatusPreparing, domain.OrderStatusReadyForPickup, true},
		{domain.OrderStatusPreparing, domain.OrderStatusCancelled, true},
		{domain.OrderStatusReadyForPickup, domain.OrderStatusOutForDelivery, true},
		{domain.OrderStatusReadyForPickup, domain.OrderStatusDelivered, true},
		{domain.OrderStatusReadyForPickup, domain.OrderStatusCancelled, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusDelivered, true},
		{domain.OrderStatusOutForDelivery, domain.OrderStatusCancelled, true},
		{domain.OrderStatusDelivered, domain.OrderStatusCancelled, false},
		{domain.OrderStatusDelivered, domain.OrderStatusPending, false},
		{domain.OrderStatusCancelled, domain.OrderStatusConfirmed, false},
		{domain.OrderStatusRefunded, domain.OrderStatusPending, false},
		{domain.OrderStatusPending, domain.OrderStatusRefunded, false},
	}
	for _, tc := range cases {
		if got := IsLegalTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("IsLegalTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestApplyStatusChangeAuthorizationBeforeLegality(t *testing.T) {
	// Delivered from pending is both unauthorized and illegal for a customer;
	// the authorization failure must win.
	_, err := ApplyStatusChange(StatusChange{
		Order:  deliveryOrder(domain.OrderStatusPending),
		Target: domain.OrderStatusDelivered,
		Actor:  Actor{ID: "user_customer", Role: domain.RoleCustomer},
		Now:    transitionNow,
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestApplyStatusChangeOwnerConfirms(t *testing.T) {
	order, err := ApplyStatusChange(StatusChange{
		Order:             deliveryOrder(domain.OrderStatusPending),
		Target:            domain.OrderStatusConfirmed,
		Actor:             Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
		RestaurantOwnerID: "user_owner",
		Details:           TransitionDetails{EstimatedMinutes: 40},
		Now:               transitionNow,
	})
	if err != nil {
		t.Fatalf("ApplyStatusChange: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("status = %s", order.Status)
	}
	if order.Tracking.Confirmed == nil || order.Tracking.Confirmed.EstimatedMinutes != 40 {
		t.Error("confirmed stamp missing or wrong estimate")
	}
	if order.Tracking.EstimatedDeliveryAt == nil || !order.Tracking.EstimatedDeliveryAt.Equal(transitionNow.Add(40*time.Minute)) {
		t.Error("estimated delivery time not derived from estimate")
	}
}

func TestApplyStatusChangeRejectsForeignOwner(t *testing.T) {
	_, err := ApplyStatusChange(StatusChange{
		Order:             deliveryOrder(domain.OrderStatusPending),
		Target:            domain.OrderStatusConfirmed,
		Actor:             Actor{ID: "user_other", Role: domain.RoleRestaurantOwner},
		RestaurantOwnerID: "user_owner",
		Now:               transitionNow,
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestApplyStatusChangeSystemMayConfirm(t *testing.T) {
	order, err := ApplyStatusChange(StatusChange{
		Order:  deliveryOrder(domain.OrderStatusPending),
		Target: domain.OrderStatusConfirmed,
		Actor:  Actor{ID: "payments", Role: domain.RoleSystem},
		Now:    transitionNow,
	})
	if err != nil {
		t.Fatalf("ApplyStatusChange: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Errorf("status = %s", order.Status)
	}

	_, err = ApplyStatusChange(StatusChange{
		Order:  deliveryOrder(domain.OrderStatusConfirmed),
		Target: domain.OrderStatusPreparing,
		Actor:  Actor{ID: "payments", Role: domain.RoleSystem},
		Now:    transitionNow,
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("system actor beyond confirmation: err = %v, want ErrNotAuthorized", err)
	}
}

func TestApplyStatusChangeDriverFlow(t *testing.T) {
	driver := Actor{ID: "user_driver", Role: domain.RoleDeliveryDriver}

	order, err := ApplyStatusChange(StatusChange{
		Order:   deliveryOrder(domain.OrderStatusReadyForPickup),
		Target:  domain.OrderStatusOutForDelivery,
		Actor:   driver,
		Details: TransitionDetails{EstimatedMinutes: 15},
		Now:     transitionNow,
	})
	if err != nil {
		t.Fatalf("out for delivery: %v", err)
	}
	if order.Tracking.PickedUp == nil || order.Tracking.OutForDelivery == nil {
		t.Fatal("pickup and out-for-delivery stamps missing")
	}
	if order.Tracking.OutForDelivery.EstimatedArrivalAt == nil {
		t.Fatal("estimated arrival missing")
	}

	order, err = ApplyStatusChange(StatusChange{
		Order:   order,
		Target:  domain.OrderStatusDelivered,
		Actor:   driver,
		Details: TransitionDetails{Signature: "sig", PhotoURL: "https://cdn/p.jpg"},
		Now:     transitionNow.Add(15 * time.Minute),
	})
	if err != nil {
		t.Fatalf("delivered: %v", err)
	}
	if order.Tracking.Delivered == nil || order.Tracking.Delivered.DeliveredBy != "user_driver" {
		t.Error("delivered stamp should default DeliveredBy to the actor")
	}
	if order.Tracking.ActualDeliveryAt == nil {
		t.Error("actual delivery time missing")
	}
}

func TestApplyStatusChangeUnassignedDriverRejected(t *testing.T) {
	order := deliveryOrder(domain.OrderStatusReadyForPickup)
	order.DriverID = nil
	_, err := ApplyStatusChange(StatusChange{
		Order:  order,
		Target: domain.OrderStatusOutForDelivery,
		Actor:  Actor{ID: "user_driver", Role: domain.RoleDeliveryDriver},
		Now:    transitionNow,
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestApplyStatusChangePickupHandover(t *testing.T) {
	order := deliveryOrder(domain.OrderStatusReadyForPickup)
	order.Type = domain.OrderTypePickup
	order.DriverID = nil

	got, err := ApplyStatusChange(StatusChange{
		Order:             order,
		Target:            domain.OrderStatusDelivered,
		Actor:             Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
		RestaurantOwnerID: "user_owner",
		Now:               transitionNow,
	})
	if err != nil {
		t.Fatalf("pickup handover: %v", err)
	}
	if got.Status != domain.OrderStatusDelivered {
		t.Errorf("status = %s", got.Status)
	}
}

func TestApplyStatusChangeCustomerCancel(t *testing.T) {
	order, err := ApplyStatusChange(StatusChange{
		Order:   deliveryOrder(domain.OrderStatusPending),
		Target:  domain.OrderStatusCancelled,
		Actor:   Actor{ID: "user_customer", Role: domain.RoleCustomer},
		Details: TransitionDetails{Reason: "ordered by mistake"},
		Now:     transitionNow,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if order.Tracking.Cancelled == nil || order.Tracking.Cancelled.CancelledBy != domain.RoleCustomer {
		t.Error("cancellation stamp missing actor role")
	}
	if order.Tracking.Cancelled.Reason != "ordered by mistake" {
		t.Errorf("reason = %q", order.Tracking.Cancelled.Reason)
	}

	_, err = ApplyStatusChange(StatusChange{
		Order:  deliveryOrder(domain.OrderStatusPending),
		Target: domain.OrderStatusCancelled,
		Actor:  Actor{ID: "user_stranger", Role: domain.RoleCustomer},
		Now:    transitionNow,
	})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("foreign customer cancel: err = %v, want ErrNotAuthorized", err)
	}
}

func TestApplyStatusChangeCancelLateInFlow(t *testing.T) {
	// Cancellation stays open all the way until delivery.
	for _, status := range []OrderStatus{
		domain.OrderStatusPreparing,
		domain.OrderStatusReadyForPickup,
		domain.OrderStatusOutForDelivery,
	} {
		order, err := ApplyStatusChange(StatusChange{
			Order:             deliveryOrder(status),
			Target:            domain.OrderStatusCancelled,
			Actor:             Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
			RestaurantOwnerID: "user_owner",
			Details:           TransitionDetails{Reason: "kitchen fire"},
			Now:               transitionNow,
		})
		if err != nil {
			t.Fatalf("cancel from %s: %v", status, err)
		}
		if order.Tracking.Cancelled == nil || order.Tracking.Cancelled.CancelledBy != domain.RoleRestaurantOwner {
			t.Errorf("cancel from %s: cancellation stamp missing actor role", status)
		}
	}
}

func TestApplyStatusChangeIllegalAfterDelivered(t *testing.T) {
	_, err := ApplyStatusChange(StatusChange{
		Order:             deliveryOrder(domain.OrderStatusDelivered),
		Target:            domain.OrderStatusCancelled,
		Actor:             Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
		RestaurantOwnerID: "user_owner",
		Now:               transitionNow,
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
}

func TestApplyRefundBypassesAdjacency(t *testing.T) {
	order := ApplyRefund(deliveryOrder(domain.OrderStatusCancelled), transitionNow)
	if order.Status != domain.OrderStatusRefunded {
		t.Errorf("status = %s, want refunded", order.Status)
	}
	if !order.UpdatedAt.Equal(transitionNow) {
		t.Error("updatedAt not stamped")
	}
}
