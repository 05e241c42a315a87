package firestore

import (
	"testing"
	"time"

	domain "github.com/plateroute/api/internal/domain"
)

func TestOrderDocumentKeepsDeliveryAddress(t *testing.T) {
	line2 := "Apt 4"
	state := "CA"
	phone := "+1-555-0100"
	order := domain.Order{
		ID:           "ord_1",
		OrderNumber:  "ORD17000000000001234",
		CustomerID:   "user_customer",
		RestaurantID: "rest_1",
		Type:         domain.OrderTypeDelivery,
		Status:       domain.OrderStatusPending,
		DeliveryAddress: &domain.Address{
			Line1:      "1 Market St",
			Line2:      &line2,
			City:       "San Francisco",
			State:      &state,
			PostalCode: "94105",
			Country:    "US",
			Phone:      &phone,
		},
		CreatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}

	got := decodeOrderDocument(order.ID, encodeOrderDocument(order))

	addr := got.DeliveryAddress
	if addr == nil {
		t.Fatal("delivery address dropped")
	}
	if addr.Line1 != "1 Market St" || addr.City != "San Francisco" || addr.PostalCode != "94105" || addr.Country != "US" {
		t.Errorf("address = %+v", addr)
	}
	if addr.Line2 == nil || *addr.Line2 != line2 {
		t.Error("line2 dropped")
	}
	if addr.State == nil || *addr.State != state {
		t.Error("state dropped")
	}
	if addr.Phone == nil || *addr.Phone != phone {
		t.Error("contact phone dropped")
	}
}
