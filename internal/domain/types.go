package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// RangeQuery represents inclusive range filters for numeric or timestamp fields.
type RangeQuery[T comparable] struct {
	From *T
	To   *T
}

// Role constants for the marketplace actors supplied by the identity collaborator.
const (
	RoleCustomer        = "customer"
	RoleRestaurantOwner = "restaurant_owner"
	RoleDeliveryDriver  = "delivery_driver"
	RoleAdmin           = "admin"

	// RoleSystem is reserved for internal automation such as payment
	// reconciliation; it never arrives from the identity provider.
	RoleSystem = "system"
)

// Actor identifies the authenticated principal performing an operation.
type Actor struct {
	ID   string
	Role string
}

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order has been placed and awaits restaurant confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed indicates the restaurant accepted the order.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusPreparing indicates the kitchen is actively preparing the order.
	OrderStatusPreparing OrderStatus = "preparing"
	// OrderStatusReadyForPickup indicates preparation is complete and the order awaits handoff.
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	// OrderStatusOutForDelivery indicates a driver is delivering the order.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered indicates the order reached the customer.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was cancelled before completion.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded indicates payment was returned and the order is closed.
	OrderStatusRefunded OrderStatus = "refunded"
)

// OrderType distinguishes delivery orders from customer pickup.
type OrderType string

const (
	// OrderTypeDelivery routes the order through a delivery driver.
	OrderTypeDelivery OrderType = "delivery"
	// OrderTypePickup means the customer collects the order at the restaurant.
	OrderTypePickup OrderType = "pickup"
)

// PaymentMethod enumerates supported tender types.
type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodPaypal PaymentMethod = "paypal"
	PaymentMethodWallet PaymentMethod = "wallet"
)

// PaymentStatus enumerates reconciliation states against the external gateway.
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

// Order is the aggregate root for the order lifecycle, pricing, and settlement state.
type Order struct {
	ID              string
	OrderNumber     string
	CustomerID      string
	RestaurantID    string
	DriverID        *string
	DriverContact   *DriverContact
	Type            OrderType
	Status          OrderStatus
	Items           []OrderLine
	Pricing         PricingBreakdown
	Payment         PaymentRecord
	Tracking        OrderTracking
	Feedback        *OrderFeedback
	DeliveryAddress *Address
	Metadata        map[string]any
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderLine snapshots a catalog item at order time; it never follows later catalog edits.
type OrderLine struct {
	ItemID         string
	Name           string
	Description    string
	UnitPrice      decimal.Decimal
	Quantity       int
	Size           *SelectedSize
	Customizations []SelectedCustomization
	Subtotal       decimal.Decimal
}

// SelectedSize records the size choice and its snapshotted price.
type SelectedSize struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// SelectedCustomization records one chosen customization option and its price delta.
type SelectedCustomization struct {
	GroupID    string
	OptionID   string
	Name       string
	PriceDelta decimal.Decimal
}

// PricingBreakdown holds the monetary components of an order in decimal currency units.
type PricingBreakdown struct {
	Subtotal    decimal.Decimal
	Tax         decimal.Decimal
	DeliveryFee decimal.Decimal
	ServiceFee  decimal.Decimal
	Discount    decimal.Decimal
	Tip         decimal.Decimal
	Total       decimal.Decimal
}

// PaymentRecord tracks gateway reconciliation state for the order.
type PaymentRecord struct {
	Method        PaymentMethod
	Status        PaymentStatus
	TransactionID string
	IntentID      string
	PaidAt        *time.Time
	RefundedAt    *time.Time
	RefundAmount  *decimal.Decimal
}

// OrderTracking records timestamped fulfilment milestones. A milestone is nil until reached.
type OrderTracking struct {
	OrderPlaced         *Stamp
	Confirmed           *EstimateStamp
	PreparationStarted  *EstimateStamp
	ReadyForPickup      *Stamp
	PickedUp            *Stamp
	OutForDelivery      *ArrivalStamp
	Delivered           *DeliveredStamp
	Cancelled           *CancelledStamp
	EstimatedDeliveryAt *time.Time
	ActualDeliveryAt    *time.Time
}

// Stamp is a bare milestone timestamp.
type Stamp struct {
	At time.Time
}

// EstimateStamp couples a milestone timestamp with an estimated duration in minutes.
type EstimateStamp struct {
	At               time.Time
	EstimatedMinutes int
}

// ArrivalStamp couples the out-for-delivery timestamp with the estimated arrival time.
type ArrivalStamp struct {
	At                 time.Time
	EstimatedArrivalAt *time.Time
}

// DeliveredStamp records delivery completion and proof-of-delivery fields.
type DeliveredStamp struct {
	At          time.Time
	DeliveredBy string
	Signature   string
	PhotoURL    string
}

// CancelledStamp records who cancelled the order and why.
type CancelledStamp struct {
	At          time.Time
	Reason      string
	CancelledBy string
}

// OrderFeedback stores the post-delivery rating, settable once.
type OrderFeedback struct {
	Rating      int
	Comment     string
	SubmittedAt time.Time
}

// DriverContact denormalises assigned driver details onto the order.
type DriverContact struct {
	Name  string
	Phone string
}

// Address represents a delivery destination.
type Address struct {
	Line1      string
	Line2      *string
	City       string
	State      *string
	PostalCode string
	Country    string
	Phone      *string
}

// MenuItem is the catalog collaborator's snapshot of an item at read time.
type MenuItem struct {
	ID             string
	Name           string
	Description    string
	BasePrice      decimal.Decimal
	Available      bool
	Sizes          []MenuItemSize
	Customizations []MenuCustomization
}

// MenuItemSize is a size variant whose price replaces the base price when selected.
type MenuItemSize struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// MenuCustomization groups selectable options for a menu item.
type MenuCustomization struct {
	ID      string
	Name    string
	Options []CustomizationOption
}

// CustomizationOption is a single choice carrying a price delta.
type CustomizationOption struct {
	ID         string
	Name       string
	PriceDelta decimal.Decimal
}

// Restaurant is the restaurant collaborator's projection consumed by the order core.
type Restaurant struct {
	ID                       string
	OwnerID                  string
	IsActive                 bool
	DeliveryFee              decimal.Decimal
	EstimatedDeliveryMinutes int
}

// UserAccount is the user-directory projection used for driver assignment checks.
type UserAccount struct {
	ID       string
	Name     string
	Phone    string
	Role     string
	IsActive bool
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]string
	Version     string
	GeneratedAt time.Time
}
