package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/repositories"
)

// Shared domain aliases keep service signatures terse.
type (
	Pagination       = domain.Pagination
	Actor            = domain.Actor
	Order            = domain.Order
	OrderLine        = domain.OrderLine
	OrderStatus      = domain.OrderStatus
	OrderType        = domain.OrderType
	PricingBreakdown = domain.PricingBreakdown
	PaymentRecord    = domain.PaymentRecord
	Address          = domain.Address
	MenuItem         = domain.MenuItem
	Restaurant       = domain.Restaurant
	UserAccount      = domain.UserAccount
	OrderListFilter  = repositories.OrderListFilter
)

// CatalogService supplies menu item snapshots. The core reads it exactly once,
// at order-creation time, so later catalog edits never leak into an order.
type CatalogService interface {
	GetMenuItem(ctx context.Context, restaurantID, itemID string) (MenuItem, error)
}

// RestaurantDirectory supplies restaurant projections for validation and authorization.
type RestaurantDirectory interface {
	GetRestaurant(ctx context.Context, restaurantID string) (Restaurant, error)
}

// UserDirectory resolves user accounts, used when assigning delivery drivers.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (UserAccount, error)
}

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	OrderNumber    string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// LineRequest is one requested order line before catalog resolution.
type LineRequest struct {
	ItemID          string
	Quantity        int
	SizeID          string
	OptionSelection []OptionSelection
}

// OptionSelection references one customization option on a menu item.
type OptionSelection struct {
	GroupID  string
	OptionID string
}

// PlaceOrderCommand carries everything needed to create an order at checkout.
type PlaceOrderCommand struct {
	CustomerID      string
	RestaurantID    string
	Lines           []LineRequest
	Type            OrderType
	DeliveryAddress *Address
	PaymentMethod   domain.PaymentMethod
	Tip             decimal.Decimal
	Metadata        map[string]any
}

// RepeatOrderCommand rebuilds a new order from a previous order's snapshot.
type RepeatOrderCommand struct {
	OrderID         string
	RequesterID     string
	DeliveryAddress *Address
	PaymentMethod   *domain.PaymentMethod
}

// TransitionCommand requests a status change on an order.
type TransitionCommand struct {
	OrderID string
	Target  OrderStatus
	Actor   Actor
	Details TransitionDetails
}

// TransitionDetails carries per-status side-effect payloads.
type TransitionDetails struct {
	EstimatedMinutes int
	DeliveredBy      string
	Signature        string
	PhotoURL         string
	Reason           string
}

// CancelOrderCommand cancels an order, recording reason and actor role.
type CancelOrderCommand struct {
	OrderID string
	Actor   Actor
	Reason  string
}

// AssignDriverCommand attaches a delivery driver to an order.
type AssignDriverCommand struct {
	OrderID  string
	DriverID string
	Actor    Actor
}

// SubmitFeedbackCommand records post-delivery feedback, once.
type SubmitFeedbackCommand struct {
	OrderID     string
	RequesterID string
	Rating      int
	Comment     string
}

// OrderService owns the order aggregate: creation, reads, and lifecycle transitions.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
	RepeatOrder(ctx context.Context, cmd RepeatOrderCommand) (Order, error)
	GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)
	TransitionStatus(ctx context.Context, cmd TransitionCommand) (Order, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error)
	AssignDriver(ctx context.Context, cmd AssignDriverCommand) (Order, error)
	SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Order, error)
}

// PaymentIntentResult returns the client-facing handle for a created intent.
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

// RefundCommand requests a full or partial refund on a completed payment.
type RefundCommand struct {
	OrderID string
	Actor   Actor
	Amount  *decimal.Decimal
	Reason  string
}

// RefundResult reports the settled refund.
type RefundResult struct {
	Order        Order
	RefundAmount decimal.Decimal
}

// PaymentService reconciles external gateway state onto order payment records.
type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, orderID, requesterID string) (PaymentIntentResult, error)
	ConfirmPayment(ctx context.Context, intentID string) (Order, error)
	HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error
	Refund(ctx context.Context, cmd RefundCommand) (RefundResult, error)
}
