package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/payments"
	"github.com/plateroute/api/internal/repositories"
)

const (
	orderEventPaymentUpdated = "order.payment.updated"
	orderEventRefunded       = "order.refunded"

	defaultPaymentCurrency = "USD"
)

// systemActor performs transitions driven by gateway reconciliation rather
// than an authenticated caller.
var systemActor = Actor{ID: "payment-reconciliation", Role: domain.RoleSystem}

// PaymentServiceDeps bundles collaborators required to construct the payment service.
type PaymentServiceDeps struct {
	Orders      repositories.OrderRepository
	Restaurants RestaurantDirectory
	Provider    payments.Provider
	UnitOfWork  repositories.UnitOfWork
	Currency    string
	Clock       func() time.Time
	Events      OrderEventPublisher
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders      repositories.OrderRepository
	restaurants RestaurantDirectory
	provider    payments.Provider
	unitOfWork  repositories.UnitOfWork
	currency    string
	clock       func() time.Time
	events      OrderEventPublisher
	logger      func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService implementation.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Provider == nil {
		return nil, errors.New("payment service: gateway provider is required")
	}
	if deps.Restaurants == nil {
		return nil, errors.New("payment service: restaurant directory is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultPaymentCurrency
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders:      deps.Orders,
		restaurants: deps.Restaurants,
		provider:    deps.Provider,
		unitOfWork:  unit,
		currency:    currency,
		clock: func() time.Time {
			return clock().UTC()
		},
		events: deps.Events,
		logger: logger,
	}, nil
}

func (s *paymentService) CreatePaymentIntent(ctx context.Context, orderID, requesterID string) (PaymentIntentResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return PaymentIntentResult{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return PaymentIntentResult{}, s.mapRepositoryError(err)
	}
	if strings.TrimSpace(requesterID) != order.CustomerID {
		return PaymentIntentResult{}, fmt.Errorf("%w: only the ordering customer may pay", ErrNotAuthorized)
	}
	if err := payableState(order); err != nil {
		return PaymentIntentResult{}, err
	}

	amount := minorUnits(order.Pricing.Total)
	if amount <= 0 {
		return PaymentIntentResult{}, fmt.Errorf("%w: order total must be positive", ErrOrderNotPayable)
	}

	// The gateway call happens outside the transaction; a failure here leaves
	// the order untouched.
	intent, err := s.provider.CreateIntent(ctx, payments.IntentRequest{
		AmountMinor:    amount,
		Currency:       s.currency,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerID:     order.CustomerID,
		IdempotencyKey: "intent-" + order.ID,
	})
	if err != nil {
		return PaymentIntentResult{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if err := payableState(current); err != nil {
			return err
		}
		current.Payment.IntentID = intent.ID
		current.Payment.Status = domain.PaymentStatusProcessing
		current.UpdatedAt = s.clock()
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return PaymentIntentResult{}, err
	}

	s.logger(ctx, "payments.intent.created", map[string]any{
		"order":  order.ID,
		"intent": intent.ID,
		"amount": amount,
	})

	return PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		AmountMinor:  amount,
		Currency:     s.currency,
	}, nil
}

func (s *paymentService) ConfirmPayment(ctx context.Context, intentID string) (Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Order{}, fmt.Errorf("%w: intent id is required", ErrInvalidInput)
	}

	// The gateway is the source of truth for intent state; the caller's
	// claim of success is never trusted.
	intent, err := s.provider.RetrieveIntent(ctx, intentID)
	if err != nil {
		return Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	order, err := s.applyIntentStatus(ctx, intentID, intent.Status)
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *paymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	// Fail closed: anything short of a verified payload is treated as an
	// authenticity failure.
	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	var status payments.Status
	switch event.Type {
	case payments.EventPaymentSucceeded:
		status = payments.StatusSucceeded
	case payments.EventPaymentFailed:
		status = payments.StatusFailed
	default:
		// Unrecognised event types are acknowledged so the gateway stops
		// retrying them.
		s.logger(ctx, "payments.webhook.ignored", map[string]any{"type": event.Type, "event": event.ID})
		return nil
	}

	if _, err := s.applyIntentStatus(ctx, event.IntentID, status); err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger(ctx, "payments.webhook.unmatched", map[string]any{"intent": event.IntentID, "event": event.ID})
			return nil
		}
		return err
	}
	return nil
}

func (s *paymentService) Refund(ctx context.Context, cmd RefundCommand) (RefundResult, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return RefundResult{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return RefundResult{}, s.mapRepositoryError(err)
	}
	if err := s.authorizeRefund(ctx, order, cmd.Actor); err != nil {
		return RefundResult{}, err
	}
	if order.Payment.Status == domain.PaymentStatusRefunded {
		return RefundResult{}, fmt.Errorf("%w: payment already refunded", ErrConflict)
	}
	if order.Payment.Status != domain.PaymentStatusCompleted {
		return RefundResult{}, fmt.Errorf("%w: refunds require a completed payment", ErrOrderNotPayable)
	}
	if strings.TrimSpace(order.Payment.IntentID) == "" {
		return RefundResult{}, fmt.Errorf("%w: no payment intent on record", ErrOrderNotPayable)
	}

	amount := order.Pricing.Total
	if cmd.Amount != nil {
		amount = *cmd.Amount
	}
	if !amount.IsPositive() || amount.GreaterThan(order.Pricing.Total) {
		return RefundResult{}, fmt.Errorf("%w: refund amount must be positive and at most the order total", ErrInvalidInput)
	}

	refundMinor := minorUnits(amount)
	refund, err := s.provider.Refund(ctx, payments.RefundRequest{
		IntentID:       order.Payment.IntentID,
		AmountMinor:    &refundMinor,
		Reason:         cmd.Reason,
		IdempotencyKey: "refund-" + order.ID,
	})
	if err != nil {
		return RefundResult{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	if refund.Status != payments.StatusRefunded {
		return RefundResult{}, fmt.Errorf("%w: gateway reported refund status %s", ErrPaymentGateway, refund.Status)
	}

	now := s.clock()
	var updated Order
	err = s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if current.Payment.Status == domain.PaymentStatusRefunded {
			return fmt.Errorf("%w: payment already refunded", ErrConflict)
		}
		current.Payment.Status = domain.PaymentStatusRefunded
		current.Payment.RefundedAt = &now
		refunded := amount
		current.Payment.RefundAmount = &refunded
		current = ApplyRefund(current, now)
		if err := s.orders.Update(txCtx, current); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = current
		return nil
	})
	if err != nil {
		return RefundResult{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventRefunded,
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		CurrentStatus: string(updated.Status),
		ActorID:       cmd.Actor.ID,
		OccurredAt:    now,
		Metadata:      map[string]any{"amount": amount.StringFixed(2)},
	})

	return RefundResult{Order: updated, RefundAmount: amount}, nil
}

// applyIntentStatus maps a gateway intent state onto the order located by
// intent id. The read, the payment mapping, and any auto-confirmation happen
// inside one transaction, so a confirm call and a webhook racing on the same
// intent cannot double-apply.
func (s *paymentService) applyIntentStatus(ctx context.Context, intentID string, status payments.Status) (Order, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Order{}, fmt.Errorf("%w: intent id is required", ErrInvalidInput)
	}

	now := s.clock()
	var (
		updated    Order
		prevStatus OrderStatus
		changed    bool
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByIntentID(txCtx, intentID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		prevStatus = order.Status
		changed = false

		switch status {
		case payments.StatusSucceeded:
			if order.Payment.Status == domain.PaymentStatusCompleted {
				// Already reconciled by the other path; nothing to do.
				updated = order
				return nil
			}
			order.Payment.Status = domain.PaymentStatusCompleted
			order.Payment.TransactionID = intentID
			order.Payment.PaidAt = &now
			if order.Status == domain.OrderStatusPending {
				order, err = ApplyStatusChange(StatusChange{
					Order:  order,
					Target: domain.OrderStatusConfirmed,
					Actor:  systemActor,
					Now:    now,
				})
				if err != nil {
					return err
				}
			}
		case payments.StatusFailed:
			if order.Payment.Status == domain.PaymentStatusCompleted {
				// A failure arriving after settlement is stale, out-of-order
				// delivery. Keep the settled state and acknowledge so the
				// gateway stops retrying the event.
				s.logger(txCtx, "payments.reconcile.stale_failure", map[string]any{
					"order":  order.ID,
					"intent": intentID,
				})
				updated = order
				return nil
			}
			order.Payment.Status = domain.PaymentStatusFailed
		case payments.StatusRequiresAction, payments.StatusPending:
			if order.Payment.Status == domain.PaymentStatusCompleted {
				updated = order
				return nil
			}
			order.Payment.Status = domain.PaymentStatusProcessing
		default:
			return fmt.Errorf("%w: unexpected gateway status %s", ErrPaymentGateway, status)
		}

		order.UpdatedAt = now
		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if changed {
		s.publishEvent(ctx, OrderEvent{
			Type:           orderEventPaymentUpdated,
			OrderID:        updated.ID,
			OrderNumber:    updated.OrderNumber,
			PreviousStatus: string(prevStatus),
			CurrentStatus:  string(updated.Status),
			ActorID:        systemActor.ID,
			OccurredAt:     now,
			Metadata:       map[string]any{"paymentStatus": string(updated.Payment.Status)},
		})
	}

	return updated, nil
}

func (s *paymentService) authorizeRefund(ctx context.Context, order Order, actor Actor) error {
	switch actor.Role {
	case domain.RoleAdmin:
		return nil
	case domain.RoleCustomer:
		if actor.ID == order.CustomerID {
			return nil
		}
	case domain.RoleRestaurantOwner:
		restaurant, err := s.restaurants.GetRestaurant(ctx, order.RestaurantID)
		if err == nil && restaurant.OwnerID == actor.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: refund requires the customer, restaurant owner, or an admin", ErrNotAuthorized)
}

func (s *paymentService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("orders: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *paymentService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *paymentService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

// payableState guards intent creation: only unpaid pending orders may open a
// payment.
func payableState(order Order) error {
	if order.Status != domain.OrderStatusPending {
		return fmt.Errorf("%w: order status is %s", ErrOrderNotPayable, order.Status)
	}
	switch order.Payment.Status {
	case domain.PaymentStatusCompleted, domain.PaymentStatusRefunded:
		return fmt.Errorf("%w: payment already %s", ErrOrderNotPayable, order.Payment.Status)
	}
	return nil
}

// minorUnits converts a currency amount to the currency's minor unit.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}
