package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/repositories"
)

const (
	orderEventCreated           = "order.created"
	orderEventStatusChanged     = "order.status.changed"
	orderEventDriverAssigned    = "order.driver.assigned"
	orderEventFeedbackSubmitted = "order.feedback.submitted"

	orderIDPrefix      = "ord_"
	orderNumberCounter = "orders"
)

// Statuses a driver may still be attached in; once the order leaves the
// kitchen the assignment is fixed.
var driverAssignableStatuses = []OrderStatus{
	domain.OrderStatusConfirmed,
	domain.OrderStatusPreparing,
	domain.OrderStatusReadyForPickup,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Counters    repositories.CounterRepository
	Catalog     CatalogService
	Restaurants RestaurantDirectory
	Users       UserDirectory
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Sanitize    func(string) string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders      repositories.OrderRepository
	counters    repositories.CounterRepository
	catalog     CatalogService
	restaurants RestaurantDirectory
	users       UserDirectory
	unitOfWork  repositories.UnitOfWork
	clock       func() time.Time
	newID       func() string
	events      OrderEventPublisher
	sanitize    func(string) string
	logger      func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Counters == nil {
		return nil, errors.New("order service: counter repository is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("order service: catalog service is required")
	}
	if deps.Restaurants == nil {
		return nil, errors.New("order service: restaurant directory is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	sanitize := deps.Sanitize
	if sanitize == nil {
		policy := bluemonday.StrictPolicy()
		sanitize = policy.Sanitize
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:      deps.Orders,
		counters:    deps.Counters,
		catalog:     deps.Catalog,
		restaurants: deps.Restaurants,
		users:       deps.Users,
		unitOfWork:  unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		events:   deps.Events,
		sanitize: sanitize,
		logger:   logger,
	}, nil
}

func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return Order{}, fmt.Errorf("%w: customer id is required", ErrInvalidInput)
	}
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		return Order{}, fmt.Errorf("%w: restaurant id is required", ErrInvalidInput)
	}
	if len(cmd.Lines) == 0 {
		return Order{}, fmt.Errorf("%w: order must contain at least one item", ErrInvalidInput)
	}
	if cmd.Type != domain.OrderTypeDelivery && cmd.Type != domain.OrderTypePickup {
		return Order{}, fmt.Errorf("%w: unknown order type %q", ErrInvalidInput, cmd.Type)
	}
	if cmd.Type == domain.OrderTypeDelivery && cmd.DeliveryAddress == nil {
		return Order{}, fmt.Errorf("%w: delivery orders require a delivery address", ErrInvalidInput)
	}
	if !validPaymentMethod(cmd.PaymentMethod) {
		return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, cmd.PaymentMethod)
	}

	restaurant, err := s.activeRestaurant(ctx, restaurantID)
	if err != nil {
		return Order{}, err
	}

	menu, err := s.snapshotMenu(ctx, restaurantID, cmd.Lines)
	if err != nil {
		return Order{}, err
	}

	pricing, lines, err := ComputePricing(PricingInput{
		Lines:       cmd.Lines,
		Menu:        menu,
		DeliveryFee: restaurant.DeliveryFee,
		OrderType:   cmd.Type,
		Tip:         cmd.Tip,
	})
	if err != nil {
		return Order{}, mapPricingError(err)
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	order := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     number,
		CustomerID:      customerID,
		RestaurantID:    restaurantID,
		Type:            cmd.Type,
		Status:          domain.OrderStatusPending,
		Items:           lines,
		Pricing:         pricing,
		Payment:         domain.PaymentRecord{Method: cmd.PaymentMethod, Status: domain.PaymentStatusPending},
		DeliveryAddress: cloneAddress(cmd.DeliveryAddress),
		Metadata:        maps.Clone(cmd.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.Tracking.OrderPlaced = &domain.Stamp{At: now}
	if cmd.Type == domain.OrderTypeDelivery && restaurant.EstimatedDeliveryMinutes > 0 {
		eta := now.Add(time.Duration(restaurant.EstimatedDeliveryMinutes) * time.Minute)
		order.Tracking.EstimatedDeliveryAt = &eta
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CurrentStatus: string(order.Status),
		ActorID:       customerID,
		OccurredAt:    now,
		Metadata:      maps.Clone(order.Metadata),
	})

	return order, nil
}

func (s *orderService) RepeatOrder(ctx context.Context, cmd RepeatOrderCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	source, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if strings.TrimSpace(cmd.RequesterID) != source.CustomerID {
		return Order{}, fmt.Errorf("%w: only the original customer may repeat an order", ErrNotAuthorized)
	}

	if _, err := s.activeRestaurant(ctx, source.RestaurantID); err != nil {
		return Order{}, err
	}

	now := s.now()
	number, err := s.generateOrderNumber(ctx, now)
	if err != nil {
		return Order{}, err
	}

	method := source.Payment.Method
	if cmd.PaymentMethod != nil {
		if !validPaymentMethod(*cmd.PaymentMethod) {
			return Order{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidInput, *cmd.PaymentMethod)
		}
		method = *cmd.PaymentMethod
	}

	address := cloneAddress(source.DeliveryAddress)
	if cmd.DeliveryAddress != nil {
		address = cloneAddress(cmd.DeliveryAddress)
	}
	if source.Type == domain.OrderTypeDelivery && address == nil {
		return Order{}, fmt.Errorf("%w: delivery orders require a delivery address", ErrInvalidInput)
	}

	// The repeated order reuses the original snapshot and prices; the menu is
	// deliberately not re-resolved.
	reorder := Order{
		ID:              orderIDPrefix + s.newID(),
		OrderNumber:     number,
		CustomerID:      source.CustomerID,
		RestaurantID:    source.RestaurantID,
		Type:            source.Type,
		Status:          domain.OrderStatusPending,
		Items:           cloneOrderLines(source.Items),
		Pricing:         source.Pricing,
		Payment:         domain.PaymentRecord{Method: method, Status: domain.PaymentStatusPending},
		DeliveryAddress: address,
		Metadata: map[string]any{
			"reorderOf":                source.ID,
			"reorderSourceOrderNumber": source.OrderNumber,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	reorder.Tracking.OrderPlaced = &domain.Stamp{At: now}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, reorder); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       reorder.ID,
		OrderNumber:   reorder.OrderNumber,
		CurrentStatus: string(reorder.Status),
		ActorID:       source.CustomerID,
		OccurredAt:    now,
		Metadata:      maps.Clone(reorder.Metadata),
	})

	return reorder, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string, actor Actor) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, s.mapRepositoryError(err)
	}
	if err := s.authorizeRead(ctx, order, actor); err != nil {
		return Order{}, err
	}
	return order, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Order]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *orderService) TransitionStatus(ctx context.Context, cmd TransitionCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if cmd.Target == "" {
		return Order{}, fmt.Errorf("%w: target status is required", ErrInvalidInput)
	}

	now := s.now()
	var (
		updated    Order
		prevStatus OrderStatus
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		prevStatus = order.Status

		ownerID, err := s.restaurantOwnerID(txCtx, order.RestaurantID, cmd.Actor)
		if err != nil {
			return err
		}

		updated, err = ApplyStatusChange(StatusChange{
			Order:             order,
			Target:            cmd.Target,
			Actor:             cmd.Actor,
			RestaurantOwnerID: ownerID,
			Details:           cmd.Details,
			Now:               now,
		})
		if err != nil {
			return err
		}
		if err := s.orders.Update(txCtx, updated); err != nil {
			return s.mapRepositoryError(err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        updated.ID,
		OrderNumber:    updated.OrderNumber,
		PreviousStatus: string(prevStatus),
		CurrentStatus:  string(updated.Status),
		ActorID:        cmd.Actor.ID,
		OccurredAt:     now,
	})

	return updated, nil
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	return s.TransitionStatus(ctx, TransitionCommand{
		OrderID: cmd.OrderID,
		Target:  domain.OrderStatusCancelled,
		Actor:   cmd.Actor,
		Details: TransitionDetails{Reason: strings.TrimSpace(cmd.Reason)},
	})
}

func (s *orderService) AssignDriver(ctx context.Context, cmd AssignDriverCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	driverID := strings.TrimSpace(cmd.DriverID)
	if driverID == "" {
		return Order{}, fmt.Errorf("%w: driver id is required", ErrInvalidInput)
	}
	if s.users == nil {
		return Order{}, errors.New("order service: user directory not configured")
	}

	now := s.now()
	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}

		if cmd.Actor.Role != domain.RoleAdmin {
			ownerID, err := s.restaurantOwnerID(txCtx, order.RestaurantID, cmd.Actor)
			if err != nil {
				return err
			}
			if cmd.Actor.Role != domain.RoleRestaurantOwner || cmd.Actor.ID != ownerID {
				return fmt.Errorf("%w: driver assignment requires the restaurant owner", ErrNotAuthorized)
			}
		}

		if order.Type != domain.OrderTypeDelivery {
			return fmt.Errorf("%w: pickup orders do not take a driver", ErrInvalidInput)
		}
		if !statusIn(order.Status, driverAssignableStatuses) {
			return fmt.Errorf("%w: driver cannot be assigned while order is %s", ErrIllegalTransition, order.Status)
		}

		driver, err := s.users.GetUser(txCtx, driverID)
		if err != nil {
			return fmt.Errorf("%w: driver %s", ErrNotFound, driverID)
		}
		if driver.Role != domain.RoleDeliveryDriver || !driver.IsActive {
			return fmt.Errorf("%w: user %s is not an active delivery driver", ErrInvalidInput, driverID)
		}

		order.DriverID = &driver.ID
		order.DriverContact = &domain.DriverContact{Name: driver.Name, Phone: driver.Phone}
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventDriverAssigned,
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		CurrentStatus: string(updated.Status),
		ActorID:       cmd.Actor.ID,
		OccurredAt:    now,
		Metadata:      map[string]any{"driverId": driverID},
	})

	return updated, nil
}

func (s *orderService) SubmitFeedback(ctx context.Context, cmd SubmitFeedbackCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrInvalidInput)
	}
	if cmd.Rating < 1 || cmd.Rating > 5 {
		return Order{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrInvalidInput)
	}

	now := s.now()
	var updated Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		order, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return s.mapRepositoryError(err)
		}
		if strings.TrimSpace(cmd.RequesterID) != order.CustomerID {
			return fmt.Errorf("%w: only the ordering customer may leave feedback", ErrNotAuthorized)
		}
		if order.Status != domain.OrderStatusDelivered {
			return fmt.Errorf("%w: feedback requires a delivered order", ErrInvalidInput)
		}
		if order.Feedback != nil {
			return fmt.Errorf("%w: feedback already submitted", ErrConflict)
		}

		order.Feedback = &domain.OrderFeedback{
			Rating:      cmd.Rating,
			Comment:     strings.TrimSpace(s.sanitize(cmd.Comment)),
			SubmittedAt: now,
		}
		order.UpdatedAt = now

		if err := s.orders.Update(txCtx, order); err != nil {
			return s.mapRepositoryError(err)
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventFeedbackSubmitted,
		OrderID:       updated.ID,
		OrderNumber:   updated.OrderNumber,
		CurrentStatus: string(updated.Status),
		ActorID:       cmd.RequesterID,
		OccurredAt:    now,
		Metadata:      map[string]any{"rating": cmd.Rating},
	})

	return updated, nil
}

func (s *orderService) authorizeRead(ctx context.Context, order Order, actor Actor) error {
	switch actor.Role {
	case domain.RoleAdmin, domain.RoleSystem:
		return nil
	case domain.RoleCustomer:
		if actor.ID == order.CustomerID {
			return nil
		}
	case domain.RoleDeliveryDriver:
		if order.DriverID != nil && actor.ID == *order.DriverID {
			return nil
		}
	case domain.RoleRestaurantOwner:
		restaurant, err := s.restaurants.GetRestaurant(ctx, order.RestaurantID)
		if err == nil && restaurant.OwnerID == actor.ID {
			return nil
		}
	}
	return fmt.Errorf("%w: order %s is not visible to this account", ErrNotAuthorized, order.ID)
}

// restaurantOwnerID resolves the owner for ownership checks. The lookup is
// skipped for roles whose authorization never depends on it.
func (s *orderService) restaurantOwnerID(ctx context.Context, restaurantID string, actor Actor) (string, error) {
	if actor.Role != domain.RoleRestaurantOwner {
		return "", nil
	}
	restaurant, err := s.restaurants.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return "", fmt.Errorf("%w: restaurant %s", ErrNotFound, restaurantID)
	}
	return restaurant.OwnerID, nil
}

func (s *orderService) activeRestaurant(ctx context.Context, restaurantID string) (Restaurant, error) {
	restaurant, err := s.restaurants.GetRestaurant(ctx, restaurantID)
	if err != nil {
		return Restaurant{}, fmt.Errorf("%w: restaurant %s", ErrNotFound, restaurantID)
	}
	if !restaurant.IsActive {
		return Restaurant{}, fmt.Errorf("%w: restaurant %s is not accepting orders", ErrInvalidInput, restaurantID)
	}
	return restaurant, nil
}

func (s *orderService) snapshotMenu(ctx context.Context, restaurantID string, lines []LineRequest) (map[string]MenuItem, error) {
	menu := make(map[string]MenuItem, len(lines))
	for _, line := range lines {
		itemID := strings.TrimSpace(line.ItemID)
		if itemID == "" || menu[itemID].ID != "" {
			continue
		}
		item, err := s.catalog.GetMenuItem(ctx, restaurantID, itemID)
		if err != nil {
			return nil, fmt.Errorf("%w: menu item %s", ErrNotFound, itemID)
		}
		menu[itemID] = item
	}
	return menu, nil
}

func (s *orderService) mapRepositoryError(err error) error {
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

// generateOrderNumber builds the customer-facing reference: "ORD", the epoch
// milliseconds of creation, and a four-digit rolling sequence.
func (s *orderService) generateOrderNumber(ctx context.Context, now time.Time) (string, error) {
	seq, err := s.counters.Next(ctx, orderNumberCounter, 1)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD%d%04d", now.UnixMilli(), seq%10000), nil
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":   event.Type,
			"order":  event.OrderID,
			"error":  err.Error(),
			"status": event.CurrentStatus,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func mapPricingError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return err
	default:
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
}

func validPaymentMethod(method domain.PaymentMethod) bool {
	switch method {
	case domain.PaymentMethodCard, domain.PaymentMethodCash, domain.PaymentMethodPaypal, domain.PaymentMethodWallet:
		return true
	default:
		return false
	}
}

func statusIn(status OrderStatus, set []OrderStatus) bool {
	for _, candidate := range set {
		if candidate == status {
			return true
		}
	}
	return false
}

func cloneAddress(address *Address) *Address {
	if address == nil {
		return nil
	}
	copied := *address
	if address.Line2 != nil {
		line2 := *address.Line2
		copied.Line2 = &line2
	}
	if address.State != nil {
		state := *address.State
		copied.State = &state
	}
	return &copied
}

func cloneOrderLines(lines []OrderLine) []OrderLine {
	if len(lines) == 0 {
		return nil
	}
	copied := make([]OrderLine, len(lines))
	copy(copied, lines)
	for i, line := range lines {
		if line.Size != nil {
			size := *line.Size
			copied[i].Size = &size
		}
		if len(line.Customizations) > 0 {
			customizations := make([]domain.SelectedCustomization, len(line.Customizations))
			copy(customizations, line.Customizations)
			copied[i].Customizations = customizations
		}
	}
	return copied
}
