package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/repositories"
)

type stubOrderRepo struct {
	insertFn       func(context.Context, domain.Order) error
	updateFn       func(context.Context, domain.Order) error
	findFn         func(context.Context, string) (domain.Order, error)
	findByIntentFn func(context.Context, string) (domain.Order, error)
	listFn         func(context.Context, repositories.OrderListFilter) (domain.CursorPage[domain.Order], error)
}

func (s *stubOrderRepo) Insert(ctx context.Context, order domain.Order) error {
	if s.insertFn != nil {
		return s.insertFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) Update(ctx context.Context, order domain.Order) error {
	if s.updateFn != nil {
		return s.updateFn(ctx, order)
	}
	return nil
}

func (s *stubOrderRepo) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if s.findFn != nil {
		return s.findFn(ctx, orderID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) FindByIntentID(ctx context.Context, intentID string) (domain.Order, error) {
	if s.findByIntentFn != nil {
		return s.findByIntentFn(ctx, intentID)
	}
	return domain.Order{}, errors.New("not implemented")
}

func (s *stubOrderRepo) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[domain.Order]{}, nil
}

type stubCounterRepo struct {
	nextFn func(context.Context, string, int64) (int64, error)
}

func (s *stubCounterRepo) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 1, nil
}

type stubCatalog struct {
	getFn func(context.Context, string, string) (MenuItem, error)
}

func (s *stubCatalog) GetMenuItem(ctx context.Context, restaurantID, itemID string) (MenuItem, error) {
	if s.getFn != nil {
		return s.getFn(ctx, restaurantID, itemID)
	}
	return MenuItem{}, errors.New("not implemented")
}

type stubRestaurants struct {
	getFn func(context.Context, string) (Restaurant, error)
}

func (s *stubRestaurants) GetRestaurant(ctx context.Context, restaurantID string) (Restaurant, error) {
	if s.getFn != nil {
		return s.getFn(ctx, restaurantID)
	}
	return Restaurant{}, errors.New("not implemented")
}

type stubUsers struct {
	getFn func(context.Context, string) (UserAccount, error)
}

func (s *stubUsers) GetUser(ctx context.Context, userID string) (UserAccount, error) {
	if s.getFn != nil {
		return s.getFn(ctx, userID)
	}
	return UserAccount{}, errors.New("not implemented")
}

type captureOrderEvents struct {
	events []OrderEvent
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return nil
}

var serviceNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func activeRestaurantStub() *stubRestaurants {
	return &stubRestaurants{getFn: func(_ context.Context, id string) (Restaurant, error) {
		return Restaurant{
			ID:                       id,
			OwnerID:                  "user_owner",
			IsActive:                 true,
			DeliveryFee:              dec("3.00"),
			EstimatedDeliveryMinutes: 45,
		}, nil
	}}
}

func catalogStub() *stubCatalog {
	menu := testMenu()
	return &stubCatalog{getFn: func(_ context.Context, _ string, itemID string) (MenuItem, error) {
		item, ok := menu[itemID]
		if !ok {
			return MenuItem{}, errors.New("catalog: not found")
		}
		return item, nil
	}}
}

func newTestOrderService(t *testing.T, deps OrderServiceDeps) OrderService {
	t.Helper()
	if deps.Orders == nil {
		deps.Orders = &stubOrderRepo{}
	}
	if deps.Counters == nil {
		deps.Counters = &stubCounterRepo{}
	}
	if deps.Catalog == nil {
		deps.Catalog = catalogStub()
	}
	if deps.Restaurants == nil {
		deps.Restaurants = activeRestaurantStub()
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return serviceNow }
	}
	svc, err := NewOrderService(deps)
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func placeCmd() PlaceOrderCommand {
	return PlaceOrderCommand{
		CustomerID:   "user_customer",
		RestaurantID: "rest_1",
		Lines: []LineRequest{
			{ItemID: "item_pizza", Quantity: 2, SizeID: "size_lg", OptionSelection: []OptionSelection{{GroupID: "grp_toppings", OptionID: "opt_cheese"}}},
			{ItemID: "item_soda", Quantity: 6},
		},
		Type:            domain.OrderTypeDelivery,
		DeliveryAddress: &Address{Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
		PaymentMethod:   domain.PaymentMethodCard,
		Tip:             dec("5.00"),
	}
}

func TestPlaceOrder(t *testing.T) {
	var inserted *domain.Order
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{insertFn: func(_ context.Context, order domain.Order) error {
			inserted = &order
			return nil
		}},
		Counters: &stubCounterRepo{nextFn: func(_ context.Context, counterID string, _ int64) (int64, error) {
			if counterID != "orders" {
				t.Errorf("counter id = %q", counterID)
			}
			return 12345, nil
		}},
		Events: events,
	})

	order, err := svc.PlaceOrder(context.Background(), placeCmd())
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if inserted == nil {
		t.Fatal("order not persisted")
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if !strings.HasPrefix(order.ID, "ord_") {
		t.Errorf("order id = %q", order.ID)
	}
	wantNumber := fmt.Sprintf("ORD%d2345", serviceNow.UnixMilli())
	if order.OrderNumber != wantNumber {
		t.Errorf("order number = %q, want %q", order.OrderNumber, wantNumber)
	}
	if !order.Pricing.Total.Equal(dec("63.00")) {
		t.Errorf("total = %s, want 63.00", order.Pricing.Total)
	}
	if order.Payment.Status != domain.PaymentStatusPending {
		t.Errorf("payment status = %s", order.Payment.Status)
	}
	if order.Tracking.OrderPlaced == nil {
		t.Error("order placed stamp missing")
	}
	if order.Tracking.EstimatedDeliveryAt == nil {
		t.Error("initial delivery estimate missing")
	}
	if len(events.events) != 1 || events.events[0].Type != orderEventCreated {
		t.Errorf("events = %+v", events.events)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{})

	cases := []struct {
		name   string
		mutate func(*PlaceOrderCommand)
		want   error
	}{
		{"missing customer", func(c *PlaceOrderCommand) { c.CustomerID = "" }, ErrInvalidInput},
		{"missing restaurant", func(c *PlaceOrderCommand) { c.RestaurantID = "" }, ErrInvalidInput},
		{"no lines", func(c *PlaceOrderCommand) { c.Lines = nil }, ErrInvalidInput},
		{"bad type", func(c *PlaceOrderCommand) { c.Type = "dine_in" }, ErrInvalidInput},
		{"delivery without address", func(c *PlaceOrderCommand) { c.DeliveryAddress = nil }, ErrInvalidInput},
		{"bad payment method", func(c *PlaceOrderCommand) { c.PaymentMethod = "check" }, ErrInvalidInput},
		{"unknown item", func(c *PlaceOrderCommand) { c.Lines[0].ItemID = "item_ghost" }, ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := placeCmd()
			tc.mutate(&cmd)
			if _, err := svc.PlaceOrder(context.Background(), cmd); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestPlaceOrderAcceptsEveryPaymentMethod(t *testing.T) {
	methods := []domain.PaymentMethod{
		domain.PaymentMethodCard,
		domain.PaymentMethodCash,
		domain.PaymentMethodPaypal,
		domain.PaymentMethodWallet,
	}
	svc := newTestOrderService(t, OrderServiceDeps{})
	for _, method := range methods {
		t.Run(string(method), func(t *testing.T) {
			cmd := placeCmd()
			cmd.PaymentMethod = method
			order, err := svc.PlaceOrder(context.Background(), cmd)
			if err != nil {
				t.Fatalf("PlaceOrder: %v", err)
			}
			if order.Payment.Method != method {
				t.Errorf("payment method = %s, want %s", order.Payment.Method, method)
			}
		})
	}
}

func TestPlaceOrderInactiveRestaurant(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{
		Restaurants: &stubRestaurants{getFn: func(_ context.Context, id string) (Restaurant, error) {
			return Restaurant{ID: id, OwnerID: "user_owner", IsActive: false}, nil
		}},
	})
	if _, err := svc.PlaceOrder(context.Background(), placeCmd()); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestPlaceOrderPickupSkipsDeliveryFee(t *testing.T) {
	cmd := placeCmd()
	cmd.Type = domain.OrderTypePickup
	cmd.DeliveryAddress = nil

	svc := newTestOrderService(t, OrderServiceDeps{})
	order, err := svc.PlaceOrder(context.Background(), cmd)
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if !order.Pricing.DeliveryFee.IsZero() {
		t.Errorf("delivery fee = %s, want 0", order.Pricing.DeliveryFee)
	}
}

func TestRepeatOrder(t *testing.T) {
	source := domain.Order{
		ID:           "ord_src",
		OrderNumber:  "ORD17000000000000001",
		CustomerID:   "user_customer",
		RestaurantID: "rest_1",
		Type:         domain.OrderTypeDelivery,
		Status:       domain.OrderStatusDelivered,
		Items: []OrderLine{
			{ItemID: "item_pizza", Name: "Margherita Pizza", UnitPrice: dec("17.50"), Quantity: 2, Subtotal: dec("35.00")},
		},
		Pricing:         PricingBreakdown{Subtotal: dec("35.00"), Total: dec("40.80")},
		Payment:         domain.PaymentRecord{Method: domain.PaymentMethodCard, Status: domain.PaymentStatusCompleted},
		DeliveryAddress: &Address{Line1: "1 Main St", City: "Springfield", PostalCode: "12345", Country: "US"},
	}

	var inserted *domain.Order
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, id string) (domain.Order, error) {
				if id != source.ID {
					return domain.Order{}, errors.New("wrong id")
				}
				return source, nil
			},
			insertFn: func(_ context.Context, order domain.Order) error {
				inserted = &order
				return nil
			},
		},
	})

	reorder, err := svc.RepeatOrder(context.Background(), RepeatOrderCommand{OrderID: "ord_src", RequesterID: "user_customer"})
	if err != nil {
		t.Fatalf("RepeatOrder: %v", err)
	}
	if inserted == nil {
		t.Fatal("reorder not persisted")
	}
	if reorder.ID == source.ID || reorder.OrderNumber == source.OrderNumber {
		t.Error("reorder must get a fresh id and number")
	}
	if reorder.Status != domain.OrderStatusPending {
		t.Errorf("status = %s", reorder.Status)
	}
	if !reorder.Pricing.Total.Equal(source.Pricing.Total) {
		t.Error("reorder must keep the original price snapshot")
	}
	if reorder.Payment.Status != domain.PaymentStatusPending {
		t.Errorf("payment status = %s, want pending", reorder.Payment.Status)
	}
	if reorder.Metadata["reorderOf"] != source.ID {
		t.Errorf("metadata = %v", reorder.Metadata)
	}
}

func TestRepeatOrderRequiresOriginalCustomer(t *testing.T) {
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{findFn: func(_ context.Context, _ string) (domain.Order, error) {
			return domain.Order{ID: "ord_src", CustomerID: "user_customer"}, nil
		}},
	})
	_, err := svc.RepeatOrder(context.Background(), RepeatOrderCommand{OrderID: "ord_src", RequesterID: "user_other"})
	if !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("err = %v, want ErrNotAuthorized", err)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	driverID := "user_driver"
	order := domain.Order{
		ID:           "ord_1",
		CustomerID:   "user_customer",
		RestaurantID: "rest_1",
		DriverID:     &driverID,
	}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{findFn: func(_ context.Context, _ string) (domain.Order, error) {
			return order, nil
		}},
	})

	cases := []struct {
		name    string
		actor   Actor
		wantErr bool
	}{
		{"customer owns order", Actor{ID: "user_customer", Role: domain.RoleCustomer}, false},
		{"foreign customer", Actor{ID: "user_other", Role: domain.RoleCustomer}, true},
		{"assigned driver", Actor{ID: "user_driver", Role: domain.RoleDeliveryDriver}, false},
		{"other driver", Actor{ID: "user_other", Role: domain.RoleDeliveryDriver}, true},
		{"restaurant owner", Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner}, false},
		{"foreign owner", Actor{ID: "user_other", Role: domain.RoleRestaurantOwner}, true},
		{"admin", Actor{ID: "user_admin", Role: domain.RoleAdmin}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetOrder(context.Background(), "ord_1", tc.actor)
			if tc.wantErr && !errors.Is(err, ErrNotAuthorized) {
				t.Fatalf("err = %v, want ErrNotAuthorized", err)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("GetOrder: %v", err)
			}
		})
	}
}

func TestTransitionStatusPersistsAndPublishes(t *testing.T) {
	var updated *domain.Order
	events := &captureOrderEvents{}
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, _ string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", RestaurantID: "rest_1", Status: domain.OrderStatusPending}, nil
			},
			updateFn: func(_ context.Context, order domain.Order) error {
				updated = &order
				return nil
			},
		},
		Events: events,
	})

	order, err := svc.TransitionStatus(context.Background(), TransitionCommand{
		OrderID: "ord_1",
		Target:  domain.OrderStatusConfirmed,
		Actor:   Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
		Details: TransitionDetails{EstimatedMinutes: 30},
	})
	if err != nil {
		t.Fatalf("TransitionStatus: %v", err)
	}
	if updated == nil || updated.Status != domain.OrderStatusConfirmed {
		t.Fatal("confirmed order not persisted")
	}
	if order.Tracking.Confirmed == nil {
		t.Error("confirmation stamp missing")
	}
	if len(events.events) != 1 || events.events[0].PreviousStatus != string(domain.OrderStatusPending) {
		t.Errorf("events = %+v", events.events)
	}
}

func TestTransitionStatusRejectedNotPersisted(t *testing.T) {
	updates := 0
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, _ string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", RestaurantID: "rest_1", Status: domain.OrderStatusPreparing}, nil
			},
			updateFn: func(_ context.Context, _ domain.Order) error {
				updates++
				return nil
			},
		},
	})

	_, err := svc.TransitionStatus(context.Background(), TransitionCommand{
		OrderID: "ord_1",
		Target:  domain.OrderStatusCancelled,
		Actor:   Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
	})
	if !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("err = %v, want ErrIllegalTransition", err)
	}
	if updates != 0 {
		t.Error("rejected transition must not write")
	}
}

func TestCancelOrderStampsReason(t *testing.T) {
	var updated *domain.Order
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, _ string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", CustomerID: "user_customer", RestaurantID: "rest_1", Status: domain.OrderStatusPending}, nil
			},
			updateFn: func(_ context.Context, order domain.Order) error {
				updated = &order
				return nil
			},
		},
	})

	_, err := svc.CancelOrder(context.Background(), CancelOrderCommand{
		OrderID: "ord_1",
		Actor:   Actor{ID: "user_customer", Role: domain.RoleCustomer},
		Reason:  "changed my mind",
	})
	if err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if updated == nil || updated.Tracking.Cancelled == nil {
		t.Fatal("cancellation not persisted")
	}
	if updated.Tracking.Cancelled.Reason != "changed my mind" {
		t.Errorf("reason = %q", updated.Tracking.Cancelled.Reason)
	}
}

func TestAssignDriver(t *testing.T) {
	var updated *domain.Order
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, _ string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", RestaurantID: "rest_1", Type: domain.OrderTypeDelivery, Status: domain.OrderStatusPreparing}, nil
			},
			updateFn: func(_ context.Context, order domain.Order) error {
				updated = &order
				return nil
			},
		},
		Users: &stubUsers{getFn: func(_ context.Context, id string) (UserAccount, error) {
			return UserAccount{ID: id, Name: "Dana Driver", Phone: "+15551234", Role: domain.RoleDeliveryDriver, IsActive: true}, nil
		}},
	})

	order, err := svc.AssignDriver(context.Background(), AssignDriverCommand{
		OrderID:  "ord_1",
		DriverID: "user_driver",
		Actor:    Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
	})
	if err != nil {
		t.Fatalf("AssignDriver: %v", err)
	}
	if updated == nil {
		t.Fatal("assignment not persisted")
	}
	if order.DriverID == nil || *order.DriverID != "user_driver" {
		t.Error("driver id not set")
	}
	if order.DriverContact == nil || order.DriverContact.Name != "Dana Driver" {
		t.Error("driver contact not denormalised")
	}
}

func TestAssignDriverRejections(t *testing.T) {
	baseOrder := func() domain.Order {
		return domain.Order{ID: "ord_1", RestaurantID: "rest_1", Type: domain.OrderTypeDelivery, Status: domain.OrderStatusPreparing}
	}
	activeDriver := &stubUsers{getFn: func(_ context.Context, id string) (UserAccount, error) {
		return UserAccount{ID: id, Role: domain.RoleDeliveryDriver, IsActive: true}, nil
	}}

	cases := []struct {
		name   string
		order  func() domain.Order
		users  *stubUsers
		actor  Actor
		want   error
	}{
		{
			name:  "customer cannot assign",
			order: baseOrder,
			users: activeDriver,
			actor: Actor{ID: "user_customer", Role: domain.RoleCustomer},
			want:  ErrNotAuthorized,
		},
		{
			name: "pickup order",
			order: func() domain.Order {
				order := baseOrder()
				order.Type = domain.OrderTypePickup
				return order
			},
			users: activeDriver,
			actor: Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
			want:  ErrInvalidInput,
		},
		{
			name: "already out for delivery",
			order: func() domain.Order {
				order := baseOrder()
				order.Status = domain.OrderStatusOutForDelivery
				return order
			},
			users: activeDriver,
			actor: Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
			want:  ErrIllegalTransition,
		},
		{
			name:  "inactive driver",
			order: baseOrder,
			users: &stubUsers{getFn: func(_ context.Context, id string) (UserAccount, error) {
				return UserAccount{ID: id, Role: domain.RoleDeliveryDriver, IsActive: false}, nil
			}},
			actor: Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
			want:  ErrInvalidInput,
		},
		{
			name:  "not a driver",
			order: baseOrder,
			users: &stubUsers{getFn: func(_ context.Context, id string) (UserAccount, error) {
				return UserAccount{ID: id, Role: domain.RoleCustomer, IsActive: true}, nil
			}},
			actor: Actor{ID: "user_owner", Role: domain.RoleRestaurantOwner},
			want:  ErrInvalidInput,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestOrderService(t, OrderServiceDeps{
				Orders: &stubOrderRepo{findFn: func(_ context.Context, _ string) (domain.Order, error) {
					return tc.order(), nil
				}},
				Users: tc.users,
			})
			_, err := svc.AssignDriver(context.Background(), AssignDriverCommand{
				OrderID:  "ord_1",
				DriverID: "user_driver",
				Actor:    tc.actor,
			})
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestSubmitFeedback(t *testing.T) {
	var updated *domain.Order
	svc := newTestOrderService(t, OrderServiceDeps{
		Orders: &stubOrderRepo{
			findFn: func(_ context.Context, _ string) (domain.Order, error) {
				return domain.Order{ID: "ord_1", CustomerID: "user_customer", Status: domain.OrderStatusDelivered}, nil
			},
			updateFn: func(_ context.Context, order domain.Order) error {
				updated = &order
				return nil
			},
		},
	})

	order, err := svc.SubmitFeedback(context.Background(), SubmitFeedbackCommand{
		OrderID:     "ord_1",
		RequesterID: "user_customer",
		Rating:      5,
		Comment:     "Great food <script>alert(1)</script>",
	})
	if err != nil {
		t.Fatalf("SubmitFeedback: %v", err)
	}
	if updated == nil || order.Feedback == nil {
		t.Fatal("feedback not persisted")
	}
	if order.Feedback.Rating != 5 {
		t.Errorf("rating = %d", order.Feedback.Rating)
	}
	if strings.Contains(order.Feedback.Comment, "<script>") {
		t.Errorf("comment not sanitised: %q", order.Feedback.Comment)
	}
}

func TestSubmitFeedbackRejections(t *testing.T) {
	delivered := func() domain.Order {
		return domain.Order{ID: "ord_1", CustomerID: "user_customer", Status: domain.OrderStatusDelivered}
	}
	cases := []struct {
		name  string
		order func() domain.Order
		cmd   SubmitFeedbackCommand
		want  error
	}{
		{
			name:  "rating too low",
			order: delivered,
			cmd:   SubmitFeedbackCommand{OrderID: "ord_1", RequesterID: "user_customer", Rating: 0},
			want:  ErrInvalidInput,
		},
		{
			name:  "rating too high",
			order: delivered,
			cmd:   SubmitFeedbackCommand{OrderID: "ord_1", RequesterID: "user_customer", Rating: 6},
			want:  ErrInvalidInput,
		},
		{
			name:  "foreign requester",
			order: delivered,
			cmd:   SubmitFeedbackCommand{OrderID: "ord_1", RequesterID: "user_other", Rating: 4},
			want:  ErrNotAuthorized,
		},
		{
			name: "not delivered",
			order: func() domain.Order {
				order := delivered()
				order.Status = domain.OrderStatusPreparing
				return order
			},
			cmd:  SubmitFeedbackCommand{OrderID: "ord_1", RequesterID: "user_customer", Rating: 4},
			want: ErrInvalidInput,
		},
		{
			name: "duplicate feedback",
			order: func() domain.Order {
				order := delivered()
				order.Feedback = &domain.OrderFeedback{Rating: 4, SubmittedAt: serviceNow}
				return order
			},
			cmd:  SubmitFeedbackCommand{OrderID: "ord_1", RequesterID: "user_customer", Rating: 4},
			want: ErrConflict,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestOrderService(t, OrderServiceDeps{
				Orders: &stubOrderRepo{findFn: func(_ context.Context, _ string) (domain.Order, error) {
					return tc.order(), nil
				}},
			})
			if _, err := svc.SubmitFeedback(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}
