package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/platform/auth"
	"github.com/plateroute/api/internal/platform/httpx"
	"github.com/plateroute/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	maxOrderBodySize     = 64 * 1024
	maxActionBodySize    = 8 * 1024
)

// OrderHandlers exposes the order lifecycle endpoints for authenticated users.
// Refunds live under /orders because they act on the order aggregate, but the
// settlement itself goes through the payment service.
type OrderHandlers struct {
	authn        *auth.Authenticator
	orders       services.OrderService
	payments     services.PaymentService
	placeLimiter func(http.Handler) http.Handler
}

// OrderOption customises the order handlers.
type OrderOption func(*OrderHandlers)

// WithPlacementLimiter throttles order placement only; reads and lifecycle
// actions stay unthrottled.
func WithPlacementLimiter(limiter func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.placeLimiter = limiter
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, payments services.PaymentService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		payments: payments,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	if h.placeLimiter != nil {
		r.With(h.placeLimiter).Post("/", h.placeOrder)
	} else {
		r.Post("/", h.placeOrder)
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:transition", h.transitionOrder)
	r.Post("/{orderID}:assign-driver", h.assignDriver)
	r.Post("/{orderID}:repeat", h.repeatOrder)
	r.Post("/{orderID}:refund", h.refundOrder)
	r.Post("/{orderID}/feedback", h.submitFeedback)
}

type addressRequest struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2"`
	City       string  `json:"city"`
	State      *string `json:"state"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone"`
}

func (a *addressRequest) toDomain() *domain.Address {
	if a == nil {
		return nil
	}
	return &domain.Address{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      a.Line2,
		City:       strings.TrimSpace(a.City),
		State:      a.State,
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
		Phone:      a.Phone,
	}
}

type orderLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
	SizeID   string `json:"size_id"`
	Options  []struct {
		GroupID  string `json:"group_id"`
		OptionID string `json:"option_id"`
	} `json:"options"`
}

type placeOrderRequest struct {
	RestaurantID    string             `json:"restaurant_id"`
	Type            string             `json:"type"`
	Items           []orderLineRequest `json:"items"`
	DeliveryAddress *addressRequest    `json:"delivery_address"`
	PaymentMethod   string             `json:"payment_method"`
	Tip             string             `json:"tip"`
	Metadata        map[string]any     `json:"metadata"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxOrderBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req placeOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	tip := decimal.Zero
	if strings.TrimSpace(req.Tip) != "" {
		tip, err = parseAmount(req.Tip)
		if err != nil || tip.IsNegative() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "tip must be a non-negative decimal amount", http.StatusBadRequest))
			return
		}
	}

	cmd := services.PlaceOrderCommand{
		CustomerID:      strings.TrimSpace(identity.UID),
		RestaurantID:    strings.TrimSpace(req.RestaurantID),
		Type:            services.OrderType(strings.TrimSpace(strings.ToLower(req.Type))),
		DeliveryAddress: req.DeliveryAddress.toDomain(),
		PaymentMethod:   domain.PaymentMethod(strings.TrimSpace(strings.ToLower(req.PaymentMethod))),
		Tip:             tip,
		Metadata:        cloneMap(req.Metadata),
	}
	for _, line := range req.Items {
		lineReq := services.LineRequest{
			ItemID:   strings.TrimSpace(line.ItemID),
			Quantity: line.Quantity,
			SizeID:   strings.TrimSpace(line.SizeID),
		}
		for _, opt := range line.Options {
			lineReq.OptionSelection = append(lineReq.OptionSelection, services.OptionSelection{
				GroupID:  strings.TrimSpace(opt.GroupID),
				OptionID: strings.TrimSpace(opt.OptionID),
			})
		}
		cmd.Lines = append(cmd.Lines, lineReq)
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}

	query := r.URL.Query()
	statusFilters := parseFilterValues(query["status"])

	var createdRange domain.RangeQuery[time.Time]
	if raw := strings.TrimSpace(query.Get("created_after")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_after must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		createdRange.From = &ts
	}
	if raw := strings.TrimSpace(query.Get("created_before")); raw != "" {
		ts, err := parseTimeParam(raw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "created_before must be a valid RFC3339 timestamp", http.StatusBadRequest))
			return
		}
		createdRange.To = &ts
	}

	pageSize := defaultOrderPageSize
	if sizeRaw := strings.TrimSpace(query.Get("page_size")); sizeRaw != "" {
		size, err := strconv.Atoi(sizeRaw)
		if err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page_size must be an integer", http.StatusBadRequest))
			return
		}
		switch {
		case size <= 0:
			pageSize = defaultOrderPageSize
		case size > maxOrderPageSize:
			pageSize = maxOrderPageSize
		default:
			pageSize = size
		}
	}

	filter := services.OrderListFilter{
		Status:       statusFilters,
		CreatedRange: createdRange,
		Pagination: services.Pagination{
			PageSize:  pageSize,
			PageToken: strings.TrimSpace(query.Get("page_token")),
		},
	}

	// Listings are scoped by role: customers see their own orders, owners see
	// their restaurant's, drivers see their assigned deliveries. Admins may
	// filter freely.
	actor := actorFromIdentity(identity)
	switch actor.Role {
	case auth.RoleAdmin:
		filter.CustomerID = strings.TrimSpace(query.Get("customer_id"))
		filter.RestaurantID = strings.TrimSpace(query.Get("restaurant_id"))
		filter.DriverID = strings.TrimSpace(query.Get("driver_id"))
	case auth.RoleRestaurantOwner:
		filter.RestaurantID = strings.TrimSpace(query.Get("restaurant_id"))
		if filter.RestaurantID == "" {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "restaurant_id is required", http.StatusBadRequest))
			return
		}
	case auth.RoleDeliveryDriver:
		filter.DriverID = actor.ID
	default:
		filter.CustomerID = actor.ID
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}

	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderSummary(order))
	}
	writeJSONResponse(w, http.StatusOK, orderListResponse{
		Items:         items,
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, actorFromIdentity(identity))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{
		OrderID: orderID,
		Actor:   actorFromIdentity(identity),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type transitionOrderRequest struct {
	Status           string `json:"status"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	DeliveredBy      string `json:"delivered_by"`
	Signature        string `json:"signature"`
	PhotoURL         string `json:"photo_url"`
	Reason           string `json:"reason"`
}

func (h *OrderHandlers) transitionOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req transitionOrderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "status is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.TransitionStatus(ctx, services.TransitionCommand{
		OrderID: orderID,
		Target:  services.OrderStatus(strings.TrimSpace(strings.ToLower(req.Status))),
		Actor:   actorFromIdentity(identity),
		Details: services.TransitionDetails{
			EstimatedMinutes: req.EstimatedMinutes,
			DeliveredBy:      strings.TrimSpace(req.DeliveredBy),
			Signature:        strings.TrimSpace(req.Signature),
			PhotoURL:         strings.TrimSpace(req.PhotoURL),
			Reason:           strings.TrimSpace(req.Reason),
		},
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

func (h *OrderHandlers) assignDriver(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req assignDriverRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.DriverID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "driver_id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.AssignDriver(ctx, services.AssignDriverCommand{
		OrderID:  orderID,
		DriverID: strings.TrimSpace(req.DriverID),
		Actor:    actorFromIdentity(identity),
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

type repeatOrderRequest struct {
	DeliveryAddress *addressRequest `json:"delivery_address"`
	PaymentMethod   *string         `json:"payment_method"`
}

func (h *OrderHandlers) repeatOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req repeatOrderRequest
	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	cmd := services.RepeatOrderCommand{
		OrderID:         orderID,
		RequesterID:     strings.TrimSpace(identity.UID),
		DeliveryAddress: req.DeliveryAddress.toDomain(),
	}
	if req.PaymentMethod != nil {
		method := domain.PaymentMethod(strings.TrimSpace(strings.ToLower(*req.PaymentMethod)))
		cmd.PaymentMethod = &method
	}

	order, err := h.orders.RepeatOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

type refundOrderRequest struct {
	Amount string `json:"amount"`
	Reason string `json:"reason"`
}

type refundResponse struct {
	Order        orderPayload `json:"order"`
	RefundAmount string       `json:"refund_amount"`
}

func (h *OrderHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.payments != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	var req refundOrderRequest
	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil && !errors.Is(err, errEmptyBody) {
		writeBodyError(ctx, w, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
			return
		}
	}

	cmd := services.RefundCommand{
		OrderID: orderID,
		Actor:   actorFromIdentity(identity),
		Reason:  strings.TrimSpace(req.Reason),
	}
	if strings.TrimSpace(req.Amount) != "" {
		amount, err := parseAmount(req.Amount)
		if err != nil || !amount.IsPositive() {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "amount must be a positive decimal amount", http.StatusBadRequest))
			return
		}
		cmd.Amount = &amount
	}

	result, err := h.payments.Refund(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, refundResponse{
		Order:        buildOrderPayload(result.Order),
		RefundAmount: formatAmount(result.RefundAmount),
	})
}

type feedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

func (h *OrderHandlers) submitFeedback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.orders != nil)
	if !ok {
		return
	}
	orderID, ok := requireOrderID(ctx, w, r)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxActionBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req feedbackRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}

	order, err := h.orders.SubmitFeedback(ctx, services.SubmitFeedbackCommand{
		OrderID:     orderID,
		RequesterID: strings.TrimSpace(identity.UID),
		Rating:      req.Rating,
		Comment:     req.Comment,
	})
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func requireIdentity(ctx context.Context, w http.ResponseWriter, serviceReady bool) (*auth.Identity, bool) {
	if !serviceReady {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return nil, false
	}
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func requireOrderID(ctx context.Context, w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return "", false
	}
	return orderID, true
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrEmptyOrder),
		errors.Is(err, services.ErrItemUnavailable),
		errors.Is(err, services.ErrInvalidSelection):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNotAuthorized):
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "not allowed to perform this action", http.StatusForbidden))
	case errors.Is(err, services.ErrIllegalTransition):
		httpx.WriteError(ctx, w, httpx.NewError("illegal_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotPayable):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_payable", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrInvalidSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "webhook signature verification failed", http.StatusUnauthorized))
	case errors.Is(err, services.ErrPaymentGateway):
		httpx.WriteError(ctx, w, httpx.NewError("payment_gateway_error", "payment gateway request failed", http.StatusBadGateway))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_error", "failed to process order request", http.StatusInternalServerError))
	}
}
