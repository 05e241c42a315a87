package handlers

import (
	"strings"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/services"
)

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type orderSummaryPayload struct {
	ID           string `json:"id"`
	OrderNumber  string `json:"order_number"`
	RestaurantID string `json:"restaurant_id"`
	Type         string `json:"type"`
	Status       string `json:"status"`
	Total        string `json:"total"`
	CreatedAt    string `json:"created_at"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderPayload struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"order_number"`
	CustomerID      string                `json:"customer_id"`
	RestaurantID    string                `json:"restaurant_id"`
	DriverID        *string               `json:"driver_id,omitempty"`
	DriverContact   *driverContactPayload `json:"driver_contact,omitempty"`
	Type            string                `json:"type"`
	Status          string                `json:"status"`
	Items           []orderLinePayload    `json:"items"`
	Pricing         pricingPayload        `json:"pricing"`
	Payment         paymentPayload        `json:"payment"`
	Tracking        trackingPayload       `json:"tracking"`
	Feedback        *feedbackPayload      `json:"feedback,omitempty"`
	DeliveryAddress *addressPayload       `json:"delivery_address,omitempty"`
	Metadata        map[string]any        `json:"metadata,omitempty"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at,omitempty"`
}

type orderLinePayload struct {
	ItemID         string                 `json:"item_id"`
	Name           string                 `json:"name"`
	Description    string                 `json:"description,omitempty"`
	UnitPrice      string                 `json:"unit_price"`
	Quantity       int                    `json:"quantity"`
	Size           *sizePayload           `json:"size,omitempty"`
	Customizations []customizationPayload `json:"customizations,omitempty"`
	Subtotal       string                 `json:"subtotal"`
}

type sizePayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Price string `json:"price"`
}

type customizationPayload struct {
	GroupID    string `json:"group_id"`
	OptionID   string `json:"option_id"`
	Name       string `json:"name"`
	PriceDelta string `json:"price_delta"`
}

type pricingPayload struct {
	Subtotal    string `json:"subtotal"`
	Tax         string `json:"tax"`
	DeliveryFee string `json:"delivery_fee"`
	ServiceFee  string `json:"service_fee"`
	Discount    string `json:"discount"`
	Tip         string `json:"tip"`
	Total       string `json:"total"`
}

type paymentPayload struct {
	Method        string `json:"method"`
	Status        string `json:"status"`
	TransactionID string `json:"transaction_id,omitempty"`
	IntentID      string `json:"intent_id,omitempty"`
	PaidAt        string `json:"paid_at,omitempty"`
	RefundedAt    string `json:"refunded_at,omitempty"`
	RefundAmount  string `json:"refund_amount,omitempty"`
}

type trackingPayload struct {
	OrderPlaced         *stampPayload          `json:"order_placed,omitempty"`
	Confirmed           *estimateStampPayload  `json:"confirmed,omitempty"`
	PreparationStarted  *estimateStampPayload  `json:"preparation_started,omitempty"`
	ReadyForPickup      *stampPayload          `json:"ready_for_pickup,omitempty"`
	PickedUp            *stampPayload          `json:"picked_up,omitempty"`
	OutForDelivery      *arrivalStampPayload   `json:"out_for_delivery,omitempty"`
	Delivered           *deliveredStampPayload `json:"delivered,omitempty"`
	Cancelled           *cancelledStampPayload `json:"cancelled,omitempty"`
	EstimatedDeliveryAt string                 `json:"estimated_delivery_at,omitempty"`
	ActualDeliveryAt    string                 `json:"actual_delivery_at,omitempty"`
}

type stampPayload struct {
	At string `json:"at"`
}

type estimateStampPayload struct {
	At               string `json:"at"`
	EstimatedMinutes int    `json:"estimated_minutes,omitempty"`
}

type arrivalStampPayload struct {
	At                 string `json:"at"`
	EstimatedArrivalAt string `json:"estimated_arrival_at,omitempty"`
}

type deliveredStampPayload struct {
	At          string `json:"at"`
	DeliveredBy string `json:"delivered_by,omitempty"`
	Signature   string `json:"signature,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

type cancelledStampPayload struct {
	At          string `json:"at"`
	Reason      string `json:"reason,omitempty"`
	CancelledBy string `json:"cancelled_by,omitempty"`
}

type feedbackPayload struct {
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
	SubmittedAt string `json:"submitted_at"`
}

type driverContactPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

type addressPayload struct {
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	State      *string `json:"state,omitempty"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      *string `json:"phone,omitempty"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		RestaurantID: strings.TrimSpace(order.RestaurantID),
		Type:         string(order.Type),
		Status:       string(order.Status),
		Total:        formatAmount(order.Pricing.Total),
		CreatedAt:    formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:           strings.TrimSpace(order.ID),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		CustomerID:   strings.TrimSpace(order.CustomerID),
		RestaurantID: strings.TrimSpace(order.RestaurantID),
		DriverID:     order.DriverID,
		Type:         string(order.Type),
		Status:       string(order.Status),
		Items:        make([]orderLinePayload, 0, len(order.Items)),
		Pricing: pricingPayload{
			Subtotal:    formatAmount(order.Pricing.Subtotal),
			Tax:         formatAmount(order.Pricing.Tax),
			DeliveryFee: formatAmount(order.Pricing.DeliveryFee),
			ServiceFee:  formatAmount(order.Pricing.ServiceFee),
			Discount:    formatAmount(order.Pricing.Discount),
			Tip:         formatAmount(order.Pricing.Tip),
			Total:       formatAmount(order.Pricing.Total),
		},
		Payment:   buildPaymentPayload(order.Payment),
		Tracking:  buildTrackingPayload(order.Tracking),
		Metadata:  cloneMap(order.Metadata),
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}

	if order.DriverContact != nil {
		payload.DriverContact = &driverContactPayload{
			Name:  strings.TrimSpace(order.DriverContact.Name),
			Phone: strings.TrimSpace(order.DriverContact.Phone),
		}
	}

	for _, line := range order.Items {
		payload.Items = append(payload.Items, buildOrderLinePayload(line))
	}

	if order.Feedback != nil {
		payload.Feedback = &feedbackPayload{
			Rating:      order.Feedback.Rating,
			Comment:     order.Feedback.Comment,
			SubmittedAt: formatTime(order.Feedback.SubmittedAt),
		}
	}

	if order.DeliveryAddress != nil {
		addr := buildAddressPayload(*order.DeliveryAddress)
		payload.DeliveryAddress = &addr
	}

	return payload
}

func buildOrderLinePayload(line services.OrderLine) orderLinePayload {
	payload := orderLinePayload{
		ItemID:      strings.TrimSpace(line.ItemID),
		Name:        strings.TrimSpace(line.Name),
		Description: strings.TrimSpace(line.Description),
		UnitPrice:   formatAmount(line.UnitPrice),
		Quantity:    line.Quantity,
		Subtotal:    formatAmount(line.Subtotal),
	}
	if line.Size != nil {
		payload.Size = &sizePayload{
			ID:    line.Size.ID,
			Name:  line.Size.Name,
			Price: formatAmount(line.Size.Price),
		}
	}
	for _, customization := range line.Customizations {
		payload.Customizations = append(payload.Customizations, customizationPayload{
			GroupID:    customization.GroupID,
			OptionID:   customization.OptionID,
			Name:       customization.Name,
			PriceDelta: formatAmount(customization.PriceDelta),
		})
	}
	return payload
}

func buildPaymentPayload(payment services.PaymentRecord) paymentPayload {
	payload := paymentPayload{
		Method:        string(payment.Method),
		Status:        string(payment.Status),
		TransactionID: strings.TrimSpace(payment.TransactionID),
		IntentID:      strings.TrimSpace(payment.IntentID),
		PaidAt:        formatTime(pointerTime(payment.PaidAt)),
		RefundedAt:    formatTime(pointerTime(payment.RefundedAt)),
	}
	if payment.RefundAmount != nil {
		payload.RefundAmount = formatAmount(*payment.RefundAmount)
	}
	return payload
}

func buildTrackingPayload(tracking domain.OrderTracking) trackingPayload {
	payload := trackingPayload{
		EstimatedDeliveryAt: formatTime(pointerTime(tracking.EstimatedDeliveryAt)),
		ActualDeliveryAt:    formatTime(pointerTime(tracking.ActualDeliveryAt)),
	}
	if tracking.OrderPlaced != nil {
		payload.OrderPlaced = &stampPayload{At: formatTime(tracking.OrderPlaced.At)}
	}
	if tracking.Confirmed != nil {
		payload.Confirmed = &estimateStampPayload{
			At:               formatTime(tracking.Confirmed.At),
			EstimatedMinutes: tracking.Confirmed.EstimatedMinutes,
		}
	}
	if tracking.PreparationStarted != nil {
		payload.PreparationStarted = &estimateStampPayload{
			At:               formatTime(tracking.PreparationStarted.At),
			EstimatedMinutes: tracking.PreparationStarted.EstimatedMinutes,
		}
	}
	if tracking.ReadyForPickup != nil {
		payload.ReadyForPickup = &stampPayload{At: formatTime(tracking.ReadyForPickup.At)}
	}
	if tracking.PickedUp != nil {
		payload.PickedUp = &stampPayload{At: formatTime(tracking.PickedUp.At)}
	}
	if tracking.OutForDelivery != nil {
		payload.OutForDelivery = &arrivalStampPayload{
			At:                 formatTime(tracking.OutForDelivery.At),
			EstimatedArrivalAt: formatTime(pointerTime(tracking.OutForDelivery.EstimatedArrivalAt)),
		}
	}
	if tracking.Delivered != nil {
		payload.Delivered = &deliveredStampPayload{
			At:          formatTime(tracking.Delivered.At),
			DeliveredBy: tracking.Delivered.DeliveredBy,
			Signature:   tracking.Delivered.Signature,
			PhotoURL:    tracking.Delivered.PhotoURL,
		}
	}
	if tracking.Cancelled != nil {
		payload.Cancelled = &cancelledStampPayload{
			At:          formatTime(tracking.Cancelled.At),
			Reason:      tracking.Cancelled.Reason,
			CancelledBy: tracking.Cancelled.CancelledBy,
		}
	}
	return payload
}

func buildAddressPayload(addr services.Address) addressPayload {
	return addressPayload{
		Line1:      strings.TrimSpace(addr.Line1),
		Line2:      addr.Line2,
		City:       strings.TrimSpace(addr.City),
		State:      addr.State,
		PostalCode: strings.TrimSpace(addr.PostalCode),
		Country:    strings.TrimSpace(addr.Country),
		Phone:      addr.Phone,
	}
}
