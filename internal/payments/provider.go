package payments

import (
	"context"
	"errors"
)

// Status enumerates the normalised gateway states shared across providers.
type Status string

const (
	// StatusPending indicates the intent is awaiting customer action.
	StatusPending Status = "pending"
	// StatusRequiresAction indicates the gateway needs further customer interaction.
	StatusRequiresAction Status = "requires_action"
	// StatusSucceeded indicates the gateway reports the payment as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the gateway reports a terminal failure.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the captured amount has been returned.
	StatusRefunded Status = "refunded"
)

// Webhook event types emitted by the gateway that the order core reacts to.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// ErrInvalidWebhookSignature is returned when a webhook payload fails authenticity checks.
var ErrInvalidWebhookSignature = errors.New("payments: invalid webhook signature")

// IntentRequest captures the payload required to open a payment intent.
// Amounts are in the currency's minor unit.
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	OrderID        string
	OrderNumber    string
	CustomerID     string
	Metadata       map[string]string
	IdempotencyKey string
}

// Intent is the gateway-side payment handle returned to clients.
type Intent struct {
	ID           string
	ClientSecret string
	Status       Status
	AmountMinor  int64
	Currency     string
}

// RefundRequest defines a gateway refund attempt. A nil amount refunds the
// full captured total.
type RefundRequest struct {
	IntentID       string
	AmountMinor    *int64
	Reason         string
	IdempotencyKey string
}

// Refund reports the settled gateway refund.
type Refund struct {
	ID          string
	IntentID    string
	AmountMinor int64
	Status      Status
}

// WebhookEvent is a verified, decoded gateway notification.
type WebhookEvent struct {
	ID       string
	Type     string
	IntentID string
}

// Provider defines the contract for payment gateway adapters.
type Provider interface {
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	RetrieveIntent(ctx context.Context, intentID string) (Intent, error)
	Refund(ctx context.Context, req RefundRequest) (Refund, error)
	// VerifyWebhook authenticates the raw payload against the signature
	// header and decodes it. It must return ErrInvalidWebhookSignature on
	// any verification failure so callers can fail closed.
	VerifyWebhook(payload []byte, signature string) (WebhookEvent, error)
}
