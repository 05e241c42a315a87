package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"
)

// StripeLogger defines the logging contract for Stripe provider operations.
type StripeLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type stripeClients struct {
	intents stripePaymentIntentAPI
	refunds stripeRefundAPI
}

// StripeProviderConfig configures the StripeProvider.
type StripeProviderConfig struct {
	APIKey        string
	WebhookSecret string
	AccountID     string
	Backends      *stripe.Backends
	Logger        StripeLogger
	Clock         func() time.Time
	Clients       *stripeClients
}

// StripeProvider implements the Provider interface using Stripe APIs.
type StripeProvider struct {
	api           stripeClients
	webhookSecret string
	account       string
	clock         func() time.Time
	logger        StripeLogger
}

// NewStripeProvider constructs a Stripe Provider using the given configuration.
func NewStripeProvider(cfg StripeProviderConfig) (*StripeProvider, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Clients == nil {
		return nil, errors.New("stripe: api key is required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("stripe: webhook secret is required")
	}

	var clients stripeClients
	if cfg.Clients != nil {
		clients = *cfg.Clients
	} else {
		sc := client.New(apiKey, cfg.Backends)
		clients = stripeClients{
			intents: sc.PaymentIntents,
			refunds: sc.Refunds,
		}
	}
	if clients.intents == nil || clients.refunds == nil {
		return nil, errors.New("stripe: incomplete client configuration")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeProvider{
		api:           clients,
		webhookSecret: strings.TrimSpace(cfg.WebhookSecret),
		account:       strings.TrimSpace(cfg.AccountID),
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreateIntent opens a Stripe Payment Intent for the order total.
func (p *StripeProvider) CreateIntent(ctx context.Context, req IntentRequest) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	if req.AmountMinor <= 0 {
		return Intent{}, errors.New("stripe: intent amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountMinor),
		Currency: stripe.String(strings.ToLower(req.Currency)),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	params.Metadata = make(map[string]string, len(req.Metadata)+3)
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}
	if req.OrderID != "" {
		params.Metadata["orderId"] = req.OrderID
	}
	if req.OrderNumber != "" {
		params.Metadata["orderNumber"] = req.OrderNumber
	}
	if req.CustomerID != "" {
		params.Metadata["customerId"] = req.CustomerID
	}

	intent, err := p.api.intents.New(params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"amount":        intent.Amount,
		"currency":      intent.Currency,
		"order":         req.OrderID,
	})

	return stripeIntent(intent), nil
}

// RetrieveIntent fetches the current gateway state for the intent.
func (p *StripeProvider) RetrieveIntent(ctx context.Context, intentID string) (Intent, error) {
	if p == nil {
		return Intent{}, errors.New("stripe: provider is nil")
	}
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return Intent{}, errors.New("stripe: intent id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}

	intent, err := p.api.intents.Get(intentID, params)
	if err != nil {
		return Intent{}, fmt.Errorf("stripe: retrieve payment intent: %w", err)
	}
	return stripeIntent(intent), nil
}

// Refund returns money against the captured intent, in full when no amount is given.
func (p *StripeProvider) Refund(ctx context.Context, req RefundRequest) (Refund, error) {
	if p == nil {
		return Refund{}, errors.New("stripe: provider is nil")
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.IntentID),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if p.account != "" {
		params.SetStripeAccount(p.account)
	}
	if req.AmountMinor != nil {
		params.Amount = stripe.Int64(*req.AmountMinor)
	}
	if reason := mapStripeRefundReason(req.Reason); reason != "" {
		params.Reason = stripe.String(reason)
	}

	refund, err := p.api.refunds.New(params)
	if err != nil {
		return Refund{}, fmt.Errorf("stripe: refund payment intent: %w", err)
	}

	p.logger(ctx, "payments.stripe.intent.refunded", map[string]any{
		"paymentIntent": req.IntentID,
		"refund":        refund.ID,
		"amount":        refund.Amount,
	})

	status := StatusRefunded
	if refund.Status == stripe.RefundStatusFailed {
		status = StatusFailed
	}

	return Refund{
		ID:          refund.ID,
		IntentID:    req.IntentID,
		AmountMinor: refund.Amount,
		Status:      status,
	}, nil
}

// VerifyWebhook authenticates the payload against Stripe's signature header
// and decodes the event. Every verification failure collapses into
// ErrInvalidWebhookSignature.
func (p *StripeProvider) VerifyWebhook(payload []byte, signature string) (WebhookEvent, error) {
	if p == nil {
		return WebhookEvent{}, errors.New("stripe: provider is nil")
	}

	event, err := webhook.ConstructEvent(payload, signature, p.webhookSecret)
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrInvalidWebhookSignature, err)
	}

	decoded := WebhookEvent{
		ID:   event.ID,
		Type: string(event.Type),
	}

	if strings.HasPrefix(decoded.Type, "payment_intent.") {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return WebhookEvent{}, fmt.Errorf("stripe: decode webhook intent: %w", err)
		}
		decoded.IntentID = intent.ID
	}

	return decoded, nil
}

func stripeIntent(intent *stripe.PaymentIntent) Intent {
	if intent == nil {
		return Intent{}
	}

	status := StatusPending
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		status = StatusSucceeded
	case stripe.PaymentIntentStatusCanceled:
		status = StatusFailed
	case stripe.PaymentIntentStatusRequiresAction, stripe.PaymentIntentStatusRequiresConfirmation:
		status = StatusRequiresAction
	case stripe.PaymentIntentStatusRequiresPaymentMethod, stripe.PaymentIntentStatusProcessing, stripe.PaymentIntentStatusRequiresCapture:
		status = StatusPending
	}

	return Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       status,
		AmountMinor:  intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
	}
}

func mapStripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}
