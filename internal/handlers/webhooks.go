package handlers

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/plateroute/api/internal/platform/httpx"
	"github.com/plateroute/api/internal/services"
)

// Stripe caps event payloads well under this; anything larger is hostile.
const maxWebhookBodySize = 256 * 1024

// WebhookHandlers receives gateway callbacks. The group is mounted without
// auth middleware; the signature check inside the payment service is the
// authentication boundary.
type WebhookHandlers struct {
	payments services.PaymentService
}

// NewWebhookHandlers constructs a new WebhookHandlers instance.
func NewWebhookHandlers(payments services.PaymentService) *WebhookHandlers {
	return &WebhookHandlers{payments: payments}
}

// Routes registers the /webhooks endpoints.
func (h *WebhookHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/stripe", h.stripeWebhook)
}

func (h *WebhookHandlers) stripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.payments == nil {
		httpx.WriteError(ctx, w, httpx.NewError("payment_service_unavailable", "payment service unavailable", http.StatusServiceUnavailable))
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodySize+1))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "failed to read request body", http.StatusBadRequest))
		return
	}
	if len(payload) == 0 {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is empty", http.StatusBadRequest))
		return
	}
	if len(payload) > maxWebhookBodySize {
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return
	}

	if err := h.payments.HandleWebhookEvent(ctx, payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"received": true})
}
