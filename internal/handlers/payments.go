package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/plateroute/api/internal/platform/auth"
	"github.com/plateroute/api/internal/platform/httpx"
	"github.com/plateroute/api/internal/services"
)

const maxPaymentBodySize = 8 * 1024

// PaymentHandlers exposes the synchronous payment endpoints.
type PaymentHandlers struct {
	authn    *auth.Authenticator
	payments services.PaymentService
}

// NewPaymentHandlers constructs a new PaymentHandlers instance.
func NewPaymentHandlers(authn *auth.Authenticator, payments services.PaymentService) *PaymentHandlers {
	return &PaymentHandlers{
		authn:    authn,
		payments: payments,
	}
}

// Routes registers the /payments endpoints.
func (h *PaymentHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Post("/intent", h.createIntent)
	r.Post("/confirm", h.confirmPayment)
}

type createIntentRequest struct {
	OrderID string `json:"order_id"`
}

type createIntentResponse struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

func (h *PaymentHandlers) createIntent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := requireIdentity(ctx, w, h.payments != nil)
	if !ok {
		return
	}

	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req createIntentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.OrderID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order_id is required", http.StatusBadRequest))
		return
	}

	result, err := h.payments.CreatePaymentIntent(ctx, strings.TrimSpace(req.OrderID), strings.TrimSpace(identity.UID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, createIntentResponse{
		IntentID:     result.IntentID,
		ClientSecret: result.ClientSecret,
		Amount:       result.AmountMinor,
		Currency:     strings.ToUpper(result.Currency),
	})
}

type confirmPaymentRequest struct {
	IntentID string `json:"intent_id"`
}

func (h *PaymentHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := requireIdentity(ctx, w, h.payments != nil); !ok {
		return
	}

	body, err := readLimitedBody(r, maxPaymentBodySize)
	if err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	var req confirmPaymentRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "invalid JSON body", http.StatusBadRequest))
		return
	}
	if strings.TrimSpace(req.IntentID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "intent_id is required", http.StatusBadRequest))
		return
	}

	order, err := h.payments.ConfirmPayment(ctx, strings.TrimSpace(req.IntentID))
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
