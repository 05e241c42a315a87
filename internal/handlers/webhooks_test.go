package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/plateroute/api/internal/services"
)

func newWebhookRouter(payments services.PaymentService) chi.Router {
	handler := NewWebhookHandlers(payments)
	router := chi.NewRouter()
	router.Route("/webhooks", handler.Routes)
	return router
}

func TestWebhookHandlersStripeSuccess(t *testing.T) {
	var capturedPayload []byte
	var capturedSignature string
	service := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) error {
			capturedPayload = payload
			capturedSignature = signature
			return nil
		},
	}
	router := newWebhookRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1","type":"payment_intent.succeeded"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedSignature != "t=1,v1=abc" {
		t.Fatalf("unexpected signature %q", capturedSignature)
	}
	if !strings.Contains(string(capturedPayload), "evt_1") {
		t.Fatalf("unexpected payload %s", capturedPayload)
	}
}

func TestWebhookHandlersStripeInvalidSignature(t *testing.T) {
	service := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) error {
			return fmt.Errorf("verify: %w", services.ErrInvalidSignature)
		},
	}
	router := newWebhookRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}

func TestWebhookHandlersStripeEmptyBody(t *testing.T) {
	router := newWebhookRouter(&stubPaymentService{})

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestWebhookHandlersStripeUnknownOrderIgnored(t *testing.T) {
	// Events for intents that match no order acknowledge with 200 so the
	// gateway stops retrying; the service signals this by returning nil.
	service := &stubPaymentService{
		webhookFn: func(ctx context.Context, payload []byte, signature string) error {
			return nil
		},
	}
	router := newWebhookRouter(service)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_unknown"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
}
