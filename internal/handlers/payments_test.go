package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/plateroute/api/internal/domain"
	"github.com/plateroute/api/internal/platform/auth"
	"github.com/plateroute/api/internal/services"
)

type stubPaymentService struct {
	intentFn  func(context.Context, string, string) (services.PaymentIntentResult, error)
	confirmFn func(context.Context, string) (services.Order, error)
	webhookFn func(context.Context, []byte, string) error
	refundFn  func(context.Context, services.RefundCommand) (services.RefundResult, error)
}

func (s *stubPaymentService) CreatePaymentIntent(ctx context.Context, orderID, requesterID string) (services.PaymentIntentResult, error) {
	if s.intentFn != nil {
		return s.intentFn(ctx, orderID, requesterID)
	}
	return services.PaymentIntentResult{}, errors.New("not implemented")
}

func (s *stubPaymentService) ConfirmPayment(ctx context.Context, intentID string) (services.Order, error) {
	if s.confirmFn != nil {
		return s.confirmFn(ctx, intentID)
	}
	return services.Order{}, errors.New("not implemented")
}

func (s *stubPaymentService) HandleWebhookEvent(ctx context.Context, payload []byte, signature string) error {
	if s.webhookFn != nil {
		return s.webhookFn(ctx, payload, signature)
	}
	return errors.New("not implemented")
}

func (s *stubPaymentService) Refund(ctx context.Context, cmd services.RefundCommand) (services.RefundResult, error) {
	if s.refundFn != nil {
		return s.refundFn(ctx, cmd)
	}
	return services.RefundResult{}, errors.New("not implemented")
}

func newPaymentRouter(payments services.PaymentService) chi.Router {
	handler := NewPaymentHandlers(nil, payments)
	router := chi.NewRouter()
	router.Route("/payments", handler.Routes)
	return router
}

func TestPaymentHandlersCreateIntent(t *testing.T) {
	var capturedOrderID, capturedRequester string
	service := &stubPaymentService{
		intentFn: func(ctx context.Context, orderID, requesterID string) (services.PaymentIntentResult, error) {
			capturedOrderID = orderID
			capturedRequester = requesterID
			return services.PaymentIntentResult{
				IntentID:     "pi_123",
				ClientSecret: "pi_123_secret",
				AmountMinor:  3550,
				Currency:     "usd",
			}, nil
		},
	}
	router := newPaymentRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/intent", `{"order_id":"ord_123"}`, auth.RoleCustomer))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if capturedOrderID != "ord_123" || capturedRequester != "user-1" {
		t.Fatalf("unexpected capture %q %q", capturedOrderID, capturedRequester)
	}

	var resp createIntentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.IntentID != "pi_123" || resp.Amount != 3550 || resp.Currency != "USD" {
		t.Fatalf("unexpected response %#v", resp)
	}
}

func TestPaymentHandlersCreateIntentRequiresOrderID(t *testing.T) {
	router := newPaymentRouter(&stubPaymentService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/intent", `{}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateIntentNotPayable(t *testing.T) {
	service := &stubPaymentService{
		intentFn: func(ctx context.Context, orderID, requesterID string) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{}, fmt.Errorf("cash order: %w", services.ErrOrderNotPayable)
		},
	}
	router := newPaymentRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/intent", `{"order_id":"ord_123"}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", rr.Code)
	}
}

func TestPaymentHandlersCreateIntentGatewayDown(t *testing.T) {
	service := &stubPaymentService{
		intentFn: func(ctx context.Context, orderID, requesterID string) (services.PaymentIntentResult, error) {
			return services.PaymentIntentResult{}, fmt.Errorf("stripe: %w", services.ErrPaymentGateway)
		},
	}
	router := newPaymentRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/intent", `{"order_id":"ord_123"}`))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status 502, got %d", rr.Code)
	}
}

func TestPaymentHandlersConfirmPayment(t *testing.T) {
	service := &stubPaymentService{
		confirmFn: func(ctx context.Context, intentID string) (services.Order, error) {
			if intentID != "pi_123" {
				t.Fatalf("unexpected intent id %q", intentID)
			}
			order := sampleOrder()
			order.Status = domain.OrderStatusConfirmed
			order.Payment.Status = domain.PaymentStatusCompleted
			return order, nil
		},
	}
	router := newPaymentRouter(service)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(http.MethodPost, "/payments/confirm", `{"intent_id":"pi_123"}`, auth.RoleCustomer))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp orderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Order.Payment.Status != string(domain.PaymentStatusCompleted) {
		t.Fatalf("unexpected payment status %q", resp.Order.Payment.Status)
	}
}

func TestPaymentHandlersConfirmPaymentUnauthenticated(t *testing.T) {
	router := newPaymentRouter(&stubPaymentService{})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/confirm", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rr.Code)
	}
}
