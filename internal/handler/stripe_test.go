package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"beatstore/internal/dto"
	"beatstore/internal/service"
)

type stubStripeService struct {
	webhookErr error
	statusErr  error
}

func (s *stubStripeService) CreateCartCheckout(ctx context.Context, userID string, req *dto.CartCheckoutRequest) (*dto.CheckoutResponse, error) {
	return &dto.CheckoutResponse{SessionID: "cs_1", CheckoutURL: "https://checkout.test/cs_1"}, nil
}

func (s *stubStripeService) CreateTrackCheckout(ctx context.Context, userID string, req *dto.TrackCheckoutRequest) (*dto.CheckoutResponse, error) {
	return &dto.CheckoutResponse{SessionID: "cs_1", CheckoutURL: "https://checkout.test/cs_1"}, nil
}

func (s *stubStripeService) GetCheckoutStatus(ctx context.Context, sessionID string) (*dto.CheckoutStatusResponse, error) {
	if s.statusErr != nil {
		return nil, s.statusErr
	}
	return &dto.CheckoutStatusResponse{SessionID: sessionID, Status: "paid", OrderNumber: "20240601-0001"}, nil
}

func (s *stubStripeService) HandleWebhook(ctx context.Context, headers http.Header, body []byte) error {
	return s.webhookErr
}

func postWebhook(svc service.StripeService) *httptest.ResponseRecorder {
	e := echo.New()
	h := NewStripeHandler(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/stripe/webhook",
		strings.NewReader(`{"id":"evt_1","type":"customer.created"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=aa")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Webhook(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestWebhookResponses(t *testing.T) {
	t.Run("Given the service accepts the event Then the processor sees 200", func(t *testing.T) {
		rec := postWebhook(&stubStripeService{})
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("Given a signature failure Then the processor sees 400", func(t *testing.T) {
		rec := postWebhook(&stubStripeService{
			webhookErr: fmt.Errorf("%w: mismatch", service.ErrInvalidSignature),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Given a malformed envelope Then the processor sees 400", func(t *testing.T) {
		rec := postWebhook(&stubStripeService{
			webhookErr: fmt.Errorf("%w: truncated", service.ErrMalformedEvent),
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Given a downstream failure Then the processor sees 500", func(t *testing.T) {
		rec := postWebhook(&stubStripeService{
			webhookErr: fmt.Errorf("db connection lost"),
		})
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func getCheckoutStatus(svc service.StripeService, sessionID string) *httptest.ResponseRecorder {
	e := echo.New()
	h := NewStripeHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/checkout/sessions/"+sessionID, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(sessionID)

	if err := h.CheckoutStatus(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestCheckoutStatusResponses(t *testing.T) {
	t.Run("Given a known session Then its status is returned", func(t *testing.T) {
		rec := getCheckoutStatus(&stubStripeService{}, "cs_1")
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), "20240601-0001") {
			t.Errorf("expected order number in body, got %s", rec.Body.String())
		}
	})

	t.Run("Given an unknown session Then the caller sees 404", func(t *testing.T) {
		rec := getCheckoutStatus(&stubStripeService{statusErr: service.ErrSessionNotFound}, "cs_missing")
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}
