package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"beatstore/internal/config"
)

const testSecret = "whsec_test"

func TestVerifySignature(t *testing.T) {
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	body := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)

	t.Run("Given a header signed with the shared secret Then verification passes", func(t *testing.T) {
		header := SignPayload(testSecret, body, now)
		if err := verifySignature(testSecret, header, body, now); err != nil {
			t.Fatalf("expected valid signature, got %v", err)
		}
	})

	t.Run("Given a header signed with another secret Then verification fails", func(t *testing.T) {
		header := SignPayload("whsec_other", body, now)
		if err := verifySignature(testSecret, header, body, now); err == nil {
			t.Fatal("expected signature mismatch")
		}
	})

	t.Run("Given a tampered body Then verification fails", func(t *testing.T) {
		header := SignPayload(testSecret, body, now)
		tampered := []byte(`{"id":"evt_1","type":"charge.refunded"}`)
		if err := verifySignature(testSecret, header, tampered, now); err == nil {
			t.Fatal("expected signature mismatch")
		}
	})

	t.Run("Given a timestamp outside tolerance Then verification fails", func(t *testing.T) {
		header := SignPayload(testSecret, body, now.Add(-10*time.Minute))
		if err := verifySignature(testSecret, header, body, now); err == nil {
			t.Fatal("expected stale timestamp rejection")
		}
	})

	t.Run("Given a missing header Then verification fails", func(t *testing.T) {
		if err := verifySignature(testSecret, "", body, now); err == nil {
			t.Fatal("expected missing header rejection")
		}
	})

	t.Run("Given extra undecodable v1 entries Then a matching one still passes", func(t *testing.T) {
		header := SignPayload(testSecret, body, now) + ",v1=zzzz"
		if err := verifySignature(testSecret, header, body, now); err != nil {
			t.Fatalf("expected valid signature, got %v", err)
		}
	})
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Run("Given line items and metadata Then the form encodes them and the result is decoded", func(t *testing.T) {
		var gotForm url.Values
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/v1/checkout/sessions" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer sk_test" {
				t.Errorf("unexpected auth header %q", auth)
			}
			if err := r.ParseForm(); err != nil {
				t.Fatalf("parse form: %v", err)
			}
			gotForm = r.PostForm

			json.NewEncoder(w).Encode(map[string]string{
				"id":  "cs_123",
				"url": "https://checkout.stripe.com/pay/cs_123",
			})
		}))
		defer srv.Close()

		c := NewStripeClient(&config.Stripe{
			BaseApiURL: srv.URL,
			SecretKey:  "sk_test",
		})

		result, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{
			SuccessURL:    "https://beatstore.test/success",
			CancelURL:     "https://beatstore.test/cart",
			CustomerEmail: "buyer@example.com",
			LineItems: []CheckoutLineItem{{
				Name:     "Midnight Drive (mp3_lease)",
				Amount:   2999,
				Currency: "usd",
				Quantity: 1,
			}},
			Metadata: map[string]string{"userId": "user-1"},
		})
		if err != nil {
			t.Fatalf("CreateCheckoutSession failed: %v", err)
		}

		if result.SessionID != "cs_123" {
			t.Errorf("expected cs_123, got %s", result.SessionID)
		}
		if got := gotForm.Get("line_items[0][price_data][unit_amount]"); got != "2999" {
			t.Errorf("unit_amount not encoded, got %q", got)
		}
		if got := gotForm.Get("metadata[userId]"); got != "user-1" {
			t.Errorf("metadata not encoded, got %q", got)
		}
		if got := gotForm.Get("mode"); got != "payment" {
			t.Errorf("expected payment mode, got %q", got)
		}
	})

	t.Run("Given a processor error response Then the error carries status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":{"message":"no such price"}}`))
		}))
		defer srv.Close()

		c := NewStripeClient(&config.Stripe{BaseApiURL: srv.URL, SecretKey: "sk_test"})

		_, err := c.CreateCheckoutSession(context.Background(), &CheckoutSessionParams{
			LineItems: []CheckoutLineItem{{StripePriceID: "price_missing", Quantity: 1}},
		})
		if err == nil {
			t.Fatal("expected error from 400 response")
		}
	})
}
