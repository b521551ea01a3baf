package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"beatstore/internal/config"
)

func TestEmailClientSend(t *testing.T) {
	t.Run("Given a delivery request Then the payload carries sender, recipient and body", func(t *testing.T) {
		var got map[string]interface{}
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/emails" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			if auth := r.Header.Get("Authorization"); auth != "Bearer re_test" {
				t.Errorf("unexpected auth header %q", auth)
			}
			if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"id":"email_1"}`))
		}))
		defer srv.Close()

		c := NewEmailClient(&config.Email{
			BaseApiURL: srv.URL,
			APIKey:     "re_test",
			From:       "orders@beatstore.example",
		})

		err := c.Send(context.Background(), "buyer@example.com", "Order confirmation 20240601-0001", "<html></html>")
		if err != nil {
			t.Fatalf("Send failed: %v", err)
		}

		if got["from"] != "orders@beatstore.example" {
			t.Errorf("unexpected from: %v", got["from"])
		}
		to, _ := got["to"].([]interface{})
		if len(to) != 1 || to[0] != "buyer@example.com" {
			t.Errorf("unexpected to: %v", got["to"])
		}
	})

	t.Run("Given the provider rejects the send Then an error is returned", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message":"invalid recipient"}`))
		}))
		defer srv.Close()

		c := NewEmailClient(&config.Email{BaseApiURL: srv.URL, APIKey: "re_test"})

		if err := c.Send(context.Background(), "not-an-email", "subject", "<html></html>"); err == nil {
			t.Fatal("expected error from 422 response")
		}
	})
}
