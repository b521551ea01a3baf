package client

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"beatstore/internal/config"
)

// signatureTolerance bounds how old a webhook timestamp may be before the
// delivery is rejected as a possible replay.
const signatureTolerance = 5 * time.Minute

type StripeClient interface {
	// CreateCheckoutSession creates a hosted checkout session and returns its
	// id and the URL to redirect the buyer to.
	CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSessionResult, error)

	// VerifyWebhookSignature checks the Stripe-Signature header against the
	// raw request body. Fails closed: any parse or mismatch is an error.
	VerifyWebhookSignature(headers http.Header, body []byte) error
}

type CheckoutLineItem struct {
	Name          string
	Amount        int64 // minor units
	Currency      string
	Quantity      int32
	StripePriceID string // preferred over ad-hoc price data when set
}

type CheckoutSessionParams struct {
	SuccessURL    string
	CancelURL     string
	CustomerEmail string
	LineItems     []CheckoutLineItem
	Metadata      map[string]string
}

type CheckoutSessionResult struct {
	SessionID string
	URL       string
}

type stripeClientImpl struct {
	httpClient    *http.Client
	baseApiURL    string
	secretKey     string
	webhookSecret string
	now           func() time.Time
}

func NewStripeClient(cfg *config.Stripe) StripeClient {
	return &stripeClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseApiURL:    cfg.BaseApiURL,
		secretKey:     cfg.SecretKey,
		webhookSecret: cfg.WebhookSecret,
		now:           time.Now,
	}
}

func (c *stripeClientImpl) CreateCheckoutSession(ctx context.Context, params *CheckoutSessionParams) (*CheckoutSessionResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", params.SuccessURL)
	form.Set("cancel_url", params.CancelURL)
	if params.CustomerEmail != "" {
		form.Set("customer_email", params.CustomerEmail)
	}

	for i, item := range params.LineItems {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.FormatInt(int64(item.Quantity), 10))
		if item.StripePriceID != "" {
			form.Set(prefix+"[price]", item.StripePriceID)
			continue
		}
		form.Set(prefix+"[price_data][currency]", item.Currency)
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.Amount, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}

	for k, v := range params.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/v1/checkout/sessions",
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stripe error %d: %s", resp.StatusCode, string(b))
	}

	var result struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode stripe response: %w", err)
	}

	return &CheckoutSessionResult{
		SessionID: result.ID,
		URL:       result.URL,
	}, nil
}

func (c *stripeClientImpl) VerifyWebhookSignature(headers http.Header, body []byte) error {
	return verifySignature(c.webhookSecret, headers.Get("Stripe-Signature"), body, c.now())
}

// verifySignature implements Stripe's signature scheme: the header carries a
// unix timestamp and one or more v1 HMAC-SHA256 hex digests computed over
// "<timestamp>.<body>" with the endpoint's webhook secret.
func verifySignature(secret, header string, body []byte, now time.Time) error {
	if header == "" {
		return fmt.Errorf("missing Stripe-Signature header")
	}

	var timestamp int64
	var signatures [][]byte
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("bad signature timestamp: %w", err)
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(v)
			if err != nil {
				continue // ignore undecodable entries, another v1 may match
			}
			signatures = append(signatures, sig)
		}
	}

	if timestamp == 0 || len(signatures) == 0 {
		return fmt.Errorf("signature header has no timestamp or v1 signature")
	}

	age := now.Sub(time.Unix(timestamp, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestamp, 10)))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}

// SignPayload builds a valid Stripe-Signature header value for a payload,
// for exercising the webhook endpoint outside production.
func SignPayload(secret string, body []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
