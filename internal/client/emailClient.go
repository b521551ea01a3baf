package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"beatstore/internal/config"
)

type EmailClient interface {
	// Send delivers one transactional email. Callers treat failures as
	// best-effort: log and move on, never roll back completed work.
	Send(ctx context.Context, to, subject, html string) error
}

type emailClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	apiKey     string
	from       string
}

func NewEmailClient(cfg *config.Email) EmailClient {
	return &emailClientImpl{
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseApiURL: cfg.BaseApiURL,
		apiKey:     cfg.APIKey,
		from:       cfg.From,
	}
}

func (c *emailClientImpl) Send(ctx context.Context, to, subject, html string) error {
	payload := map[string]interface{}{
		"from":    c.from,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseApiURL+"/emails", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email api error %d: %s", resp.StatusCode, string(b))
	}

	return nil
}
