// Package provider talks to the payment provider's REST API.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/payments/ports"
)

// maxResponseBytes bounds how much of a provider response is read.
const maxResponseBytes = 1 << 20

var errProvider = errors.New("payment provider error")

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client creates intents over HTTP and verifies completion signatures with
// the key secret.
type Client struct {
	baseURL   string
	keyID     string
	keySecret string
	http      *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		http:      &http.Client{Timeout: timeout},
	}
}

type createIntentRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createIntentResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

func (c *Client) CreateIntent(ctx context.Context, req domain.IntentRequest) (domain.Intent, error) {
	if req.AmountMinor <= 0 {
		return domain.Intent{}, ports.ErrInvalidAmount
	}

	payload, err := json.Marshal(createIntentRequest{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return domain.Intent{}, fmt.Errorf("encode intent request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return domain.Intent{}, fmt.Errorf("build intent request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.Intent{}, unavailable(fmt.Errorf("send intent request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return domain.Intent{}, unavailable(fmt.Errorf("read intent response: %w", err))
	}

	// Every provider-side failure is reported as retryable; the cause keeps
	// the status for logs.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.Intent{}, unavailable(fmt.Errorf("%w: status %d", errProvider, resp.StatusCode))
	}

	var parsed createIntentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return domain.Intent{}, unavailable(fmt.Errorf("decode intent response: %w", err))
	}
	if parsed.ID == "" {
		return domain.Intent{}, unavailable(fmt.Errorf("%w: intent without id", errProvider))
	}

	return domain.Intent{
		ID:          parsed.ID,
		AmountMinor: parsed.Amount,
		Currency:    parsed.Currency,
		Status:      parsed.Status,
		Payload:     json.RawMessage(body),
	}, nil
}

func (c *Client) VerifySignature(intentID, paymentID, signature string) bool {
	return domain.VerifySignature([]byte(c.keySecret), intentID, paymentID, signature)
}

func (c *Client) PublicKey() string {
	return c.keyID
}

func unavailable(err error) error {
	return apperr.Wrap(apperr.KindGatewayUnavailable, "payment provider unavailable, try again", err)
}
