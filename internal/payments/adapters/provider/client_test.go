package provider_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/payments/adapters/provider"
	"github.com/dejobratic/storefront/internal/payments/domain"
	"github.com/dejobratic/storefront/internal/payments/ports"
)

func newClient(url string) *provider.Client {
	return provider.NewClient(provider.Config{
		BaseURL:   url,
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
		Timeout:   200 * time.Millisecond,
	})
}

func request() domain.IntentRequest {
	return domain.IntentRequest{
		AmountMinor: 95000,
		Currency:    "INR",
		Receipt:     "rcpt-1",
		Notes:       map[string]string{"cart": "c-1"},
	}
}

func TestCreateIntent(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "rzp_test_key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&received)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","entity":"order","amount":95000,"currency":"INR","receipt":"rcpt-1","status":"created"}`))
	}))
	defer server.Close()

	intent, err := newClient(server.URL).CreateIntent(context.Background(), request())

	require.NoError(t, err)
	assert.Equal(t, "order_abc", intent.ID)
	assert.Equal(t, int64(95000), intent.AmountMinor)
	assert.Equal(t, "created", intent.Status)
	assert.Contains(t, string(intent.Payload), `"entity":"order"`)
	assert.Equal(t, float64(95000), received["amount"])
	assert.Equal(t, "rcpt-1", received["receipt"])
	assert.Equal(t, map[string]any{"cart": "c-1"}, received["notes"])
}

func TestCreateIntentFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		cause  string
	}{
		{name: "server error", status: http.StatusBadGateway, cause: "status 502"},
		{name: "throttled", status: http.StatusTooManyRequests, cause: "status 429"},
		{name: "rejected request", status: http.StatusBadRequest, body: `{"error":{"code":"BAD_REQUEST_ERROR"}}`, cause: "status 400"},
		{name: "missing id", status: http.StatusOK, body: `{"amount":95000}`, cause: "intent without id"},
		{name: "garbage body", status: http.StatusOK, body: `not json`, cause: "decode intent response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := newClient(server.URL).CreateIntent(context.Background(), request())

			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable), "kind %s", apperr.KindOf(err))
			assert.Contains(t, err.Error(), tt.cause)
			assert.NotContains(t, err.Error(), "secret")
		})
	}
}

func TestCreateIntentTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := newClient(server.URL).CreateIntent(context.Background(), request())

	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCreateIntentUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := newClient(url).CreateIntent(context.Background(), request())

	assert.True(t, apperr.Is(err, apperr.KindGatewayUnavailable))
}

func TestCreateIntentRejectsNonPositiveAmount(t *testing.T) {
	req := request()
	req.AmountMinor = 0

	_, err := newClient("http://unused.invalid").CreateIntent(context.Background(), req)

	assert.True(t, errors.Is(err, ports.ErrInvalidAmount))
}

func TestClientVerifySignature(t *testing.T) {
	client := newClient("http://unused.invalid")

	assert.True(t, client.VerifySignature("order_abc", "pay_1", domain.Sign([]byte("secret"), "order_abc", "pay_1")))
	assert.False(t, client.VerifySignature("order_abc", "pay_1", domain.Sign([]byte("other"), "order_abc", "pay_1")))
	assert.Equal(t, "rzp_test_key", client.PublicKey())
}
