package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/auth"
	checkouthttp "github.com/dejobratic/storefront/internal/checkout/adapters/http"
	"github.com/dejobratic/storefront/internal/checkout/app"
	"github.com/dejobratic/storefront/internal/checkout/domain"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/idempotency"
	"github.com/dejobratic/storefront/internal/idempotency/memory"
)

var secrets = auth.Secrets{Customer: []byte("customer-secret"), Admin: []byte("admin-secret")}

type fakeCheckout struct {
	mu          sync.Mutex
	initiateErr error
	confirmErr  error
	initiates   []app.InitiateCommand
	confirms    []app.ConfirmCommand
	resolved    []string
	resolveErr  error
}

func (f *fakeCheckout) Initiate(_ context.Context, cmd app.InitiateCommand) (*app.InitiateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiates = append(f.initiates, cmd)
	if f.initiateErr != nil {
		return nil, f.initiateErr
	}
	return &app.InitiateResult{
		IntentID:    "order_1",
		PublicKey:   "rzp_test_key",
		Amount:      cmd.Amount,
		AmountMinor: domain.ToMinorUnits(cmd.Amount),
		Currency:    "INR",
	}, nil
}

func (f *fakeCheckout) Confirm(_ context.Context, cmd app.ConfirmCommand) (*app.ConfirmResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms = append(f.confirms, cmd)
	if f.confirmErr != nil {
		return nil, f.confirmErr
	}
	return &app.ConfirmResult{Success: true, OrderID: "ord-1"}, nil
}

func (f *fakeCheckout) ListReconciliations(_ context.Context, limit int) ([]domain.Reconciliation, error) {
	return []domain.Reconciliation{{ID: "flag-1", IntentID: "order_1", Reason: domain.ReasonCouponMismatch}}, nil
}

func (f *fakeCheckout) ResolveReconciliation(_ context.Context, id, resolution, resolvedBy string) (*domain.Reconciliation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resolveErr != nil {
		return nil, f.resolveErr
	}
	f.resolved = append(f.resolved, id+"|"+resolution+"|"+resolvedBy)
	at := time.Now()
	return &domain.Reconciliation{ID: id, ResolvedAt: &at, Resolution: resolution}, nil
}

func newServer(t *testing.T, checkout checkouthttp.Checkout, limiter *httpapi.RateLimiter) http.Handler {
	t.Helper()
	if limiter == nil {
		limiter = httpapi.NewRateLimiter(1000, 1000, auth.KeyFunc)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := http.NewServeMux()
	checkouthttp.NewHandler(checkout).Register(mux, limiter.Middleware,
		idempotency.Middleware(memory.NewStore(time.Hour), logger))
	return auth.NewResolver(secrets).Middleware(mux)
}

func token(t *testing.T, kind auth.Kind, userID string) string {
	t.Helper()
	tok, err := auth.NewIssuer(secrets, time.Hour).Issue(kind, userID)
	require.NoError(t, err)
	return tok
}

func do(h http.Handler, method, path, body, bearer string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorKind(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Kind string `json:"kind"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Kind
}

func TestCreateIntent(t *testing.T) {
	customer := token(t, auth.KindCustomer, "user-1")

	t.Run("returns the intent for the session user", func(t *testing.T) {
		checkout := &fakeCheckout{}
		srv := newServer(t, checkout, nil)

		rec := do(srv, http.MethodPost, "/payment/intent", `{"amount":"950.50","currency":"inr"}`, customer)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "order_1", body["intentId"])
		assert.Equal(t, "rzp_test_key", body["publicKey"])
		require.Len(t, checkout.initiates, 1)
		assert.Equal(t, "user-1", checkout.initiates[0].UserID)
		assert.Equal(t, "INR", checkout.initiates[0].Currency)
		assert.True(t, checkout.initiates[0].Amount.Equal(decimal.RequireFromString("950.50")))
	})

	t.Run("requires a session", func(t *testing.T) {
		checkout := &fakeCheckout{}
		rec := do(newServer(t, checkout, nil), http.MethodPost, "/payment/intent", `{"amount":"10"}`, "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Empty(t, checkout.initiates)
	})

	t.Run("rejects missing and non-positive amounts", func(t *testing.T) {
		checkout := &fakeCheckout{}
		srv := newServer(t, checkout, nil)

		for _, body := range []string{`{}`, `{"amount":"0"}`, `{"amount":"-1"}`, `{"amount":"5","currency":"EURO"}`} {
			rec := do(srv, http.MethodPost, "/payment/intent", body, customer)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		}
		assert.Empty(t, checkout.initiates)
	})

	t.Run("gateway failure is retryable", func(t *testing.T) {
		checkout := &fakeCheckout{initiateErr: apperr.Wrap(apperr.KindGatewayUnavailable, "payment provider unavailable, try again", errors.New("dial tcp"))}

		rec := do(newServer(t, checkout, nil), http.MethodPost, "/payment/intent", `{"amount":"10"}`, customer)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
		assert.Equal(t, string(apperr.KindGatewayUnavailable), errorKind(t, rec))
		assert.NotContains(t, rec.Body.String(), "dial tcp")
	})

	t.Run("replays a repeated idempotency key", func(t *testing.T) {
		checkout := &fakeCheckout{}
		srv := newServer(t, checkout, nil)

		first := do(srv, http.MethodPost, "/payment/intent", `{"amount":"10"}`, customer, idempotency.HeaderKey, "k-1")
		second := do(srv, http.MethodPost, "/payment/intent", `{"amount":"10"}`, customer, idempotency.HeaderKey, "k-1")

		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Len(t, checkout.initiates, 1)
	})

	t.Run("rate limited per caller", func(t *testing.T) {
		checkout := &fakeCheckout{}
		srv := newServer(t, checkout, httpapi.NewRateLimiter(0.001, 1, auth.KeyFunc))

		first := do(srv, http.MethodPost, "/payment/intent", `{"amount":"10"}`, customer)
		second := do(srv, http.MethodPost, "/payment/intent", `{"amount":"10"}`, customer)
		other := do(srv, http.MethodPost, "/payment/intent", `{"amount":"10"}`, token(t, auth.KindCustomer, "user-2"))

		assert.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, http.StatusOK, other.Code)
	})
}

const confirmBody = `{
	"intentId": "order_1",
	"paymentId": "pay_1",
	"signature": "abc",
	"orderDraft": {
		"shippingId": "addr-1",
		"items": [{"productId": "p-1", "quantity": 2, "color": "blue"}],
		"subtotal": "500",
		"shippingCost": "50",
		"discount": "0",
		"total": "550",
		"couponCode": "WELCOME10"
	}
}`

func TestConfirm(t *testing.T) {
	customer := token(t, auth.KindCustomer, "user-1")

	t.Run("records the order", func(t *testing.T) {
		checkout := &fakeCheckout{}

		rec := do(newServer(t, checkout, nil), http.MethodPost, "/payment/confirm", confirmBody, customer)

		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "ord-1", body["orderId"])

		require.Len(t, checkout.confirms, 1)
		cmd := checkout.confirms[0]
		assert.Equal(t, "user-1", cmd.UserID)
		assert.Equal(t, "pay_1", cmd.PaymentID)
		assert.Equal(t, "addr-1", cmd.Draft.ShippingAddressID)
		assert.Equal(t, "blue", cmd.Draft.Items[0].Color)
		assert.True(t, cmd.Draft.Total.Equal(decimal.NewFromInt(550)))
	})

	t.Run("maps orchestrator errors", func(t *testing.T) {
		tests := []struct {
			name string
			err  error
			want int
		}{
			{name: "invalid signature", err: domain.ErrInvalidSignature, want: http.StatusBadRequest},
			{name: "not the owner", err: domain.ErrUnauthenticated, want: http.StatusUnauthorized},
			{name: "second payment", err: domain.ErrPaymentConflict, want: http.StatusConflict},
			{
				name: "order not recorded",
				err:  apperr.Wrap(apperr.KindLedgerInconsistency, domain.ErrOrderNotRecorded.Message, errors.New("connection reset")),
				want: http.StatusInternalServerError,
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(newServer(t, &fakeCheckout{confirmErr: tt.err}, nil), http.MethodPost, "/payment/confirm", confirmBody, customer)

				assert.Equal(t, tt.want, rec.Code)
				assert.NotContains(t, rec.Body.String(), "connection reset")
			})
		}
	})

	t.Run("validates the draft before confirming", func(t *testing.T) {
		checkout := &fakeCheckout{}
		body := strings.Replace(confirmBody, `"quantity": 2`, `"quantity": 0`, 1)

		rec := do(newServer(t, checkout, nil), http.MethodPost, "/payment/confirm", body, customer)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "orderDraft.items[0].quantity")
		assert.Empty(t, checkout.confirms)
	})
}

func TestReconciliationAdmin(t *testing.T) {
	admin := token(t, auth.KindAdmin, "admin-1")
	customer := token(t, auth.KindCustomer, "user-1")

	t.Run("admin only", func(t *testing.T) {
		srv := newServer(t, &fakeCheckout{}, nil)

		assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, "/admin/reconciliations", "", "").Code)
		assert.Equal(t, http.StatusForbidden, do(srv, http.MethodGet, "/admin/reconciliations", "", customer).Code)
	})

	t.Run("lists unresolved records", func(t *testing.T) {
		rec := do(newServer(t, &fakeCheckout{}, nil), http.MethodGet, "/admin/reconciliations?limit=10", "", admin)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "flag-1")
	})

	t.Run("rejects a malformed limit", func(t *testing.T) {
		rec := do(newServer(t, &fakeCheckout{}, nil), http.MethodGet, "/admin/reconciliations?limit=ten", "", admin)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("resolves a record", func(t *testing.T) {
		checkout := &fakeCheckout{}

		rec := do(newServer(t, checkout, nil), http.MethodPost, "/admin/reconciliations/flag-1/resolve", `{"resolution":"refunded"}`, admin)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"flag-1|refunded|admin-1"}, checkout.resolved)
	})

	t.Run("resolving twice conflicts", func(t *testing.T) {
		checkout := &fakeCheckout{resolveErr: domain.ErrAlreadyResolved}

		rec := do(newServer(t, checkout, nil), http.MethodPost, "/admin/reconciliations/flag-1/resolve", `{"resolution":"refunded"}`, admin)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("requires a resolution", func(t *testing.T) {
		rec := do(newServer(t, &fakeCheckout{}, nil), http.MethodPost, "/admin/reconciliations/flag-1/resolve", `{}`, admin)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
