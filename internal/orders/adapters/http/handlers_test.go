package http_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/idempotency"
	idempotencymemory "github.com/dejobratic/storefront/internal/idempotency/memory"
	inventorymemory "github.com/dejobratic/storefront/internal/inventory/adapters/memory"
	inventoryapp "github.com/dejobratic/storefront/internal/inventory/app"
	inventorydomain "github.com/dejobratic/storefront/internal/inventory/domain"
	"github.com/dejobratic/storefront/internal/kafka"
	"github.com/dejobratic/storefront/internal/orders/adapters"
	ordershttp "github.com/dejobratic/storefront/internal/orders/adapters/http"
	"github.com/dejobratic/storefront/internal/orders/adapters/memory"
	"github.com/dejobratic/storefront/internal/orders/app"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/metrics"
)

var secrets = auth.Secrets{Customer: []byte("customer-secret"), Admin: []byte("admin-secret")}

func newServer(t *testing.T) (http.Handler, *app.Ledger) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m, err := metrics.NewMetrics(sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewManualReader())).Meter("test"))
	require.NoError(t, err)

	products := inventorymemory.NewRepository(
		inventorydomain.Product{ID: "p-1", SKU: "MUG-1", Name: "Mug", Price: decimal.NewFromInt(250), Stock: 5},
	)
	catalog := adapters.NewInventoryCatalog(inventoryapp.NewCatalog(products))
	ledger := app.NewLedger(memory.NewRepository(), catalog, kafka.NewNoopEventBus(logger), logger, m)

	mux := http.NewServeMux()
	ordershttp.NewHandler(ledger).Register(mux, idempotency.Middleware(idempotencymemory.NewStore(time.Hour), logger))
	return auth.NewResolver(secrets).Middleware(mux), ledger
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

const orderBody = `{
	"shippingId": "addr-1",
	"items": [{"productId": "p-1", "quantity": 2, "color": "blue"}],
	"subtotal": "500",
	"shippingCost": "50",
	"discount": "0",
	"total": "550"
}`

type orderResponse struct {
	Order domain.Order `json:"order"`
}

func decodeOrder(t *testing.T, rec *httptest.ResponseRecorder) domain.Order {
	t.Helper()
	var body orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Order
}

func createOrder(t *testing.T, srv http.Handler, bearer string) domain.Order {
	t.Helper()
	rec := do(srv, http.MethodPost, "/orders", orderBody, bearer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeOrder(t, rec)
}

func TestCreateOrder(t *testing.T) {
	t.Run("guest checkout", func(t *testing.T) {
		srv, _ := newServer(t)

		rec := do(srv, http.MethodPost, "/orders", orderBody, "")

		require.Equal(t, http.StatusCreated, rec.Code)
		order := decodeOrder(t, rec)
		assert.Equal(t, order.ID, rec.Header().Get(idempotency.ResourceHeader))
		assert.Equal(t, domain.StatusPending, order.Status)
		assert.Empty(t, order.CustomerID)
		require.Len(t, order.Items, 1)
		assert.Equal(t, "Mug", order.Items[0].ProductName)
	})

	t.Run("normalizes the coupon code", func(t *testing.T) {
		srv, _ := newServer(t)
		body := strings.Replace(orderBody, `"total": "550"`, `"total": "550", "couponCode": " freeship "`, 1)

		rec := do(srv, http.MethodPost, "/orders", body, "")

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, "FREESHIP", decodeOrder(t, rec).CouponCode)
	})

	t.Run("session customer owns the order", func(t *testing.T) {
		srv, _ := newServer(t)

		order := createOrder(t, srv, token(t, auth.KindCustomer, "user-1"))

		assert.Equal(t, "user-1", order.CustomerID)
	})

	t.Run("rejects inconsistent amounts", func(t *testing.T) {
		srv, _ := newServer(t)
		body := strings.Replace(orderBody, `"total": "550"`, `"total": "600"`, 1)

		rec := do(srv, http.MethodPost, "/orders", body, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects subtotal that does not match the catalog", func(t *testing.T) {
		srv, _ := newServer(t)
		body := strings.NewReplacer(`"subtotal": "500"`, `"subtotal": "400"`, `"total": "550"`, `"total": "450"`).Replace(orderBody)

		rec := do(srv, http.MethodPost, "/orders", body, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("replays a repeated idempotency key", func(t *testing.T) {
		srv, ledger := newServer(t)
		customer := token(t, auth.KindCustomer, "user-1")

		first := do(srv, http.MethodPost, "/orders", orderBody, customer, idempotency.HeaderKey, "k-1")
		second := do(srv, http.MethodPost, "/orders", orderBody, customer, idempotency.HeaderKey, "k-1")

		require.Equal(t, http.StatusCreated, first.Code)
		assert.Equal(t, http.StatusCreated, second.Code)
		assert.Equal(t, decodeOrder(t, first).ID, decodeOrder(t, second).ID)
		assert.Equal(t, "true", second.Header().Get(idempotency.ReplayedHeader))

		page, err := ledger.ListOrders(t.Context(), queriesFor("user-1"))
		require.NoError(t, err)
		assert.Len(t, page.Orders, 1)
	})
}

func TestGetOrder(t *testing.T) {
	srv, _ := newServer(t)
	owner := token(t, auth.KindCustomer, "user-1")
	order := createOrder(t, srv, owner)
	path := "/orders/" + order.ID

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, path, "", owner).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, path, "", token(t, auth.KindAdmin, "admin-1")).Code)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, path, "", token(t, auth.KindCustomer, "user-2")).Code)
	assert.Equal(t, http.StatusUnauthorized, do(srv, http.MethodGet, path, "", "").Code)
	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodGet, "/orders/missing", "", owner).Code)
}

func TestListOrders(t *testing.T) {
	srv, _ := newServer(t)
	user1 := token(t, auth.KindCustomer, "user-1")
	user2 := token(t, auth.KindCustomer, "user-2")
	admin := token(t, auth.KindAdmin, "admin-1")
	createOrder(t, srv, user1)
	createOrder(t, srv, user1)
	toCancel := createOrder(t, srv, user2)
	require.Equal(t, http.StatusOK, do(srv, http.MethodPost, "/orders/"+toCancel.ID+"/cancel", "", user2).Code)

	count := func(rec *httptest.ResponseRecorder) int {
		t.Helper()
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var page struct {
			Orders []domain.Order `json:"orders"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
		return len(page.Orders)
	}

	assert.Equal(t, 2, count(do(srv, http.MethodGet, "/orders", "", user1)))
	assert.Equal(t, 3, count(do(srv, http.MethodGet, "/orders", "", admin)))
	assert.Equal(t, 1, count(do(srv, http.MethodGet, "/orders?status=cancelled", "", admin)))
	assert.Equal(t, 1, count(do(srv, http.MethodGet, "/orders?page=1&page_size=1", "", admin)))

	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/orders?status=lost", "", admin).Code)
	assert.Equal(t, http.StatusBadRequest, do(srv, http.MethodGet, "/orders?page=two", "", admin).Code)
}

func TestUpdateOrder(t *testing.T) {
	srv, _ := newServer(t)
	customer := token(t, auth.KindCustomer, "user-1")
	admin := token(t, auth.KindAdmin, "admin-1")
	order := createOrder(t, srv, customer)
	path := "/orders/" + order.ID

	t.Run("admin only", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{"status":"cancelled"}`, customer)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("sets the tracking number", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{"trackingNumber":"TRK-1"}`, admin)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "TRK-1", decodeOrder(t, rec).TrackingNumber)
	})

	t.Run("rejects a disallowed transition", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{"status":"delivered"}`, admin)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("rejects an unknown status", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{"status":"lost"}`, admin)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an empty update", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{}`, admin)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("applies an allowed transition", func(t *testing.T) {
		rec := do(srv, http.MethodPut, path, `{"status":"cancelled"}`, admin)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, domain.StatusCancelled, decodeOrder(t, rec).Status)
	})
}

func TestCancelOrder(t *testing.T) {
	srv, _ := newServer(t)
	owner := token(t, auth.KindCustomer, "user-1")
	order := createOrder(t, srv, owner)
	path := "/orders/" + order.ID + "/cancel"

	assert.Equal(t, http.StatusNotFound, do(srv, http.MethodPost, path, "", token(t, auth.KindCustomer, "user-2")).Code)
	assert.Equal(t, http.StatusForbidden, do(srv, http.MethodPost, path, "", token(t, auth.KindAdmin, "admin-1")).Code)

	rec := do(srv, http.MethodPost, path, "", owner)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.StatusCancelled, decodeOrder(t, rec).Status)

	assert.Equal(t, http.StatusConflict, do(srv, http.MethodPost, path, "", owner).Code)
}

func queriesFor(customerID string) queries.ListOrdersQuery {
	return queries.ListOrdersQuery{CustomerID: customerID}
}
