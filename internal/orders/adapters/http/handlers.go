package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/idempotency"
	"github.com/dejobratic/storefront/internal/orders/app/commands"
	"github.com/dejobratic/storefront/internal/orders/app/queries"
	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
	"github.com/dejobratic/storefront/internal/validation"
)

// Ledger is the order service surface the handlers drive.
type Ledger interface {
	CreatePendingOrder(ctx context.Context, cmd commands.CreatePendingOrderCommand) (*domain.Order, error)
	UpdateStatus(ctx context.Context, cmd commands.UpdateStatusCommand) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID, customerID string) (*domain.Order, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrders(ctx context.Context, query queries.ListOrdersQuery) (queries.OrderPage, error)
}

// Handler exposes HTTP endpoints for order operations.
type Handler struct {
	ledger Ledger
}

// NewHandler constructs a Handler.
func NewHandler(ledger Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// Register binds the order handlers to the provided ServeMux. idempotent
// wraps order creation, which accepts an Idempotency-Key.
func (h *Handler) Register(mux *http.ServeMux, idempotent httpapi.Middleware) {
	mux.Handle("POST /orders", idempotent(http.HandlerFunc(h.createOrder)))
	mux.Handle("GET /orders", auth.RequireAuthenticated(http.HandlerFunc(h.listOrders)))
	mux.Handle("GET /orders/{id}", auth.RequireAuthenticated(http.HandlerFunc(h.getOrder)))
	mux.Handle("PUT /orders/{id}", auth.RequireAdmin(http.HandlerFunc(h.updateOrder)))
	mux.Handle("POST /orders/{id}/cancel", auth.RequireCustomer(http.HandlerFunc(h.cancelOrder)))
}

type lineItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type createOrderRequest struct {
	ShippingID   string            `json:"shippingId" validate:"required"`
	Items        []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal     decimal.Decimal   `json:"subtotal" validate:"gt=0"`
	ShippingCost decimal.Decimal   `json:"shippingCost" validate:"gte=0"`
	Discount     decimal.Decimal   `json:"discount" validate:"gte=0"`
	Total        decimal.Decimal   `json:"total" validate:"gte=0"`
	CouponCode   string            `json:"couponCode"`
	Notes        string            `json:"notes" validate:"max=1000"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	items := make([]commands.LineItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, commands.LineItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}

	// Guests may order; the customer id stays empty for them.
	order, err := h.ledger.CreatePendingOrder(r.Context(), commands.CreatePendingOrderCommand{
		CustomerID:        auth.FromContext(r.Context()).UserID,
		ShippingAddressID: req.ShippingID,
		Items:             items,
		Subtotal:          req.Subtotal,
		ShippingCost:      req.ShippingCost,
		Discount:          req.Discount,
		Total:             req.Total,
		CouponCode:        req.CouponCode,
		Notes:             req.Notes,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	w.Header().Set(idempotency.ResourceHeader, order.ID)
	httpapi.WriteJSON(w, http.StatusCreated, map[string]any{"order": order})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	// Someone else's order is reported as missing.
	id := auth.FromContext(r.Context())
	if !id.IsAdmin() && order.CustomerID != id.UserID {
		httpapi.WriteError(w, r, ports.ErrNotFound)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

var (
	errInvalidStatus = apperr.Validation("invalid status", apperr.FieldViolation{Field: "status", Rule: "oneof"})
	errInvalidPage   = apperr.Validation("invalid paging", apperr.FieldViolation{Field: "page", Rule: "numeric"})
)

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id := auth.FromContext(r.Context())
	query := queries.ListOrdersQuery{CustomerID: id.UserID}
	if id.IsAdmin() {
		query.CustomerID = ""
	}

	params := r.URL.Query()
	if raw := params.Get("status"); raw != "" {
		status, ok := domain.ParseStatus(raw)
		if !ok {
			httpapi.WriteError(w, r, errInvalidStatus)
			return
		}
		query.Status = &status
	}

	var err error
	if query.Page, err = intParam(params.Get("page")); err != nil {
		httpapi.WriteError(w, r, errInvalidPage)
		return
	}
	if query.PageSize, err = intParam(params.Get("page_size")); err != nil {
		httpapi.WriteError(w, r, errInvalidPage)
		return
	}

	page, err := h.ledger.ListOrders(r.Context(), query)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, page)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

type updateOrderRequest struct {
	Status         string  `json:"status" validate:"omitempty,oneof=pending confirmed shipped delivered cancelled"`
	TrackingNumber *string `json:"trackingNumber" validate:"omitempty,max=100"`
}

var errEmptyUpdate = apperr.Validation("nothing to update",
	apperr.FieldViolation{Field: "status", Rule: "required_without"},
	apperr.FieldViolation{Field: "trackingNumber", Rule: "required_without"},
)

func (h *Handler) updateOrder(w http.ResponseWriter, r *http.Request) {
	var req updateOrderRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if req.Status == "" && req.TrackingNumber == nil {
		httpapi.WriteError(w, r, errEmptyUpdate)
		return
	}

	order, err := h.ledger.UpdateStatus(r.Context(), commands.UpdateStatusCommand{
		OrderID:        r.PathValue("id"),
		Status:         domain.OrderStatus(req.Status),
		TrackingNumber: req.TrackingNumber,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.CancelOrder(r.Context(), r.PathValue("id"), auth.FromContext(r.Context()).UserID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}
