package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/auth"
	"github.com/dejobratic/storefront/internal/checkout/app"
	"github.com/dejobratic/storefront/internal/checkout/domain"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/validation"
)

// Checkout is the orchestrator surface the handlers drive.
type Checkout interface {
	Initiate(ctx context.Context, cmd app.InitiateCommand) (*app.InitiateResult, error)
	Confirm(ctx context.Context, cmd app.ConfirmCommand) (*app.ConfirmResult, error)
	ListReconciliations(ctx context.Context, limit int) ([]domain.Reconciliation, error)
	ResolveReconciliation(ctx context.Context, id, resolution, resolvedBy string) (*domain.Reconciliation, error)
}

// Handler exposes the payment and reconciliation endpoints.
type Handler struct {
	checkout Checkout
}

func NewHandler(checkout Checkout) *Handler {
	return &Handler{checkout: checkout}
}

// Register binds the routes. rateLimit wraps every /payment route and
// idempotent wraps the intent route, which accepts an Idempotency-Key.
func (h *Handler) Register(mux *http.ServeMux, rateLimit, idempotent httpapi.Middleware) {
	mux.Handle("POST /payment/intent", httpapi.Chain(http.HandlerFunc(h.createIntent),
		rateLimit, auth.RequireAuthenticated, idempotent))
	mux.Handle("POST /payment/confirm", httpapi.Chain(http.HandlerFunc(h.confirm),
		rateLimit, auth.RequireAuthenticated))

	mux.Handle("GET /admin/reconciliations", auth.RequireAdmin(http.HandlerFunc(h.listReconciliations)))
	mux.Handle("POST /admin/reconciliations/{id}/resolve", auth.RequireAdmin(http.HandlerFunc(h.resolveReconciliation)))
}

type intentRequest struct {
	Amount   decimal.Decimal   `json:"amount" validate:"gt=0"`
	Currency string            `json:"currency" validate:"omitempty,len=3,alpha"`
	Notes    map[string]string `json:"notes"`
}

func (h *Handler) createIntent(w http.ResponseWriter, r *http.Request) {
	var req intentRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	res, err := h.checkout.Initiate(r.Context(), app.InitiateCommand{
		UserID:   auth.FromContext(r.Context()).UserID,
		Amount:   req.Amount,
		Currency: strings.ToUpper(req.Currency),
		Notes:    req.Notes,
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, res)
}

type draftItemRequest struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	Color     string `json:"color"`
	Size      string `json:"size"`
}

type orderDraftRequest struct {
	ShippingID   string             `json:"shippingId" validate:"required"`
	Items        []draftItemRequest `json:"items" validate:"required,min=1,dive"`
	Subtotal     decimal.Decimal    `json:"subtotal" validate:"gt=0"`
	ShippingCost decimal.Decimal    `json:"shippingCost" validate:"gte=0"`
	Discount     decimal.Decimal    `json:"discount" validate:"gte=0"`
	Total        decimal.Decimal    `json:"total" validate:"gte=0"`
	CouponCode   string             `json:"couponCode"`
	Notes        string             `json:"notes" validate:"max=1000"`
}

type confirmRequest struct {
	IntentID   string            `json:"intentId" validate:"required"`
	PaymentID  string            `json:"paymentId" validate:"required"`
	Signature  string            `json:"signature" validate:"required"`
	OrderDraft orderDraftRequest `json:"orderDraft"`
}

func (req orderDraftRequest) toDomain() domain.OrderDraft {
	items := make([]domain.DraftItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.DraftItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Color:     item.Color,
			Size:      item.Size,
		})
	}
	return domain.OrderDraft{
		ShippingAddressID: req.ShippingID,
		Items:             items,
		Subtotal:          req.Subtotal,
		ShippingCost:      req.ShippingCost,
		Discount:          req.Discount,
		Total:             req.Total,
		CouponCode:        req.CouponCode,
		Notes:             req.Notes,
	}
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	res, err := h.checkout.Confirm(r.Context(), app.ConfirmCommand{
		UserID:    auth.FromContext(r.Context()).UserID,
		IntentID:  req.IntentID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		Draft:     req.OrderDraft.toDomain(),
	})
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, res)
}

var errInvalidLimit = apperr.Validation("invalid limit", apperr.FieldViolation{Field: "limit", Rule: "numeric"})

func (h *Handler) listReconciliations(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			httpapi.WriteError(w, r, errInvalidLimit)
			return
		}
		limit = n
	}

	records, err := h.checkout.ListReconciliations(r.Context(), limit)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"reconciliations": records})
}

type resolveRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

func (h *Handler) resolveReconciliation(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	record, err := h.checkout.ResolveReconciliation(r.Context(), r.PathValue("id"), req.Resolution, auth.FromContext(r.Context()).UserID)
	if err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"reconciliation": record})
}
