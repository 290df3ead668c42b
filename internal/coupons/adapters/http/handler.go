package http

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/dejobratic/storefront/internal/apperr"
	"github.com/dejobratic/storefront/internal/coupons/domain"
	"github.com/dejobratic/storefront/internal/httpapi"
	"github.com/dejobratic/storefront/internal/validation"
)

// CouponValidator is the slice of the coupon service the handler needs.
type CouponValidator interface {
	Validate(ctx context.Context, code string, orderValue decimal.Decimal) (domain.Discount, error)
}

type Handler struct {
	validator CouponValidator
}

func NewHandler(validator CouponValidator) *Handler {
	return &Handler{validator: validator}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /coupons/validate", h.validate)
}

type validateRequest struct {
	Code       string          `json:"code" validate:"required"`
	OrderValue decimal.Decimal `json:"orderValue" validate:"gte=0"`
}

type validateResponse struct {
	Valid    bool             `json:"valid"`
	Discount *decimal.Decimal `json:"discount,omitempty"`
	Type     domain.Type      `json:"type,omitempty"`
	Error    string           `json:"error,omitempty"`
	Reason   string           `json:"reason,omitempty"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := httpapi.DecodeJSON(r, &req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}
	if err := validation.Struct(req); err != nil {
		httpapi.WriteError(w, r, err)
		return
	}

	discount, err := h.validator.Validate(r.Context(), req.Code, req.OrderValue)
	if err != nil {
		reason, ok := domain.Reason(err)
		if !ok {
			httpapi.WriteError(w, r, err)
			return
		}
		appErr, _ := apperr.As(err)
		httpapi.WriteJSON(w, http.StatusOK, validateResponse{Error: appErr.Message, Reason: reason})
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, validateResponse{
		Valid:    true,
		Discount: &discount.Amount,
		Type:     discount.Type,
	})
}
