// Package httpapi holds the HTTP plumbing shared by every context: JSON
// rendering, error translation, middleware and health endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/dejobratic/storefront/internal/apperr"
)

// maxBodyBytes bounds request bodies accepted by DecodeJSON.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Kind    apperr.Kind             `json:"kind"`
	Message string                  `json:"message"`
	Fields  []apperr.FieldViolation `json:"fields,omitempty"`
}

// StatusFor maps an error kind onto the HTTP status clients receive.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindUnauthenticated:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindInvalidSignature:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindInsufficientStock:
		return http.StatusConflict
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError renders err as {"error": {...}}. Unclassified errors are logged
// and reported as a generic internal error.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Kind: apperr.KindInternal, Message: "internal error"}
	if appErr, ok := apperr.As(err); ok {
		body.Kind = appErr.Kind
		body.Message = appErr.Message
		body.Fields = appErr.Fields
	}

	status := StatusFor(body.Kind)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", body.Kind,
			"error", err,
		)
	}
	if body.Kind == apperr.KindGatewayUnavailable {
		w.Header().Set("Retry-After", "1")
	}

	WriteJSON(w, status, map[string]any{"error": body})
}

// DecodeJSON reads a single JSON object from the request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.KindValidation, "request body is empty")
		}
		return apperr.Wrap(apperr.KindValidation, "invalid JSON payload", fmt.Errorf("decode body: %w", err))
	}
	return nil
}
