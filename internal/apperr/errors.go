// Package apperr defines the error taxonomy shared by every bounded context.
// Handlers translate a Kind into a transport status; everything else only
// wraps and inspects errors.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an error by how the caller is expected to react to it.
type Kind string

const (
	KindUnauthenticated     Kind = "unauthenticated"
	KindForbidden           Kind = "forbidden"
	KindValidation          Kind = "validation"
	KindNotFound            Kind = "not_found"
	KindConflict            Kind = "conflict"
	KindRateLimited         Kind = "rate_limited"
	KindGatewayUnavailable  Kind = "gateway_unavailable"
	KindInvalidSignature    Kind = "invalid_signature"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindLedgerInconsistency Kind = "ledger_inconsistency"
	KindInternal            Kind = "internal"
)

// FieldViolation names a single rejected input field.
type FieldViolation struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// Error is a classified error with a message that is safe to show to clients.
type Error struct {
	Kind    Kind
	Message string
	Fields  []FieldViolation
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies err. The message is what clients see; err is kept for logs.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a validation error listing every violated field.
func Validation(message string, fields ...FieldViolation) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

// KindOf returns the kind of the outermost classified error in the chain,
// or KindInternal when nothing in the chain is classified.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// As returns the outermost classified error in the chain.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Is reports whether err is classified with kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
