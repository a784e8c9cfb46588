// Package apperr defines the error kinds surfaced by the storefront services
// and their mapping onto HTTP status codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindInvalidState
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "internal"
	}
}

// HTTPStatus maps a kind to the response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a kind, a stable machine-readable code and a message safe to
// show to clients. Err holds the underlying cause, which is never rendered.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, "validation_error", format, args...)
}

func InvalidValue(format string, args ...any) *Error {
	return newError(KindValidation, "invalid_value", format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(KindNotFound, "not_found", format, args...)
}

func ProductNotFound(productID int64) *Error {
	return newError(KindNotFound, "product_not_found", "product %d not found", productID)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(KindUnauthorized, "unauthorized", format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(KindForbidden, "forbidden", format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(KindConflict, "conflict", format, args...)
}

// InsufficientStock is returned when a product cannot cover the requested quantity.
func InsufficientStock(productID int64) *Error {
	return newError(KindConflict, "insufficient_stock", "insufficient stock for product %d", productID)
}

func InvalidStateTransition(format string, args ...any) *Error {
	return newError(KindInvalidState, "invalid_state_transition", format, args...)
}

// Internal wraps an unexpected failure. The cause is kept for logs only.
func Internal(err error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: "internal server error", Err: err}
}

// As extracts an *Error from the chain. Untyped errors come back as Internal.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	return As(err).Kind
}

// Is reports whether err carries the given code.
func Is(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
