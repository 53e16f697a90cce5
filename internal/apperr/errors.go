// Package apperr carries the failure kinds every service reports and the
// HTTP status each kind maps to.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidInput           Kind = "invalid_input"
	KindNotFound               Kind = "not_found"
	KindInsufficientStock      Kind = "insufficient_stock"
	KindInvalidSize            Kind = "invalid_size"
	KindNoValidSize            Kind = "no_valid_size"
	KindNoProductConfiguration Kind = "no_product_configuration"
	KindInvalidImageFormat     Kind = "invalid_image_format"
	KindInvalidTransition      Kind = "invalid_transition"
	KindConflict               Kind = "conflict"
	KindUpstreamUnavailable    Kind = "upstream_unavailable"
	KindInternal               Kind = "internal_error"
)

// Error is a classified failure. Message is safe to show to the caller.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message == "" {
		return e.Err.Error()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, apperr.InsufficientStock("")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func InvalidInput(format string, args ...any) *Error {
	return New(KindInvalidInput, format, args...)
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, format, args...)
}

func InsufficientStock(name string) *Error {
	return New(KindInsufficientStock, "Insufficient stock for %s", name)
}

func InvalidSize(size, name string) *Error {
	return New(KindInvalidSize, "Invalid size '%s' for service %s", size, name)
}

func NoValidSize(name string) *Error {
	return New(KindNoValidSize, "No valid sizes found for service %s", name)
}

func NoProductConfiguration(size string) *Error {
	return New(KindNoProductConfiguration, "No product configuration for %s size", size)
}

func InvalidImageFormat() *Error {
	return New(KindInvalidImageFormat, "Invalid payment proof format, expected data:<mime>;base64,<payload>")
}

func Upstream(err error, what string) *Error {
	return Wrap(KindUpstreamUnavailable, err, "%s", what)
}

// KindOf extracts the kind of err; unclassified errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message returns the caller-facing text of err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func HTTPStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput, KindInsufficientStock, KindInvalidSize, KindNoValidSize,
		KindNoProductConfiguration, KindInvalidImageFormat, KindInvalidTransition:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
