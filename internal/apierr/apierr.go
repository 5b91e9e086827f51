// Package apierr is the closed error taxonomy shared by the HTTP handlers.
//
// Handlers classify failures into a Kind at the boundary; the Kind decides
// the HTTP status and the "code" field of the JSON error body.
package apierr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindDecode         Kind = "decode_error"
	KindUpstream       Kind = "upstream_error"
	KindUnavailable    Kind = "unavailable"
	KindInternal       Kind = "internal_error"
	KindRateLimited    Kind = "rate_limited"
)

// Status is the default HTTP status for the kind. Upstream errors that carry
// a provider status override it.
func (k Kind) Status() int {
	switch k {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Kind    Kind
	Message string

	// StatusCode overrides Kind.Status when non-zero.
	StatusCode int

	// Details is included verbatim in the response body.
	Details any

	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Message == "" {
		return e.Cause.Error()
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Status() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}
	return e.Kind.Status()
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Cause: err}
}

func InvalidRequest(message string) *Error { return New(KindInvalidRequest, message) }

func Decode(err error) *Error { return Wrap(KindDecode, err) }

func Internal(err error) *Error { return Wrap(KindInternal, err) }

// Upstream reports a provider rejection with the provider's status and body.
func Upstream(status int, message string, details any) *Error {
	return &Error{Kind: KindUpstream, Message: message, StatusCode: status, Details: details}
}

// From classifies err. Errors outside the taxonomy become internal errors.
func From(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

// Body is the JSON error shape returned to clients.
type Body struct {
	Error   string `json:"error"`
	Code    Kind   `json:"code"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Body() Body {
	return Body{Error: e.Error(), Code: e.Kind, Details: e.Details}
}

// Write renders err as a JSON error response.
func Write(w http.ResponseWriter, err error) {
	e := From(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.Status())
	_ = json.NewEncoder(w).Encode(e.Body())
}
