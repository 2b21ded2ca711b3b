// Package common provides transport-agnostic contracts shared by the HTTP and MCP adapters.
package common

import (
	"errors"
	"net/http"

	"github.com/hylla/nexus/internal/app"
	"github.com/hylla/nexus/internal/domain"
)

// ErrInvalidRequest reports malformed transport input (bad JSON, missing parameters).
var ErrInvalidRequest = errors.New("invalid request")

// ErrRateLimited reports a caller that exceeded its request budget.
var ErrRateLimited = errors.New("rate limited")

// Stable error codes shared by REST envelopes and MCP tool errors.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeUnauthenticated  = "unauthenticated"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodePayloadTooLarge  = "payload_too_large"
	CodeRateLimited      = "rate_limited"
	CodeUnavailable      = "service_unavailable"
	CodeInternal         = "internal_error"
	CodeMethodNotAllowed = "method_not_allowed"
)

// Classify maps an error onto a transport code and HTTP status.
func Classify(err error) (string, int) {
	var maxBytes *http.MaxBytesError
	switch {
	case err == nil:
		return CodeInternal, http.StatusInternalServerError
	case errors.Is(err, app.ErrFileTooLarge), errors.As(err, &maxBytes):
		return CodePayloadTooLarge, http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, domain.ErrValidation):
		return CodeInvalidRequest, http.StatusBadRequest
	case errors.Is(err, app.ErrUnauthenticated):
		return CodeUnauthenticated, http.StatusUnauthorized
	case errors.Is(err, app.ErrForbidden):
		return CodeForbidden, http.StatusForbidden
	case errors.Is(err, app.ErrNotFound):
		return CodeNotFound, http.StatusNotFound
	case errors.Is(err, app.ErrConflict):
		return CodeConflict, http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited, http.StatusTooManyRequests
	case errors.Is(err, app.ErrUnavailable):
		return CodeUnavailable, http.StatusServiceUnavailable
	default:
		return CodeInternal, http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Internal failures are not echoed.
func PublicMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	if code, _ := Classify(err); code == CodeInternal {
		return "internal error"
	}
	return err.Error()
}
