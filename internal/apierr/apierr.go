// Package apierr maps domain errors onto the structured error shape shared
// by the HTTP API and the tool adapters.
package apierr

import (
	"context"
	"errors"
	"net/http"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/amm"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/flags"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
)

// Machine-readable error codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
	CodeNotFound     = "NOT_FOUND"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeUnavailable  = "UNAVAILABLE"
	CodeCanceled     = "CANCELED"
)

// StatusClientClosedRequest is reported when the caller cancelled the
// request before it completed.
const StatusClientClosedRequest = 499

// Response is the error body returned to clients.
type Response struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Details any    `json:"details,omitempty"`
}

// FieldError marks a request-shape problem in a field outside the builder
// pipeline, e.g. a quote amount.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string { return e.Field + ": " + e.Err.Error() }
func (e *FieldError) Unwrap() error { return e.Err }

// Field wraps err as a validation failure of field.
func Field(field string, err error) error {
	return &FieldError{Field: field, Err: err}
}

// ErrUnavailable reports a dependency that is not configured.
var ErrUnavailable = errors.New("not configured")

// Classify returns the HTTP status and body for err.
func Classify(err error) (int, Response) {
	resp := Response{Error: err.Error(), Kind: dexai.KindName(err)}

	var fe *FieldError
	if errors.As(err, &fe) {
		resp.Field = fe.Field
	}
	if f := dexai.FieldOf(err); f != "" {
		resp.Field = f
	}

	switch {
	case errors.Is(err, dexai.ErrNetworkTimeout), errors.Is(err, context.DeadlineExceeded):
		resp.Code = CodeInternal
		return http.StatusGatewayTimeout, resp

	case errors.Is(err, context.Canceled):
		resp.Code = CodeCanceled
		return StatusClientClosedRequest, resp

	case dexai.IsValidation(err),
		errors.Is(err, amm.ErrInvalidParameter),
		errors.Is(err, flags.ErrInvalidKey),
		errors.Is(err, pools.ErrWrongProgram),
		errors.Is(err, pools.ErrVaultMismatch),
		errors.Is(err, dexai.ErrNotPoolAccount),
		fe != nil:
		resp.Code = CodeValidation
		return http.StatusBadRequest, resp

	case errors.Is(err, pools.ErrPoolNotFound), errors.Is(err, flags.ErrNotFound):
		resp.Code = CodeNotFound
		return http.StatusNotFound, resp

	case errors.Is(err, dexai.ErrVerifierUnavailable), errors.Is(err, ErrUnavailable):
		resp.Code = CodeUnavailable
		return http.StatusServiceUnavailable, resp
	}

	resp.Code = CodeInternal
	return http.StatusInternalServerError, resp
}

// CodeForStatus picks the code for errors raised by the HTTP framework itself.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return CodeValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return CodeUnauthorized
	case http.StatusNotFound, http.StatusMethodNotAllowed:
		return CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	return CodeInternal
}
