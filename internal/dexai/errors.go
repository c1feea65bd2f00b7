package dexai

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure returned by the builder wraps exactly one of
// these, except a caller cancellation, which wraps context.Canceled.
var (
	ErrMissingParameter         = errors.New("missing parameter")
	ErrInvalidAccountIdentity   = errors.New("invalid account identity")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrAccountNotFound          = errors.New("account not found")
	ErrMintMismatch             = errors.New("mint mismatch")
	ErrExternalFrameworkFailure = errors.New("external framework failure")
	ErrNetworkTimeout           = errors.New("network timeout")
)

// ErrVerifierUnavailable is returned when an account check is requested but
// the builder has no verifier configured.
var ErrVerifierUnavailable = errors.New("account verifier is not configured")

var kindNames = map[error]string{
	ErrMissingParameter:         "MissingParameter",
	ErrInvalidAccountIdentity:   "InvalidAccountIdentity",
	ErrInvalidAmount:            "InvalidAmount",
	ErrAccountNotFound:          "AccountNotFound",
	ErrMintMismatch:             "MintMismatch",
	ErrExternalFrameworkFailure: "ExternalFrameworkFailure",
	ErrNetworkTimeout:           "NetworkTimeout",
}

// FieldError attributes a failure to a single request field or pipeline step.
type FieldError struct {
	Kind     error  // one of the Err* kinds above
	Field    string // offending field, e.g. "vaultA"
	Value    string // offending raw value or account address
	Expected string // MintMismatch only
	Actual   string // MintMismatch only
	Op       string // call site for ExternalFrameworkFailure / NetworkTimeout
	Err      error  // underlying cause, if any
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())

	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Op != "" {
		fmt.Fprintf(&b, " (%s)", e.Op)
	}

	switch {
	case e.Kind == ErrMintMismatch:
		fmt.Fprintf(&b, " expected mint %s, got %s", e.Expected, e.Actual)
	case e.Value != "":
		fmt.Fprintf(&b, " %q", e.Value)
	}

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *FieldError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindName returns the taxonomy name of err ("InvalidAmount", ...) or "" if
// err does not belong to the builder taxonomy.
func KindName(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		if name, ok := kindNames[fe.Kind]; ok {
			return name
		}
	}
	for kind, name := range kindNames {
		if errors.Is(err, kind) {
			return name
		}
	}
	return ""
}

// IsValidation reports whether err is a caller-side precondition failure
// (bad input or a failed on-chain account check).
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingParameter) ||
		errors.Is(err, ErrInvalidAccountIdentity) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrMintMismatch)
}

// FieldOf returns the field a builder error is attributed to.
func FieldOf(err error) string {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field
	}
	return ""
}

func missing(field string) error {
	return &FieldError{Kind: ErrMissingParameter, Field: field}
}

func invalidIdentity(field, value string, cause error) error {
	return &FieldError{Kind: ErrInvalidAccountIdentity, Field: field, Value: value, Err: cause}
}

func invalidAmount(field, value, reason string) error {
	return &FieldError{Kind: ErrInvalidAmount, Field: field, Value: value, Err: errors.New(reason)}
}
