package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/amm"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
		kind   string
	}{
		{
			name:   "builder validation",
			err:    &dexai.FieldError{Kind: dexai.ErrInvalidAccountIdentity, Field: dexai.FieldVaultA, Value: "x"},
			status: http.StatusBadRequest,
			code:   CodeValidation,
			field:  dexai.FieldVaultA,
			kind:   "InvalidAccountIdentity",
		},
		{
			name:   "account not found",
			err:    &dexai.FieldError{Kind: dexai.ErrAccountNotFound, Field: dexai.FieldUserSource},
			status: http.StatusBadRequest,
			code:   CodeValidation,
			field:  dexai.FieldUserSource,
			kind:   "AccountNotFound",
		},
		{
			name:   "network timeout",
			err:    &dexai.FieldError{Kind: dexai.ErrNetworkTimeout, Op: "verify token accounts", Err: context.DeadlineExceeded},
			status: http.StatusGatewayTimeout,
			code:   CodeInternal,
			kind:   "NetworkTimeout",
		},
		{
			name:   "caller cancelled",
			err:    fmt.Errorf("verify token accounts: %w", context.Canceled),
			status: StatusClientClosedRequest,
			code:   CodeCanceled,
		},
		{
			name:   "framework failure",
			err:    &dexai.FieldError{Kind: dexai.ErrExternalFrameworkFailure, Err: errors.New("boom")},
			status: http.StatusInternalServerError,
			code:   CodeInternal,
			kind:   "ExternalFrameworkFailure",
		},
		{
			name:   "quote field",
			err:    Field("feeBps", fmt.Errorf("%w: out of range", amm.ErrInvalidParameter)),
			status: http.StatusBadRequest,
			code:   CodeValidation,
			field:  "feeBps",
		},
		{
			name:   "pool not found",
			err:    fmt.Errorf("%w: x", pools.ErrPoolNotFound),
			status: http.StatusNotFound,
			code:   CodeNotFound,
		},
		{
			name:   "verifier missing",
			err:    dexai.ErrVerifierUnavailable,
			status: http.StatusServiceUnavailable,
			code:   CodeUnavailable,
		},
		{
			name:   "anything else",
			err:    errors.New("redis exploded"),
			status: http.StatusInternalServerError,
			code:   CodeInternal,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, resp := Classify(tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, resp.Code)
			assert.Equal(t, tc.field, resp.Field)
			assert.Equal(t, tc.kind, resp.Kind)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, CodeUnauthorized, CodeForStatus(http.StatusUnauthorized))
	assert.Equal(t, CodeRateLimited, CodeForStatus(http.StatusTooManyRequests))
	assert.Equal(t, CodeInternal, CodeForStatus(http.StatusTeapot))
}
