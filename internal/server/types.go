package server

import (
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse = apierr.Response

// HealthResponse represents the health check response
type HealthResponse struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"` // dependency -> "ok" or the error
}

type (
	QuoteRequest      = gateway.QuoteRequest
	QuoteResponse     = gateway.QuoteResponse
	BuildSwapRequest  = gateway.BuildSwapRequest
	PoolQuoteRequest  = gateway.PoolQuoteRequest
	PoolResponse      = gateway.PoolResponse
	PoolQuoteResponse = gateway.PoolQuoteResponse
)

// FlagUpsertRequest represents a request to create or update a feature flag
type FlagUpsertRequest struct {
	Key   string `json:"key"`
	Value bool   `json:"value"`
}

// FlagUpdateRequest represents a request to update an existing feature flag
type FlagUpdateRequest struct {
	Value bool `json:"value"`
}

// AIAskRequest carries a natural language question.
type AIAskRequest struct {
	Question string `json:"question"`
}

type AIAskResponse struct {
	Answer string `json:"answer"`
	SQL    string `json:"sql,omitempty"`
}
