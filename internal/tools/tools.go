// Package tools exposes the gateway operations as langchaingo tools. Every
// tool takes a JSON object as input and answers with a JSON document; errors
// are returned as the API error body so an agent can read the failing field.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/tools"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/models"
)

var (
	_ tools.Tool = (*QuoteTool)(nil)
	_ tools.Tool = (*BuildSwapTool)(nil)
	_ tools.Tool = (*PoolQuoteTool)(nil)
)

// QuoteTool prices a trade from explicit reserves.
type QuoteTool struct {
	Gateway *gateway.Service
}

func (QuoteTool) Name() string { return "dex_quote" }

func (QuoteTool) Description() string {
	return `Computes the constant-product output amount of a swap. ` +
		`Input: JSON {"amountIn": "<u64 string>", "reserveIn": "<string>", "reserveOut": "<string>", "feeBps": <int>, "slippageBps": <int, optional>}. ` +
		`Output: JSON {"amountOut": "<string>", "minAmountOut": "<string, when slippageBps is set>"}.`
}

func (t QuoteTool) Call(ctx context.Context, input string) (string, error) {
	var req gateway.QuoteRequest
	if errOut, ok := decode(input, &req); !ok {
		return errOut, nil
	}
	out, err := t.Gateway.Quote(ctx, models.SourceTool, req)
	return respond(out, err)
}

// BuildSwapTool returns the unsigned swap instruction for a request.
type BuildSwapTool struct {
	Gateway *gateway.Service
}

func (BuildSwapTool) Name() string { return "dex_build_swap" }

func (BuildSwapTool) Description() string {
	return `Builds an unsigned dex-ai swap instruction. ` +
		`Input: JSON with base58 strings programId, pool, user, userSource, userDestination, vaultA, vaultB, tokenProgram, ` +
		`decimal strings amountIn and minAmountOut, optional verifyAccounts (bool) and expectedMints (field -> mint). ` +
		`Output: JSON {"programId", "keys": [{"pubkey", "isSigner", "isWritable"}], "data": "<base64>"}. ` +
		`The instruction is not signed or sent.`
}

func (t BuildSwapTool) Call(ctx context.Context, input string) (string, error) {
	var req gateway.BuildSwapRequest
	if errOut, ok := decode(input, &req); !ok {
		return errOut, nil
	}
	ix, err := t.Gateway.BuildSwap(ctx, models.SourceTool, req)
	if err != nil {
		return respond(nil, err)
	}
	return respond(ix.Wire(), nil)
}

// PoolQuoteTool prices a trade against a live pool.
type PoolQuoteTool struct {
	Gateway *gateway.Service
}

func (PoolQuoteTool) Name() string { return "dex_pool_quote" }

func (PoolQuoteTool) Description() string {
	return `Quotes a swap against the live reserves of a dex-ai pool. ` +
		`Input: JSON {"pool": "<base58>", "amountIn": "<string>", "inputMint": "<base58>" or "aToB": <bool>, "slippageBps": <int, optional>}. ` +
		`Output: JSON with amountOut, minAmountOut, feeBps, reserves and priceImpact.`
}

func (t PoolQuoteTool) Call(ctx context.Context, input string) (string, error) {
	var req struct {
		Pool string `json:"pool"`
		gateway.PoolQuoteRequest
	}
	if errOut, ok := decode(input, &req); !ok {
		return errOut, nil
	}
	q, err := t.Gateway.PoolQuote(ctx, models.SourceTool, req.Pool, req.PoolQuoteRequest)
	if err != nil {
		return respond(nil, err)
	}
	return respond(gateway.NewPoolQuoteResponse(q), nil)
}

// All returns every gateway tool bound to svc.
func All(svc *gateway.Service) []tools.Tool {
	return []tools.Tool{
		QuoteTool{Gateway: svc},
		BuildSwapTool{Gateway: svc},
		PoolQuoteTool{Gateway: svc},
	}
}

// decode parses input into v. On failure it returns the rendered error body
// and false.
func decode(input string, v any) (string, bool) {
	input = strings.TrimSpace(input)
	// Agents often wrap the input in a code fence.
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")

	if err := json.Unmarshal([]byte(strings.TrimSpace(input)), v); err != nil {
		out, _ := json.Marshal(apierr.Response{
			Error: fmt.Sprintf("invalid json input: %v", err),
			Code:  apierr.CodeValidation,
		})
		return string(out), false
	}
	return "", true
}

// respond renders a result or an error body. Domain errors are part of the
// tool's answer, not a tool failure.
func respond(v any, err error) (string, error) {
	if err != nil {
		_, body := apierr.Classify(err)
		v = body
	}
	out, mErr := json.Marshal(v)
	if mErr != nil {
		return "", fmt.Errorf("marshal tool output: %w", mErr)
	}
	return string(out), nil
}
