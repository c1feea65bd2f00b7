package tools

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-zulfiqar/dex-ai-gateway/internal/apierr"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/chain/chaintest"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/gateway"
	"github.com/aman-zulfiqar/dex-ai-gateway/internal/pools"
)

func key(n byte) solana.PublicKey {
	var pk solana.PublicKey
	for i := range pk {
		pk[i] = n
	}
	return pk
}

func newGateway(t *testing.T) *gateway.Service {
	t.Helper()
	ledger := chaintest.NewLedger()
	data, err := dexai.PoolAccount{
		Authority: key(10), MintA: key(11), MintB: key(12), VaultA: key(13), VaultB: key(14), FeeBps: 30,
	}.Encode()
	require.NoError(t, err)
	ledger.Put(key(2), key(1), data)
	ledger.PutTokenAccount(key(13), key(11), key(10), 10_000_000_000)
	ledger.PutTokenAccount(key(14), key(12), key(10), 20_000_000_000)

	return gateway.New(gateway.Config{
		Pools: pools.NewReader(pools.ReaderConfig{Accounts: ledger}),
	})
}

func TestQuoteTool(t *testing.T) {
	tool := QuoteTool{Gateway: newGateway(t)}
	assert.Equal(t, "dex_quote", tool.Name())
	assert.Contains(t, tool.Description(), "feeBps")

	out, err := tool.Call(context.Background(),
		`{"amountIn":"1000000","reserveIn":"10000000000","reserveOut":"20000000000","feeBps":30,"slippageBps":100}`)
	require.NoError(t, err)

	var resp gateway.QuoteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "1993801", resp.AmountOut)
	assert.Equal(t, "1973862", resp.MinAmountOut)
}

func TestQuoteTool_ErrorsAreAnswers(t *testing.T) {
	tool := QuoteTool{Gateway: newGateway(t)}

	out, err := tool.Call(context.Background(), `{"amountIn":"-5","reserveIn":"1","reserveOut":"1","feeBps":30}`)
	require.NoError(t, err)

	var resp apierr.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, apierr.CodeValidation, resp.Code)
	assert.Equal(t, "amountIn", resp.Field)

	out, err = tool.Call(context.Background(), `not json`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, apierr.CodeValidation, resp.Code)
	assert.Contains(t, resp.Error, "invalid json input")
}

func TestBuildSwapTool(t *testing.T) {
	tool := BuildSwapTool{Gateway: newGateway(t)}

	input := map[string]any{
		"programId":       key(1).String(),
		"pool":            key(2).String(),
		"user":            key(3).String(),
		"userSource":      key(4).String(),
		"userDestination": key(5).String(),
		"vaultA":          key(13).String(),
		"vaultB":          key(14).String(),
		"tokenProgram":    solana.TokenProgramID.String(),
		"amountIn":        "1000",
		"minAmountOut":    "990",
	}
	raw, err := json.Marshal(input)
	require.NoError(t, err)

	// Fenced input as produced by chat models.
	out, err := tool.Call(context.Background(), "```json\n"+string(raw)+"\n```")
	require.NoError(t, err)

	var ix dexai.WireInstruction
	require.NoError(t, json.Unmarshal([]byte(out), &ix))
	assert.Equal(t, key(1).String(), ix.ProgramID)
	require.Len(t, ix.Keys, 7)
	assert.Equal(t, key(3).String(), ix.Keys[0].Pubkey)

	data, err := base64.StdEncoding.DecodeString(ix.Data)
	require.NoError(t, err)
	assert.Equal(t, dexai.SwapDiscriminator[:], data[:8])

	input["pool"] = "short"
	raw, err = json.Marshal(input)
	require.NoError(t, err)
	out, err = tool.Call(context.Background(), string(raw))
	require.NoError(t, err)

	var resp apierr.Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "InvalidAccountIdentity", resp.Kind)
	assert.Equal(t, "pool", resp.Field)
}

func TestPoolQuoteTool(t *testing.T) {
	tool := PoolQuoteTool{Gateway: newGateway(t)}

	out, err := tool.Call(context.Background(),
		`{"pool":"`+key(2).String()+`","amountIn":"1000000","inputMint":"`+key(11).String()+`","slippageBps":100}`)
	require.NoError(t, err)

	var resp gateway.PoolQuoteResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.AToB)
	assert.Equal(t, "1993801", resp.AmountOut)
	assert.Equal(t, int64(30), resp.FeeBps)

	out, err = tool.Call(context.Background(), `{"pool":"`+key(9).String()+`","amountIn":"1","aToB":true}`)
	require.NoError(t, err)
	var errResp apierr.Response
	require.NoError(t, json.Unmarshal([]byte(out), &errResp))
	assert.Equal(t, apierr.CodeNotFound, errResp.Code)
}

func TestAll(t *testing.T) {
	names := map[string]bool{}
	for _, tool := range All(newGateway(t)) {
		names[tool.Name()] = true
	}
	assert.Equal(t, map[string]bool{"dex_quote": true, "dex_build_swap": true, "dex_pool_quote": true}, names)
}
