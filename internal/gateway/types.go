package gateway

import "github.com/aman-zulfiqar/dex-ai-gateway/internal/dexai"

// QuoteRequest carries the four quote parameters, all required.
type QuoteRequest struct {
	AmountIn    string `json:"amountIn"`
	ReserveIn   string `json:"reserveIn"`
	ReserveOut  string `json:"reserveOut"`
	FeeBps      *int64 `json:"feeBps"`
	SlippageBps *int64 `json:"slippageBps,omitempty"` // optional, adds minAmountOut
}

type QuoteResponse struct {
	AmountOut    string `json:"amountOut"`
	MinAmountOut string `json:"minAmountOut,omitempty"`
}

// BuildSwapRequest is the ten required swap fields plus optional on-chain
// checks. Setting ExpectedMints turns verification on unless VerifyAccounts
// is explicitly false.
type BuildSwapRequest struct {
	dexai.SwapRequest
	VerifyAccounts *bool             `json:"verifyAccounts,omitempty"`
	ExpectedMints  map[string]string `json:"expectedMints,omitempty"`
}

// PoolQuoteRequest prices a trade against a live pool. Exactly one of AToB
// and InputMint selects the direction.
type PoolQuoteRequest struct {
	AmountIn    string `json:"amountIn"`
	AToB        *bool  `json:"aToB,omitempty"`
	InputMint   string `json:"inputMint,omitempty"`
	SlippageBps *int64 `json:"slippageBps,omitempty"`
}

type PoolResponse struct {
	Address   string `json:"address"`
	Authority string `json:"authority"`
	MintA     string `json:"mintA"`
	MintB     string `json:"mintB"`
	VaultA    string `json:"vaultA"`
	VaultB    string `json:"vaultB"`
	FeeBps    uint16 `json:"feeBps"`
	ReserveA  string `json:"reserveA"`
	ReserveB  string `json:"reserveB"`
	Slot      uint64 `json:"slot"`
	FetchedAt string `json:"fetchedAt"`
	Cached    bool   `json:"cached"`
}

type PoolQuoteResponse struct {
	Pool         string  `json:"pool"`
	AToB         bool    `json:"aToB"`
	InputMint    string  `json:"inputMint"`
	OutputMint   string  `json:"outputMint"`
	AmountIn     string  `json:"amountIn"`
	AmountOut    string  `json:"amountOut"`
	MinAmountOut string  `json:"minAmountOut"`
	FeeBps       int64   `json:"feeBps"`
	ReserveIn    string  `json:"reserveIn"`
	ReserveOut   string  `json:"reserveOut"`
	PriceImpact  float64 `json:"priceImpact"`
	Slot         uint64  `json:"slot"`
}
