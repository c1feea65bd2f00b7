package dexai

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
)

// SwapRequest is the wire form of a build-swap-instruction call. All ten
// fields are required.
type SwapRequest struct {
	ProgramID       string `json:"programId"`
	Pool            string `json:"pool"`
	User            string `json:"user"`
	UserSource      string `json:"userSource"`
	UserDestination string `json:"userDestination"`
	VaultA          string `json:"vaultA"`
	VaultB          string `json:"vaultB"`
	TokenProgram    string `json:"tokenProgram"`
	AmountIn        string `json:"amountIn"`
	MinAmountOut    string `json:"minAmountOut"`
}

// SwapParams is a fully validated SwapRequest.
type SwapParams struct {
	ProgramID solana.PublicKey
	Accounts  map[string]solana.PublicKey // keyed by field name
	Args      SwapArgs
}

// Account returns the parsed account for a field name.
func (p *SwapParams) Account(field string) solana.PublicKey {
	return p.Accounts[field]
}

func (r SwapRequest) identity(field string) string {
	switch field {
	case FieldProgramID:
		return r.ProgramID
	case FieldPool:
		return r.Pool
	case FieldUser:
		return r.User
	case FieldUserSource:
		return r.UserSource
	case FieldUserDestination:
		return r.UserDestination
	case FieldVaultA:
		return r.VaultA
	case FieldVaultB:
		return r.VaultB
	case FieldTokenProgram:
		return r.TokenProgram
	}
	return ""
}

// ParseSwapRequest runs the local part of the validation pipeline: account
// identities in IdentityFields order, then amountIn, then minAmountOut. The
// first failure is returned.
func ParseSwapRequest(req SwapRequest) (*SwapParams, error) {
	params := &SwapParams{Accounts: make(map[string]solana.PublicKey, len(IdentityFields))}

	for _, field := range IdentityFields {
		pk, err := ParseIdentity(field, req.identity(field))
		if err != nil {
			return nil, err
		}
		if field == FieldProgramID {
			params.ProgramID = pk
			continue
		}
		params.Accounts[field] = pk
	}

	amountIn, err := parseU64(FieldAmountIn, req.AmountIn)
	if err != nil {
		return nil, err
	}
	if amountIn == 0 {
		return nil, invalidAmount(FieldAmountIn, req.AmountIn, "must be greater than zero")
	}

	minAmountOut, err := parseU64(FieldMinAmountOut, req.MinAmountOut)
	if err != nil {
		return nil, err
	}

	params.Args = SwapArgs{AmountIn: amountIn, MinAmountOut: minAmountOut}
	return params, nil
}

// ParseIdentity decodes a base58 account identity, reporting an empty value
// as MissingParameter and a bad encoding or length as InvalidAccountIdentity.
func ParseIdentity(field, value string) (solana.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return solana.PublicKey{}, missing(field)
	}

	raw, err := base58.Decode(value)
	if err != nil {
		return solana.PublicKey{}, invalidIdentity(field, value, err)
	}
	if len(raw) != solana.PublicKeyLength {
		return solana.PublicKey{}, invalidIdentity(field, value,
			fmt.Errorf("decoded to %d bytes, want %d", len(raw), solana.PublicKeyLength))
	}

	return solana.PublicKeyFromBytes(raw), nil
}

var maxU64 = new(big.Int).SetUint64(^uint64(0))

func parseU64(field, value string) (uint64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, missing(field)
	}

	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return 0, invalidAmount(field, value, "not a base-10 integer")
	}
	if v.Sign() < 0 {
		return 0, invalidAmount(field, value, "must be non-negative")
	}
	if v.Cmp(maxU64) > 0 {
		return 0, invalidAmount(field, value, "exceeds u64")
	}
	return v.Uint64(), nil
}

// ParseExpectedMints validates the optional per-account mint expectations.
// Keys must be one of TokenAccountFields.
func ParseExpectedMints(in map[string]string) (map[string]solana.PublicKey, error) {
	if len(in) == 0 {
		return nil, nil
	}

	out := make(map[string]solana.PublicKey, len(in))
	for _, field := range TokenAccountFields {
		raw, ok := in[field]
		if !ok {
			continue
		}
		pk, err := ParseIdentity("expectedMints."+field, raw)
		if err != nil {
			return nil, err
		}
		out[field] = pk
	}

	for key := range in {
		if _, ok := out[key]; !ok {
			return nil, invalidIdentity("expectedMints."+key, in[key],
				fmt.Errorf("expected mints may only be set for %s", strings.Join(TokenAccountFields, ", ")))
		}
	}
	return out, nil
}
