package amm

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
)

// BpsDenominator is the basis-point denominator used for fees and slippage.
const BpsDenominator = 10000

// ErrInvalidParameter is returned for negative amounts, out-of-range basis
// points and malformed decimal strings.
var ErrInvalidParameter = errors.New("invalid parameter")

var bpsDen = big.NewInt(BpsDenominator)

// Quote computes the constant-product output for amountIn with the fee taken
// from the input side:
//
//	afterFee  = floor(amountIn * (10000 - feeBps) / 10000)
//	amountOut = floor(afterFee * reserveOut / (reserveIn + afterFee))
//
// An empty pool or a zero trade quotes to zero without an error.
func Quote(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) (*big.Int, error) {
	if err := checkNonNegative("amountIn", amountIn); err != nil {
		return nil, err
	}
	if err := checkNonNegative("reserveIn", reserveIn); err != nil {
		return nil, err
	}
	if err := checkNonNegative("reserveOut", reserveOut); err != nil {
		return nil, err
	}
	if err := checkBps("feeBps", feeBps); err != nil {
		return nil, err
	}

	if amountIn.Sign() == 0 || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return new(big.Int), nil
	}

	afterFee := new(big.Int).Mul(amountIn, big.NewInt(BpsDenominator-feeBps))
	afterFee.Quo(afterFee, bpsDen)

	numerator := new(big.Int).Mul(afterFee, reserveOut)
	denominator := new(big.Int).Add(reserveIn, afterFee)

	return numerator.Quo(numerator, denominator), nil
}

// ApplySlippage returns the slippage floor for amountOut:
// floor(amountOut * (10000 - slippageBps) / 10000).
func ApplySlippage(amountOut *big.Int, slippageBps int64) (*big.Int, error) {
	if err := checkNonNegative("amountOut", amountOut); err != nil {
		return nil, err
	}
	if err := checkBps("slippageBps", slippageBps); err != nil {
		return nil, err
	}

	out := new(big.Int).Mul(amountOut, big.NewInt(BpsDenominator-slippageBps))
	return out.Quo(out, bpsDen), nil
}

// PriceImpact reports how far the execution rate falls below the spot rate
// reserveOut/reserveIn, as a fraction (0.01 = 1%). Display only.
func PriceImpact(amountIn, amountOut, reserveIn, reserveOut *big.Int) float64 {
	if amountIn == nil || amountOut == nil || reserveIn == nil || reserveOut == nil {
		return 0
	}
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return 0
	}

	spot := new(big.Rat).SetFrac(reserveOut, reserveIn)
	exec := new(big.Rat).SetFrac(amountOut, amountIn)
	ratio, _ := new(big.Rat).Quo(exec, spot).Float64()

	return math.Max(0, 1-ratio)
}

// ParseAmount parses a base-10 non-negative integer of arbitrary size.
func ParseAmount(field, s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: %s is required", ErrInvalidParameter, field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be a decimal integer, got %q", ErrInvalidParameter, field, s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s must be non-negative, got %s", ErrInvalidParameter, field, s)
	}
	return v, nil
}

func checkNonNegative(field string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%w: %s is required", ErrInvalidParameter, field)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: %s must be non-negative, got %s", ErrInvalidParameter, field, v)
	}
	return nil
}

func checkBps(field string, bps int64) error {
	if bps < 0 || bps > BpsDenominator {
		return fmt.Errorf("%w: %s must be within [0, %d], got %d", ErrInvalidParameter, field, BpsDenominator, bps)
	}
	return nil
}
