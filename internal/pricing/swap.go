// Package pricing holds the integer-only constant-product math: swap amounts
// under a basis-point fee, price impact, integer square root, spot prices and
// TWAP derivation. It performs no I/O.
package pricing

import (
	"math/big"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/amount"
)

const (
	// MinimumLiquidity is burned on the first deposit into a pool.
	MinimumLiquidity = 1_000

	// MaxFeeBps is a 100% fee.
	MaxFeeBps = amount.BpsDenominator
)

var (
	bpsDen = big.NewInt(amount.BpsDenominator)
	one    = big.NewInt(1)

	// PriceScale is the fixed-point unity used for price ratios (1e18).
	PriceScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

// GetAmountOut returns the output of swapping amountIn against the given
// reserves:
//
//	out = amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee))
func GetAmountOut(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	const op = "get amount out"
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ammerr.Validation(op, "amount in must be positive")
	}
	if feeBps > MaxFeeBps {
		return nil, ammerr.Validation(op, "fee %d bps out of range", feeBps)
	}
	if !positive(reserveIn) || !positive(reserveOut) {
		return nil, ammerr.InsufficientLiquidity(op, "reserves must be positive")
	}

	feeFactor := big.NewInt(int64(MaxFeeBps - feeBps))
	amountInWithFee, err := amount.SafeMultiply(amountIn, feeFactor)
	if err != nil {
		return nil, err
	}
	numerator, err := amount.SafeMultiply(amountInWithFee, reserveOut)
	if err != nil {
		return nil, err
	}
	denominator, err := amount.SafeMultiply(reserveIn, bpsDen)
	if err != nil {
		return nil, err
	}
	denominator.Add(denominator, amountInWithFee)

	return amount.SafeDivide(numerator, denominator)
}

// GetAmountIn returns the input required to receive amountOut:
//
//	in = reserveIn*amountOut*10000 / ((reserveOut-amountOut)*(10000-fee)) + 1
//
// The +1 compensates for floor division so that re-simulating the swap never
// yields less than amountOut.
func GetAmountIn(amountOut, reserveIn, reserveOut *big.Int, feeBps uint32) (*big.Int, error) {
	const op = "get amount in"
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, ammerr.Validation(op, "amount out must be positive")
	}
	if feeBps > MaxFeeBps {
		return nil, ammerr.Validation(op, "fee %d bps out of range", feeBps)
	}
	if !positive(reserveIn) || !positive(reserveOut) {
		return nil, ammerr.InsufficientLiquidity(op, "reserves must be positive")
	}
	if amountOut.Cmp(reserveOut) >= 0 {
		return nil, ammerr.InsufficientLiquidity(op, "amount out %s exceeds reserve %s", amountOut, reserveOut)
	}

	feeFactor := big.NewInt(int64(MaxFeeBps - feeBps))
	numerator, err := amount.SafeMultiply(reserveIn, amountOut)
	if err != nil {
		return nil, err
	}
	numerator, err = amount.SafeMultiply(numerator, bpsDen)
	if err != nil {
		return nil, err
	}
	remaining := new(big.Int).Sub(reserveOut, amountOut)
	denominator, err := amount.SafeMultiply(remaining, feeFactor)
	if err != nil {
		return nil, err
	}

	in, err := amount.SafeDivide(numerator, denominator)
	if err != nil {
		return nil, err
	}
	return in.Add(in, one), nil
}

// FeeAmount returns floor(amountIn*feeBps/10000).
func FeeAmount(amountIn *big.Int, feeBps uint32) *big.Int {
	return amount.ApplyBps(amountIn, feeBps)
}

// SlippageFloor returns value - floor(value*slippageBps/10000).
func SlippageFloor(value *big.Int, slippageBps uint32) *big.Int {
	return new(big.Int).Sub(value, amount.ApplyBps(value, slippageBps))
}

// SlippageCeil returns value + floor(value*slippageBps/10000).
func SlippageCeil(value *big.Int, slippageBps uint32) *big.Int {
	return new(big.Int).Add(value, amount.ApplyBps(value, slippageBps))
}

// ValidateSlippage rejects tolerances above 100%.
func ValidateSlippage(slippageBps uint32) error {
	if slippageBps > MaxFeeBps {
		return ammerr.Validation("slippage", "slippage %d bps out of range [0, %d]", slippageBps, MaxFeeBps)
	}
	return nil
}

func positive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}
