package pricing

import "math/big"

// PriceImpactBps compares amountOut to the fee-free spot output
// floor(amountIn*reserveOut/reserveIn). Degenerate inputs report 10000.
func PriceImpactBps(amountIn, amountOut, reserveIn, reserveOut *big.Int) uint32 {
	if !positive(reserveIn) || !positive(reserveOut) || amountIn == nil || amountOut == nil {
		return MaxFeeBps
	}
	idealOut := new(big.Int).Mul(amountIn, reserveOut)
	idealOut.Quo(idealOut, reserveIn)
	if idealOut.Sign() <= 0 {
		return MaxFeeBps
	}

	diff := new(big.Int).Sub(idealOut, amountOut)
	if diff.Sign() <= 0 {
		return 0
	}
	impact := diff.Mul(diff, bpsDen)
	impact.Quo(impact, idealOut)
	if impact.Cmp(bpsDen) > 0 {
		return MaxFeeBps
	}
	return uint32(impact.Uint64())
}

// CompoundPriceImpact combines sequential hop impacts multiplicatively:
// 1 - Π(1 - impact_i/10000), in basis points, rounded half up.
func CompoundPriceImpact(impactsBps []uint32) uint32 {
	if len(impactsBps) == 0 {
		return 0
	}

	remaining := big.NewInt(1)
	denominator := big.NewInt(1)
	for _, impact := range impactsBps {
		if impact > MaxFeeBps {
			impact = MaxFeeBps
		}
		remaining.Mul(remaining, big.NewInt(int64(MaxFeeBps-impact)))
		denominator.Mul(denominator, bpsDen)
	}

	// bps = (denominator - remaining) * 10000 / denominator, rounded half up
	lost := new(big.Int).Sub(denominator, remaining)
	lost.Mul(lost, bpsDen)
	lost.Mul(lost, big.NewInt(2))
	lost.Add(lost, denominator)
	lost.Quo(lost, new(big.Int).Mul(denominator, big.NewInt(2)))
	return uint32(lost.Uint64())
}
