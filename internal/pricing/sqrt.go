package pricing

import (
	"math/big"

	"ammQuote/internal/ammerr"
)

var two = big.NewInt(2)

// Sqrt returns floor(sqrt(value)) using Babylonian iteration.
func Sqrt(value *big.Int) (*big.Int, error) {
	if value == nil || value.Sign() < 0 {
		return nil, ammerr.Validation("sqrt", "negative input")
	}
	if value.Sign() == 0 {
		return new(big.Int), nil
	}

	x := new(big.Int).Set(value)
	y := new(big.Int).Add(x, one)
	y.Quo(y, two)
	for y.Cmp(x) < 0 {
		x.Set(y)
		y.Quo(value, x)
		y.Add(y, x)
		y.Quo(y, two)
	}
	return x, nil
}

// InitialLiquidity returns sqrt(amount0*amount1) - MinimumLiquidity, the LP
// minted by a pool's first deposit. The result may be zero or negative when
// the deposit is too small to cover the burn.
func InitialLiquidity(amount0, amount1 *big.Int) (*big.Int, error) {
	product := new(big.Int).Mul(amount0, amount1)
	root, err := Sqrt(product)
	if err != nil {
		return nil, err
	}
	return root.Sub(root, big.NewInt(MinimumLiquidity)), nil
}
