package pricing

import (
	"math/big"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
)

// ComputeTWAP derives the average price between two accumulator readings.
// end must strictly follow start.
func ComputeTWAP(start, end model.TWAPObservation) (model.TWAPResult, error) {
	const op = "compute twap"
	if end.BlockTimestampLast <= start.BlockTimestampLast {
		return model.TWAPResult{}, ammerr.Validation(op, "end timestamp %d must follow start timestamp %d",
			end.BlockTimestampLast, start.BlockTimestampLast)
	}
	if start.Price0CumulativeLast == nil || start.Price1CumulativeLast == nil ||
		end.Price0CumulativeLast == nil || end.Price1CumulativeLast == nil {
		return model.TWAPResult{}, ammerr.Validation(op, "missing cumulative price")
	}

	window := end.BlockTimestampLast - start.BlockTimestampLast
	windowInt := new(big.Int).SetUint64(window)

	price0 := new(big.Int).Sub(end.Price0CumulativeLast, start.Price0CumulativeLast)
	price0.Quo(price0, windowInt)
	price1 := new(big.Int).Sub(end.Price1CumulativeLast, start.Price1CumulativeLast)
	price1.Quo(price1, windowInt)

	return model.TWAPResult{
		Price0TWAP: price0,
		Price1TWAP: price1,
		TimeWindow: window,
	}, nil
}

// SpotPrice returns floor(reserve0*PriceScale/reserve1) and
// floor(reserve1*PriceScale/reserve0).
func SpotPrice(reserve0, reserve1 *big.Int) (price0Per1, price1Per0 *big.Int, err error) {
	if !positive(reserve0) || !positive(reserve1) {
		return nil, nil, ammerr.InsufficientLiquidity("spot price", "reserves must be positive")
	}
	return ScaledRatio(reserve0, reserve1), ScaledRatio(reserve1, reserve0), nil
}

// ScaledRatio returns floor(numerator*PriceScale/denominator), or zero when
// the denominator is not positive.
func ScaledRatio(numerator, denominator *big.Int) *big.Int {
	if !positive(denominator) || numerator == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(numerator, PriceScale)
	return out.Quo(out, denominator)
}
