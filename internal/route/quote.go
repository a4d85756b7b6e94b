package route

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

const (
	kindDirect   = "direct"
	kindMultiHop = "multi_hop"
)

// GetQuote quotes a swap through the single pool holding tokenIn and
// tokenOut. For exact-input trades amount is the input; for exact-output
// trades it is the desired output and AmountInMax carries the slippage bound.
func (p *Planner) GetQuote(ctx context.Context, tokenIn, tokenOut string, amount *big.Int, slippageBps uint32, tradeType model.TradeType) (q model.Quote, err error) {
	started := time.Now()
	defer func() { p.cfg.Metrics.ObserveQuote(kindDirect, started, q.PriceImpactBps, err) }()

	if err := pricing.ValidateSlippage(slippageBps); err != nil {
		return model.Quote{}, err
	}
	path := []string{tokenIn, tokenOut}

	switch tradeType {
	case model.TradeExactIn:
		hops, err := p.ComputeHops(ctx, amount, path)
		if err != nil {
			return model.Quote{}, err
		}
		return p.buildQuote(path, tradeType, hops, slippageBps), nil
	case model.TradeExactOut:
		hop, err := p.exactOutHop(ctx, tokenIn, tokenOut, amount)
		if err != nil {
			return model.Quote{}, err
		}
		quote := p.buildQuote(path, tradeType, []model.Hop{hop}, slippageBps)
		quote.AmountOutMin = new(big.Int).Set(hop.AmountOut)
		quote.AmountInMax = pricing.SlippageCeil(hop.AmountIn, slippageBps)
		return quote, nil
	default:
		return model.Quote{}, ammerr.Validation("get quote", "unsupported trade type %q", tradeType)
	}
}

// GetMultiHopQuote quotes an exact-input swap across a path of three or more
// tokens. Exact-output multi-hop quoting is not supported.
func (p *Planner) GetMultiHopQuote(ctx context.Context, path []string, amountIn *big.Int, slippageBps uint32, tradeType model.TradeType) (q model.Quote, err error) {
	const op = "get multi-hop quote"
	started := time.Now()
	defer func() { p.cfg.Metrics.ObserveQuote(kindMultiHop, started, q.PriceImpactBps, err) }()

	if err := validatePath(op, path, 3); err != nil {
		return model.Quote{}, err
	}
	if tradeType != model.TradeExactIn {
		return model.Quote{}, ammerr.Validation(op, "trade type %s is not supported for multi-hop paths", tradeType)
	}
	if err := pricing.ValidateSlippage(slippageBps); err != nil {
		return model.Quote{}, err
	}

	hops, err := p.ComputeHops(ctx, amountIn, path)
	if err != nil {
		return model.Quote{}, err
	}
	return p.buildQuote(path, tradeType, hops, slippageBps), nil
}

// Quote dispatches to GetQuote for two-token paths and GetMultiHopQuote for
// longer ones.
func (p *Planner) Quote(ctx context.Context, path []string, amount *big.Int, slippageBps uint32, tradeType model.TradeType) (model.Quote, error) {
	if len(path) == 2 {
		return p.GetQuote(ctx, path[0], path[1], amount, slippageBps, tradeType)
	}
	return p.GetMultiHopQuote(ctx, path, amount, slippageBps, tradeType)
}

func (p *Planner) exactOutHop(ctx context.Context, tokenIn, tokenOut string, amountOut *big.Int) (model.Hop, error) {
	const op = "get quote"
	if err := validatePath(op, []string{tokenIn, tokenOut}, 2); err != nil {
		return model.Hop{}, err
	}
	if amountOut == nil || amountOut.Sign() <= 0 {
		return model.Hop{}, ammerr.Validation(op, "amount out must be positive")
	}

	state, err := p.loadHop(ctx, tokenIn, tokenOut)
	if err != nil {
		return model.Hop{}, err
	}
	reserveIn, reserveOut, ok := pool.Orient(state.order, state.reserves, tokenIn)
	if !ok {
		return model.Hop{}, fmt.Errorf("%s: pool %s does not hold %s", op, state.poolID, tokenIn)
	}

	amountIn, err := pricing.GetAmountIn(amountOut, reserveIn, reserveOut, state.feeBps)
	if err != nil {
		return model.Hop{}, err
	}
	return model.Hop{
		PoolID:         state.poolID,
		TokenIn:        tokenIn,
		TokenOut:       tokenOut,
		AmountIn:       amountIn,
		AmountOut:      new(big.Int).Set(amountOut),
		ReserveIn:      reserveIn,
		ReserveOut:     reserveOut,
		FeeBps:         state.feeBps,
		FeeAmount:      pricing.FeeAmount(amountIn, state.feeBps),
		PriceImpactBps: pricing.PriceImpactBps(amountIn, amountOut, reserveIn, reserveOut),
	}, nil
}

// buildQuote aggregates hops: fees add up, price impact compounds.
func (p *Planner) buildQuote(path []string, tradeType model.TradeType, hops []model.Hop, slippageBps uint32) model.Quote {
	first, last := hops[0], hops[len(hops)-1]

	var feeBps uint32
	feeAmount := new(big.Int)
	impacts := make([]uint32, 0, len(hops))
	for _, hop := range hops {
		feeBps += hop.FeeBps
		feeAmount.Add(feeAmount, hop.FeeAmount)
		impacts = append(impacts, hop.PriceImpactBps)
	}

	quote := model.Quote{
		TokenIn:        path[0],
		TokenOut:       path[len(path)-1],
		TradeType:      tradeType,
		AmountIn:       new(big.Int).Set(first.AmountIn),
		AmountOut:      new(big.Int).Set(last.AmountOut),
		AmountOutMin:   pricing.SlippageFloor(last.AmountOut, slippageBps),
		FeeBps:         feeBps,
		FeeAmount:      feeAmount,
		PriceImpactBps: pricing.CompoundPriceImpact(impacts),
		Path:           append([]string(nil), path...),
		Deadline:       p.deadline(),
		Hops:           hops,
	}
	p.logger.Debug("quote built",
		zap.Strings("path", quote.Path),
		zap.String("trade_type", string(tradeType)),
		zap.String("amount_in", quote.AmountIn.String()),
		zap.String("amount_out", quote.AmountOut.String()),
		zap.Uint32("impact_bps", quote.PriceImpactBps),
	)
	return quote
}
