// Package liquidity quotes proportional deposits, withdrawals and LP
// positions.
package liquidity

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/amount"
	"ammQuote/internal/metrics"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

// Config holds quoter settings.
type Config struct {
	Metrics *metrics.Metrics
}

// Quoter computes liquidity quotes from live pool state.
type Quoter struct {
	cfg      Config
	resolver pool.Resolver
	provider pool.ReserveProvider
	logger   *zap.Logger
}

func NewQuoter(cfg Config, resolver pool.Resolver, provider pool.ReserveProvider, logger *zap.Logger) *Quoter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Quoter{
		cfg:      cfg,
		resolver: resolver,
		provider: provider,
		logger:   logger,
	}
}

type poolState struct {
	order    model.TokenOrder
	reserves model.PoolReserves
	supply   *big.Int
	balance  *big.Int
}

// load reads the pool's token order, reserves and LP supply concurrently,
// plus the owner's LP balance when owner is set.
func (q *Quoter) load(ctx context.Context, poolID, owner string) (poolState, error) {
	var state poolState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		order, err := q.provider.GetTokenOrder(gctx, poolID)
		if err != nil {
			return fmt.Errorf("get token order for %s: %w", poolID, err)
		}
		state.order = order
		return nil
	})
	g.Go(func() error {
		reserves, err := q.provider.GetReserves(gctx, poolID)
		if err != nil {
			return fmt.Errorf("get reserves for %s: %w", poolID, err)
		}
		state.reserves = reserves
		return nil
	})
	g.Go(func() error {
		supply, err := q.provider.GetLPSupply(gctx, poolID)
		if err != nil {
			return fmt.Errorf("get lp supply for %s: %w", poolID, err)
		}
		state.supply = supply
		return nil
	})
	if owner != "" {
		g.Go(func() error {
			balance, err := q.provider.GetLPBalance(gctx, poolID, owner)
			if err != nil {
				return fmt.Errorf("get lp balance of %s in %s: %w", owner, poolID, err)
			}
			state.balance = balance
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return poolState{}, err
	}
	if state.reserves.Reserve0 == nil || state.reserves.Reserve1 == nil {
		return poolState{}, ammerr.InsufficientLiquidity("load pool", "pool %s returned no reserves", poolID)
	}
	if state.supply == nil {
		state.supply = new(big.Int)
	}
	return state, nil
}

// GetAddLiquidityQuote quotes depositing amountADesired of tokenA together
// with the proportional amount of tokenB. A missing pool, or one with both
// reserves empty, is quoted as the first deposit at a 1:1 ratio.
func (q *Quoter) GetAddLiquidityQuote(ctx context.Context, tokenA, tokenB string, amountADesired *big.Int) (lq model.LiquidityQuote, err error) {
	const op = "add liquidity quote"
	started := time.Now()
	defer func() { q.cfg.Metrics.ObserveQuote("add_liquidity", started, 0, err) }()

	if err := validatePair(op, tokenA, tokenB); err != nil {
		return model.LiquidityQuote{}, err
	}
	if amountADesired == nil || amountADesired.Sign() <= 0 {
		return model.LiquidityQuote{}, ammerr.Validation(op, "amount must be positive")
	}

	poolID, ok, err := q.resolver.Resolve(ctx, tokenA, tokenB)
	if err != nil {
		return model.LiquidityQuote{}, fmt.Errorf("resolve %s/%s: %w", tokenA, tokenB, err)
	}
	if !ok {
		return firstDeposit("", tokenA, tokenB, amountADesired)
	}

	state, err := q.load(ctx, poolID, "")
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	reserveA, reserveB, ok := pool.Orient(state.order, state.reserves, tokenA)
	if !ok {
		return model.LiquidityQuote{}, fmt.Errorf("%s: pool %s does not hold %s", op, poolID, tokenA)
	}

	switch {
	case reserveA.Sign() == 0 && reserveB.Sign() == 0:
		return firstDeposit(poolID, tokenA, tokenB, amountADesired)
	case reserveA.Sign() <= 0 || reserveB.Sign() <= 0:
		return model.LiquidityQuote{}, ammerr.InsufficientLiquidity(op, "pool %s has one empty reserve", poolID).
			With("pool", poolID)
	}

	amountB, err := proportion(amountADesired, reserveB, reserveA)
	if err != nil {
		return model.LiquidityQuote{}, err
	}

	var lp *big.Int
	if state.supply.Sign() > 0 {
		lp, err = proportion(amountADesired, state.supply, reserveA)
	} else {
		lp, err = pricing.InitialLiquidity(amountADesired, amountB)
	}
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if lp.Sign() <= 0 {
		return model.LiquidityQuote{}, ammerr.InsufficientLiquidity(op, "deposit mints no liquidity").
			With("pool", poolID)
	}

	quote := model.LiquidityQuote{
		PoolID:            poolID,
		TokenA:            tokenA,
		TokenB:            tokenB,
		AmountA:           new(big.Int).Set(amountADesired),
		AmountB:           amountB,
		EstimatedLPTokens: lp,
		ShareOfPool:       new(big.Rat).SetFrac(lp, new(big.Int).Add(state.supply, lp)),
		PriceAPerB:        pricing.ScaledRatio(reserveB, reserveA),
		PriceBPerA:        pricing.ScaledRatio(reserveA, reserveB),
	}
	q.logger.Debug("add liquidity quoted",
		zap.String("pool", poolID),
		zap.String("amount_a", quote.AmountA.String()),
		zap.String("amount_b", quote.AmountB.String()),
		zap.String("lp", quote.EstimatedLPTokens.String()),
	)
	return quote, nil
}

// GetRemoveLiquidityQuote quotes burning lpAmount for the underlying tokens.
// The minimum amounts apply slippageBps to each side.
func (q *Quoter) GetRemoveLiquidityQuote(ctx context.Context, tokenA, tokenB string, lpAmount *big.Int, slippageBps uint32) (rq model.RemoveLiquidityQuote, err error) {
	const op = "remove liquidity quote"
	started := time.Now()
	defer func() { q.cfg.Metrics.ObserveQuote("remove_liquidity", started, 0, err) }()

	if err := validatePair(op, tokenA, tokenB); err != nil {
		return model.RemoveLiquidityQuote{}, err
	}
	if lpAmount == nil || lpAmount.Sign() <= 0 {
		return model.RemoveLiquidityQuote{}, ammerr.Validation(op, "lp amount must be positive")
	}
	if err := pricing.ValidateSlippage(slippageBps); err != nil {
		return model.RemoveLiquidityQuote{}, err
	}

	poolID, ok, err := q.resolver.Resolve(ctx, tokenA, tokenB)
	if err != nil {
		return model.RemoveLiquidityQuote{}, fmt.Errorf("resolve %s/%s: %w", tokenA, tokenB, err)
	}
	if !ok {
		return model.RemoveLiquidityQuote{}, ammerr.PairNotFound(op, tokenA, tokenB)
	}

	state, err := q.load(ctx, poolID, "")
	if err != nil {
		return model.RemoveLiquidityQuote{}, err
	}
	if state.supply.Sign() <= 0 {
		return model.RemoveLiquidityQuote{}, ammerr.InsufficientLiquidity(op, "pool %s has no lp supply", poolID)
	}
	if lpAmount.Cmp(state.supply) > 0 {
		return model.RemoveLiquidityQuote{}, ammerr.InsufficientLiquidity(op, "lp amount %s exceeds supply %s", lpAmount, state.supply)
	}
	reserveA, reserveB, ok := pool.Orient(state.order, state.reserves, tokenA)
	if !ok {
		return model.RemoveLiquidityQuote{}, fmt.Errorf("%s: pool %s does not hold %s", op, poolID, tokenA)
	}

	amountA, err := proportion(lpAmount, reserveA, state.supply)
	if err != nil {
		return model.RemoveLiquidityQuote{}, err
	}
	amountB, err := proportion(lpAmount, reserveB, state.supply)
	if err != nil {
		return model.RemoveLiquidityQuote{}, err
	}
	if amountA.Sign() == 0 || amountB.Sign() == 0 {
		return model.RemoveLiquidityQuote{}, ammerr.InsufficientLiquidity(op, "burn of %s returns nothing", lpAmount).
			With("pool", poolID)
	}

	return model.RemoveLiquidityQuote{
		PoolID:      poolID,
		TokenA:      tokenA,
		TokenB:      tokenB,
		LPAmount:    new(big.Int).Set(lpAmount),
		AmountA:     amountA,
		AmountB:     amountB,
		AmountAMin:  pricing.SlippageFloor(amountA, slippageBps),
		AmountBMin:  pricing.SlippageFloor(amountB, slippageBps),
		ShareOfPool: new(big.Rat).SetFrac(lpAmount, state.supply),
	}, nil
}

// GetPosition reports owner's share of poolID and the underlying amounts it
// would redeem for. Amounts are zero when the pool has no LP supply.
func (q *Quoter) GetPosition(ctx context.Context, poolID, owner string) (model.Position, error) {
	const op = "get position"
	if poolID == "" || owner == "" {
		return model.Position{}, ammerr.Validation(op, "pool id and owner are required")
	}

	state, err := q.load(ctx, poolID, owner)
	if err != nil {
		return model.Position{}, err
	}
	balance := state.balance
	if balance == nil {
		balance = new(big.Int)
	}

	position := model.Position{
		PoolID:        poolID,
		Owner:         owner,
		Token0:        state.order.Token0,
		Token1:        state.order.Token1,
		LPBalance:     balance,
		LPTotalSupply: state.supply,
		ShareOfPool:   new(big.Rat),
		Amount0:       new(big.Int),
		Amount1:       new(big.Int),
	}
	if state.supply.Sign() == 0 {
		return position, nil
	}

	position.ShareOfPool.SetFrac(balance, state.supply)
	if position.Amount0, err = proportion(balance, state.reserves.Reserve0, state.supply); err != nil {
		return model.Position{}, err
	}
	if position.Amount1, err = proportion(balance, state.reserves.Reserve1, state.supply); err != nil {
		return model.Position{}, err
	}
	return position, nil
}

func firstDeposit(poolID, tokenA, tokenB string, amountA *big.Int) (model.LiquidityQuote, error) {
	lp, err := pricing.InitialLiquidity(amountA, amountA)
	if err != nil {
		return model.LiquidityQuote{}, err
	}
	if lp.Sign() <= 0 {
		return model.LiquidityQuote{}, ammerr.InsufficientLiquidity("add liquidity quote",
			"first deposit must exceed the minimum liquidity of %d", pricing.MinimumLiquidity)
	}
	return model.LiquidityQuote{
		PoolID:            poolID,
		TokenA:            tokenA,
		TokenB:            tokenB,
		AmountA:           new(big.Int).Set(amountA),
		AmountB:           new(big.Int).Set(amountA),
		EstimatedLPTokens: lp,
		ShareOfPool:       big.NewRat(1, 1),
		PriceAPerB:        new(big.Int).Set(pricing.PriceScale),
		PriceBPerA:        new(big.Int).Set(pricing.PriceScale),
		FirstDeposit:      true,
	}, nil
}

// proportion returns floor(value*numerator/denominator).
func proportion(value, numerator, denominator *big.Int) (*big.Int, error) {
	product, err := amount.SafeMultiply(value, numerator)
	if err != nil {
		return nil, err
	}
	return amount.SafeDivide(product, denominator)
}

func validatePair(op, tokenA, tokenB string) error {
	if tokenA == "" || tokenB == "" {
		return ammerr.Validation(op, "both tokens are required")
	}
	if pool.SameToken(tokenA, tokenB) {
		return ammerr.Validation(op, "tokens must differ")
	}
	return nil
}
