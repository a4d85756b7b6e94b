// Package route chains swap math across token paths.
package route

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/metrics"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

// DefaultDeadline is added to the current time to form a quote deadline.
const DefaultDeadline = 20 * time.Minute

// Config holds planner settings.
type Config struct {
	Deadline time.Duration
	Now      func() time.Time
	Metrics  *metrics.Metrics
}

// Planner builds swap quotes from live pool state.
type Planner struct {
	cfg      Config
	resolver pool.Resolver
	provider pool.ReserveProvider
	logger   *zap.Logger
}

// NewPlanner builds a Planner with its dependencies.
func NewPlanner(cfg Config, resolver pool.Resolver, provider pool.ReserveProvider, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Planner{
		cfg:      cfg,
		resolver: resolver,
		provider: provider,
		logger:   logger,
	}
}

type hopState struct {
	poolID   string
	reserves model.PoolReserves
	feeBps   uint32
	order    model.TokenOrder
}

// ComputeHops simulates amountIn through path, one pool per adjacent pair.
// Each hop consumes the previous hop's output. The first failing hop aborts
// the whole computation.
func (p *Planner) ComputeHops(ctx context.Context, amountIn *big.Int, path []string) ([]model.Hop, error) {
	const op = "compute hops"
	if err := validatePath(op, path, 2); err != nil {
		return nil, err
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ammerr.Validation(op, "amount in must be positive")
	}

	hops := make([]model.Hop, 0, len(path)-1)
	current := new(big.Int).Set(amountIn)
	for i := 0; i < len(path)-1; i++ {
		tokenIn, tokenOut := path[i], path[i+1]
		state, err := p.loadHop(ctx, tokenIn, tokenOut)
		if err != nil {
			return nil, err
		}

		reserveIn, reserveOut, ok := pool.Orient(state.order, state.reserves, tokenIn)
		if !ok {
			return nil, fmt.Errorf("%s: pool %s does not hold %s", op, state.poolID, tokenIn)
		}
		if reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
			return nil, ammerr.InsufficientLiquidity(op, "pool %s has an empty reserve", state.poolID).
				With("pool", state.poolID)
		}

		amountOut, err := pricing.GetAmountOut(current, reserveIn, reserveOut, state.feeBps)
		if err != nil {
			return nil, err
		}
		if amountOut.Sign() == 0 && i < len(path)-2 {
			return nil, ammerr.InsufficientLiquidity(op, "hop %d through %s produces no output", i, state.poolID).
				With("pool", state.poolID)
		}

		hop := model.Hop{
			PoolID:         state.poolID,
			TokenIn:        tokenIn,
			TokenOut:       tokenOut,
			AmountIn:       current,
			AmountOut:      amountOut,
			ReserveIn:      reserveIn,
			ReserveOut:     reserveOut,
			FeeBps:         state.feeBps,
			FeeAmount:      pricing.FeeAmount(current, state.feeBps),
			PriceImpactBps: pricing.PriceImpactBps(current, amountOut, reserveIn, reserveOut),
		}
		p.logger.Debug("hop computed",
			zap.Int("index", i),
			zap.String("pool", state.poolID),
			zap.String("token_in", tokenIn),
			zap.String("token_out", tokenOut),
			zap.String("amount_in", hop.AmountIn.String()),
			zap.String("amount_out", hop.AmountOut.String()),
			zap.Uint32("fee_bps", hop.FeeBps),
			zap.Uint32("impact_bps", hop.PriceImpactBps),
		)

		hops = append(hops, hop)
		current = amountOut
	}
	return hops, nil
}

// loadHop resolves the pool for a pair and reads reserves, fee and token
// order concurrently.
func (p *Planner) loadHop(ctx context.Context, tokenIn, tokenOut string) (hopState, error) {
	poolID, ok, err := p.resolver.Resolve(ctx, tokenIn, tokenOut)
	if err != nil {
		return hopState{}, fmt.Errorf("resolve %s/%s: %w", tokenIn, tokenOut, err)
	}
	if !ok {
		return hopState{}, ammerr.PairNotFound("resolve", tokenIn, tokenOut)
	}

	state := hopState{poolID: poolID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		started := time.Now()
		reserves, err := p.provider.GetReserves(gctx, poolID)
		p.cfg.Metrics.ObserveProviderCall("getReserves", started)
		if err != nil {
			return fmt.Errorf("get reserves for %s: %w", poolID, err)
		}
		state.reserves = reserves
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		fee, err := p.provider.GetDynamicFee(gctx, poolID)
		p.cfg.Metrics.ObserveProviderCall("getDynamicFee", started)
		if err != nil {
			return fmt.Errorf("get fee for %s: %w", poolID, err)
		}
		if fee > pricing.MaxFeeBps {
			return ammerr.Validation("get fee", "pool %s reported fee %d bps", poolID, fee)
		}
		state.feeBps = fee
		return nil
	})
	g.Go(func() error {
		started := time.Now()
		order, err := p.provider.GetTokenOrder(gctx, poolID)
		p.cfg.Metrics.ObserveProviderCall("getTokenOrder", started)
		if err != nil {
			return fmt.Errorf("get token order for %s: %w", poolID, err)
		}
		state.order = order
		return nil
	})
	if err := g.Wait(); err != nil {
		return hopState{}, err
	}
	if state.reserves.Reserve0 == nil || state.reserves.Reserve1 == nil {
		return hopState{}, ammerr.InsufficientLiquidity("load hop", "pool %s returned no reserves", poolID)
	}
	return state, nil
}

func (p *Planner) deadline() uint64 {
	return uint64(p.cfg.Now().Add(p.cfg.Deadline).Unix())
}

func validatePath(op string, path []string, minLen int) error {
	if len(path) < minLen {
		return ammerr.Validation(op, "path needs at least %d tokens, got %d", minLen, len(path))
	}
	for i, token := range path {
		if token == "" {
			return ammerr.Validation(op, "path token %d is empty", i)
		}
		if i > 0 && pool.SameToken(path[i-1], token) {
			return ammerr.Validation(op, "path repeats %s at position %d", token, i)
		}
	}
	return nil
}
