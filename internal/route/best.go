package route

import (
	"context"
	"errors"
	"math/big"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
)

// Candidates lists the direct path followed by one two-hop path per usable
// intermediate token.
func Candidates(tokenIn, tokenOut string, intermediates []string) [][]string {
	paths := [][]string{{tokenIn, tokenOut}}
	seen := make(map[string]struct{}, len(intermediates))
	for _, mid := range intermediates {
		if mid == "" || pool.SameToken(mid, tokenIn) || pool.SameToken(mid, tokenOut) {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(mid))
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		paths = append(paths, []string{tokenIn, mid, tokenOut})
	}
	return paths
}

// BestQuote evaluates the direct path and every path through one of the
// intermediates concurrently and returns the exact-input quote with the
// largest output. Paths without a pool or without liquidity are skipped;
// any other failure aborts the search.
func (p *Planner) BestQuote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int, slippageBps uint32, intermediates []string) (model.Quote, error) {
	if pool.SameToken(tokenIn, tokenOut) {
		return model.Quote{}, ammerr.Validation("best quote", "token in and token out are the same")
	}
	paths := Candidates(tokenIn, tokenOut, intermediates)
	quotes := make([]*model.Quote, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			quote, err := p.Quote(gctx, path, amountIn, slippageBps, model.TradeExactIn)
			if err != nil {
				if skippable(err) {
					p.logger.Debug("route candidate skipped",
						zap.Strings("path", path),
						zap.Error(err),
					)
					return nil
				}
				return err
			}
			quotes[i] = &quote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.Quote{}, err
	}

	var best *model.Quote
	for _, quote := range quotes {
		if quote == nil {
			continue
		}
		// ties keep the earlier, shorter candidate
		if best == nil || quote.AmountOut.Cmp(best.AmountOut) > 0 {
			best = quote
		}
	}
	if best == nil {
		return model.Quote{}, ammerr.PairNotFound("best quote", tokenIn, tokenOut).
			With("candidates", strconv.Itoa(len(paths)))
	}

	p.logger.Info("best route selected",
		zap.Strings("path", best.Path),
		zap.String("amount_out", best.AmountOut.String()),
		zap.Int("candidates", len(paths)),
	)
	return *best, nil
}

func skippable(err error) bool {
	return errors.Is(err, ammerr.ErrPairNotFound) || errors.Is(err, ammerr.ErrInsufficientLiquidity)
}
