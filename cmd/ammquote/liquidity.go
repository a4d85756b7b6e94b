package main

import (
	"context"
	"math/big"

	"github.com/spf13/cobra"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/amount"
	"ammQuote/internal/liquidity"
	"ammQuote/internal/model"
)

type liquidityView struct {
	model.LiquidityQuote
	Display map[string]string `json:"display"`
}

type removeView struct {
	model.RemoveLiquidityQuote
	Display map[string]string `json:"display"`
}

type positionView struct {
	model.Position
	Display map[string]string `json:"display"`
}

func newLiquidityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "liquidity <token-a> <token-b> <amount-a>",
		Short: "Quote the token B amount and LP tokens for a deposit",
		Args:  cobra.ExactArgs(3),
		RunE:  runLiquidity,
	}
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <token-a> <token-b> <lp-amount>",
		Short: "Quote the tokens returned for burning LP tokens (lp-amount in base units)",
		Args:  cobra.ExactArgs(3),
		RunE:  runRemove,
	}
	cmd.Flags().Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	return cmd
}

func newPositionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position <token-a> <token-b> <owner>",
		Short: "Show an owner's share of a pool",
		Args:  cobra.ExactArgs(3),
		RunE:  runPosition,
	}
}

func runLiquidity(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	tokens, err := sess.backend.tokens(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	value, err := amount.Parse(args[2], int(tokens[0].Decimals))
	if err != nil {
		return err
	}

	quoter := liquidity.NewQuoter(liquidity.Config{}, sess.backend.source, sess.backend.source, sess.logger)
	lq, err := quoter.GetAddLiquidityQuote(ctx, tokens[0].Address, tokens[1].Address, value)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), liquidityView{
		LiquidityQuote: lq,
		Display: map[string]string{
			"amount_a":      amount.FormatDefault(lq.AmountA, int(tokens[0].Decimals)),
			"amount_b":      amount.FormatDefault(lq.AmountB, int(tokens[1].Decimals)),
			"share_of_pool": sharePercent(lq.ShareOfPool),
		},
	})
}

func runRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	tokens, err := sess.backend.tokens(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	lpAmount, err := amount.Parse(args[2], 0)
	if err != nil {
		return err
	}

	quoter := liquidity.NewQuoter(liquidity.Config{}, sess.backend.source, sess.backend.source, sess.logger)
	rq, err := quoter.GetRemoveLiquidityQuote(ctx, tokens[0].Address, tokens[1].Address, lpAmount, cfg.SlippageBps)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), removeView{
		RemoveLiquidityQuote: rq,
		Display: map[string]string{
			"amount_a":      amount.FormatDefault(rq.AmountA, int(tokens[0].Decimals)),
			"amount_b":      amount.FormatDefault(rq.AmountB, int(tokens[1].Decimals)),
			"amount_a_min":  amount.FormatDefault(rq.AmountAMin, int(tokens[0].Decimals)),
			"amount_b_min":  amount.FormatDefault(rq.AmountBMin, int(tokens[1].Decimals)),
			"share_of_pool": sharePercent(rq.ShareOfPool),
		},
	})
}

func runPosition(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	sess, err := openSession(ctx, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	tokens, err := sess.backend.tokens(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	poolID, err := resolvePool(ctx, sess.backend, tokens[0].Address, tokens[1].Address)
	if err != nil {
		return err
	}

	quoter := liquidity.NewQuoter(liquidity.Config{}, sess.backend.source, sess.backend.source, sess.logger)
	pos, err := quoter.GetPosition(ctx, poolID, args[2])
	if err != nil {
		return err
	}
	meta, err := sess.backend.tokens(ctx, pos.Token0, pos.Token1)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), positionView{
		Position: pos,
		Display: map[string]string{
			"amount0":       amount.FormatDefault(pos.Amount0, int(meta[0].Decimals)),
			"amount1":       amount.FormatDefault(pos.Amount1, int(meta[1].Decimals)),
			"share_of_pool": sharePercent(pos.ShareOfPool),
		},
	})
}

func resolvePool(ctx context.Context, b *backend, tokenA, tokenB string) (string, error) {
	poolID, ok, err := b.source.Resolve(ctx, tokenA, tokenB)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ammerr.PairNotFound("resolve pool", tokenA, tokenB)
	}
	return poolID, nil
}

func sharePercent(share *big.Rat) string {
	if share == nil {
		return "0%"
	}
	return new(big.Rat).Mul(share, big.NewRat(100, 1)).FloatString(4) + "%"
}
