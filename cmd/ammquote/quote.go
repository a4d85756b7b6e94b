package main

import (
	"math/big"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammQuote/internal/amount"
	"ammQuote/internal/model"
	"ammQuote/internal/route"
)

type quoteDisplay struct {
	AmountIn     string `json:"amount_in"`
	AmountOut    string `json:"amount_out"`
	AmountOutMin string `json:"amount_out_min"`
	AmountInMax  string `json:"amount_in_max,omitempty"`
	FeeAmount    string `json:"fee_amount"`
	PriceImpact  string `json:"price_impact"`
	Deadline     string `json:"deadline"`
}

type quoteView struct {
	model.Quote
	Display quoteDisplay `json:"display"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote <token-in> <token-out> <amount>",
		Short: "Quote a swap over the direct pair or an explicit path",
		Args:  cobra.ExactArgs(3),
		RunE:  runQuote,
	}
	cmd.Flags().StringSlice("via", nil, "intermediate tokens, in order (comma-separated)")
	cmd.Flags().String("trade-type", string(model.TradeExactIn), "EXACT_IN or EXACT_OUT (amount is the desired output)")
	addQuoteFlags(cmd)
	return cmd
}

func newBestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "best <token-in> <token-out> <amount>",
		Short: "Pick the best of the direct route and one-hop routes via candidates",
		Args:  cobra.ExactArgs(3),
		RunE:  runBest,
	}
	cmd.Flags().StringSlice("via", nil, "candidate intermediate tokens (comma-separated)")
	addQuoteFlags(cmd)
	return cmd
}

func addQuoteFlags(cmd *cobra.Command) {
	cmd.Flags().Uint32("slippage-bps", 50, "slippage tolerance in basis points")
	cmd.Flags().Duration("deadline", route.DefaultDeadline, "quote deadline offset")
}

func runQuote(cmd *cobra.Command, args []string) error {
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

	rawType, _ := cmd.Flags().GetString("trade-type")
	tradeType, err := model.ParseTradeType(rawType)
	if err != nil {
		return err
	}

	refs := append([]string{args[0]}, cfg.Intermediates...)
	refs = append(refs, args[1])
	tokens, err := sess.backend.tokens(ctx, refs...)
	if err != nil {
		return err
	}
	in, out := tokens[0], tokens[len(tokens)-1]

	decimals := in.Decimals
	if tradeType == model.TradeExactOut {
		decimals = out.Decimals
	}
	value, err := amount.Parse(args[2], int(decimals))
	if err != nil {
		return err
	}

	planner := route.NewPlanner(route.Config{Deadline: cfg.Deadline}, sess.backend.source, sess.backend.source, sess.logger)
	quote, err := planner.Quote(ctx, addresses(tokens), value, cfg.SlippageBps, tradeType)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), newQuoteView(quote, in, out))
}

func runBest(cmd *cobra.Command, args []string) error {
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
	via, err := sess.backend.tokens(ctx, cfg.Intermediates...)
	if err != nil {
		return err
	}
	value, err := amount.Parse(args[2], int(tokens[0].Decimals))
	if err != nil {
		return err
	}

	planner := route.NewPlanner(route.Config{Deadline: cfg.Deadline}, sess.backend.source, sess.backend.source, sess.logger)
	quote, err := planner.BestQuote(ctx, tokens[0].Address, tokens[1].Address, value, cfg.SlippageBps, addresses(via))
	if err != nil {
		return err
	}
	sess.logger.Debug("best route", zap.Strings("path", quote.Path))
	return printJSON(cmd.OutOrStdout(), newQuoteView(quote, tokens[0], tokens[1]))
}

func newQuoteView(q model.Quote, in, out model.TokenMeta) quoteView {
	view := quoteView{
		Quote: q,
		Display: quoteDisplay{
			AmountIn:     amount.FormatDefault(q.AmountIn, int(in.Decimals)),
			AmountOut:    amount.FormatDefault(q.AmountOut, int(out.Decimals)),
			AmountOutMin: amount.FormatDefault(q.AmountOutMin, int(out.Decimals)),
			FeeAmount:    amount.FormatDefault(q.FeeAmount, int(in.Decimals)),
			PriceImpact:  bpsPercent(q.PriceImpactBps),
			Deadline:     time.Unix(int64(q.Deadline), 0).UTC().Format(time.RFC3339),
		},
	}
	if q.AmountInMax != nil {
		view.Display.AmountInMax = amount.FormatDefault(q.AmountInMax, int(in.Decimals))
	}
	return view
}

func bpsPercent(bps uint32) string {
	return amount.Format(new(big.Int).SetUint64(uint64(bps)), 2, 2) + "%"
}
