package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammQuote/internal/amount"
	"ammQuote/internal/config"
	"ammQuote/internal/metrics"
	"ammQuote/internal/model"
	"ammQuote/internal/oracle"
	natspub "ammQuote/internal/pubsub/nats"
	"ammQuote/internal/storage"
)

const priceDecimals = 18

type spotView struct {
	PoolID     string   `json:"pool_id"`
	Token0     string   `json:"token0"`
	Token1     string   `json:"token1"`
	Price0Per1 *big.Int `json:"price0_per_1"`
	Price1Per0 *big.Int `json:"price1_per_0"`
	Display    struct {
		Price0Per1 string `json:"price0_per_1"`
		Price1Per0 string `json:"price1_per_0"`
	} `json:"display"`
}

func newSpotCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "spot <token-a> <token-b>",
		Short: "Show the instantaneous reserve price of a pool",
		Args:  cobra.ExactArgs(2),
		RunE:  runSpot,
	}
}

func newTWAPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "twap <token-a> <token-b>",
		Short: "Sample a pool's price accumulators and report the running TWAP",
		Args:  cobra.ExactArgs(2),
		RunE:  runTWAP,
	}
	cmd.Flags().Duration("interval", 15*time.Second, "sampling interval")
	cmd.Flags().Int("samples", 0, "number of samples, 0 runs until interrupted")
	cmd.Flags().Int("twap-capacity", oracle.DefaultCapacity, "observations kept per pool")
	cmd.Flags().String("out", "", "append samples to this JSONL file")
	cmd.Flags().String("nats-url", "", "publish samples to this NATS server")
	cmd.Flags().String("nats-subject", natspub.DefaultSubject, "NATS subject prefix")
	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	return cmd
}

func runSpot(cmd *cobra.Command, args []string) error {
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
	order, err := sess.backend.source.GetTokenOrder(ctx, poolID)
	if err != nil {
		return err
	}
	meta, err := sess.backend.tokens(ctx, order.Token0, order.Token1)
	if err != nil {
		return err
	}

	o := oracle.NewTWAPOracle(oracle.Config{}, sess.backend.source, sess.logger)
	p01, p10, err := o.GetSpotPrice(ctx, poolID)
	if err != nil {
		return err
	}
	view := spotView{
		PoolID:     poolID,
		Token0:     order.Token0,
		Token1:     order.Token1,
		Price0Per1: p01,
		Price1Per0: p10,
	}
	view.Display.Price0Per1 = formatPrice(p01, meta[1].Decimals, meta[0].Decimals)
	view.Display.Price1Per0 = formatPrice(p10, meta[0].Decimals, meta[1].Decimals)
	return printJSON(cmd.OutOrStdout(), view)
}

// formatPrice renders a 1e18-scaled raw ratio in whole-token units, given the
// decimals of the token the price is quoted per and of the quote token.
func formatPrice(price *big.Int, perDecimals, quoteDecimals uint8) string {
	adjusted := new(big.Int).Mul(price, pow10(perDecimals))
	adjusted.Quo(adjusted, pow10(quoteDecimals))
	return amount.Format(adjusted, priceDecimals, 6)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func runTWAP(cmd *cobra.Command, args []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWatch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg.Config)
	if err != nil {
		return err
	}
	defer sess.Close()
	logger := sess.logger

	tokens, err := sess.backend.tokens(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	poolID, err := resolvePool(ctx, sess.backend, tokens[0].Address, tokens[1].Address)
	if err != nil {
		return err
	}

	var sinks storage.Multi
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.NATSURL != "" {
		publisher, err := natspub.Connect(natspub.Config{URL: cfg.NATSURL, Subject: cfg.NATSSubject}, logger)
		if err != nil {
			return err
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("close nats publisher", zap.Error(err))
			}
		}()
		if !publisher.Ready() {
			logger.Warn("nats publisher not ready", zap.Stringer("status", publisher.Status()))
		}
		sinks = append(sinks, publisher)
	}

	var m *metrics.Metrics
	if cfg.MetricsAddr != "" {
		m = metrics.New()
	}

	o := oracle.NewTWAPOracle(oracle.Config{
		Capacity: cfg.TWAPCapacity,
		Metrics:  m,
		OnEvict: func(poolID string, obs model.TWAPObservation) {
			logger.Debug("observation evicted",
				zap.String("pool", poolID),
				zap.Uint64("block_timestamp", obs.BlockTimestampLast),
			)
		},
	}, sess.backend.source, logger)

	logger.Info("twap watch start",
		zap.String("pool", poolID),
		zap.String("backend", sess.backend.kind),
		zap.Duration("interval", cfg.Interval),
		zap.Int("samples", cfg.Samples),
		zap.Int("capacity", cfg.TWAPCapacity),
		zap.String("out", cfg.Out),
		zap.String("nats_url", cfg.NATSURL),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	g, gctx := errgroup.WithContext(ctx)
	watchCtx, cancel := context.WithCancel(gctx)
	if m != nil {
		g.Go(func() error {
			return m.Serve(watchCtx, cfg.MetricsAddr, logger)
		})
	}
	g.Go(func() error {
		defer cancel()
		return watch(watchCtx, cmd, o, poolID, cfg, sinks, logger)
	})
	return g.Wait()
}

func watch(ctx context.Context, cmd *cobra.Command, o *oracle.TWAPOracle, poolID string, cfg config.WatchConfig, sinks storage.Multi, logger *zap.Logger) error {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for n := 0; cfg.Samples <= 0 || n < cfg.Samples; n++ {
		if n > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}

		res, err := o.GetTWAP(ctx, poolID)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		cached := o.Observations(poolID)
		if len(cached) == 0 {
			continue
		}
		newest := cached[len(cached)-1]
		sample := model.TWAPSample{
			PoolID:      poolID,
			Observation: newest,
			Result:      res,
			Cached:      len(cached),
			SampledAt:   time.Now().UTC().Format(time.RFC3339),
		}

		fields := []zap.Field{
			zap.String("pool", poolID),
			zap.String("sample", humanize.Ordinal(n+1)),
			zap.String("observed", humanize.Time(time.Unix(int64(newest.BlockTimestampLast), 0))),
			zap.Int("cached", len(cached)),
		}
		if res != nil {
			fields = append(fields,
				zap.String("window", (time.Duration(res.TimeWindow)*time.Second).String()),
				zap.String("price0_twap", res.Price0TWAP.String()),
				zap.String("price1_twap", res.Price1TWAP.String()),
			)
		}
		logger.Info("twap sample", fields...)

		if len(sinks) > 0 {
			if err := sinks.PutSampleBatch([]model.TWAPSample{sample}); err != nil {
				logger.Warn("write twap sample", zap.Error(err))
			}
		}
		if err := printJSON(cmd.OutOrStdout(), sample); err != nil {
			return err
		}
	}
	return nil
}
