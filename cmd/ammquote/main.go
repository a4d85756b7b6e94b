package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ammquote",
		Short:        "Constant-product AMM quotes, liquidity and TWAP",
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "config file path")
	flags.String("rpc", "", "RPC URL")
	flags.String("factory", "", "pair factory address")
	flags.String("pools-file", "", "YAML pool fixture (takes precedence over pg-dsn and rpc)")
	flags.String("pg-dsn", "", "Postgres DSN of an indexer database")
	flags.String("fee-source", "contract", "fee source (contract, static)")
	flags.Uint32("static-fee-bps", 30, "fee used when fee-source is static")
	flags.Int("max-retries", 5, "maximum retry attempts")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(
		newQuoteCmd(),
		newBestCmd(),
		newLiquidityCmd(),
		newRemoveCmd(),
		newPositionCmd(),
		newSpotCmd(),
		newTWAPCmd(),
	)
	return root
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
