package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ammQuote/internal/chain"
	"ammQuote/internal/config"
	"ammQuote/internal/dex"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/storage/postgres"
)

// backend is the pool state source selected by configuration.
type backend struct {
	kind   string
	source pool.Source
	meta   func(ctx context.Context, ref string) (model.TokenMeta, error)
	close  func()
}

// openBackend picks pools-file, then pg-dsn, then rpc with factory.
func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backend, error) {
	switch {
	case cfg.PoolsFile != "":
		provider, err := pool.LoadFixture(cfg.PoolsFile)
		if err != nil {
			return nil, err
		}
		provider.Now = time.Now
		logger.Debug("pool fixture loaded",
			zap.String("file", cfg.PoolsFile),
			zap.Strings("pools", provider.PoolIDs()),
		)
		return &backend{
			kind:   "memory",
			source: provider,
			meta: func(_ context.Context, ref string) (model.TokenMeta, error) {
				if meta, ok := provider.Token(ref); ok {
					return meta, nil
				}
				return model.TokenMeta{Address: ref}, nil
			},
			close: func() {},
		}, nil

	case cfg.PGDSN != "":
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return &backend{
			kind:   "postgres",
			source: store,
			meta: func(_ context.Context, ref string) (model.TokenMeta, error) {
				return model.TokenMeta{Address: ref}, nil
			},
			close: store.Close,
		}, nil

	case cfg.RPCURL != "":
		if cfg.Factory == "" {
			return nil, fmt.Errorf("factory address is required with rpc")
		}
		factory, err := dex.ParseAddress(cfg.Factory)
		if err != nil {
			return nil, err
		}
		feeSource, err := dex.ParseFeeSource(cfg.FeeSource)
		if err != nil {
			return nil, err
		}
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL, chain.Config{
			MaxRetries:   cfg.MaxRetries,
			RetryBackoff: cfg.RetryBackoff,
		})
		if err != nil {
			return nil, fmt.Errorf("connect rpc: %w", err)
		}
		chainID, err := chainClient.GetChainID(ctx)
		if err != nil {
			chainClient.Close()
			return nil, fmt.Errorf("read chain id: %w", err)
		}
		logger.Info("rpc connected",
			zap.String("chain_id", chainID.String()),
			zap.String("factory", factory.Hex()),
		)
		provider := dex.NewProvider(dex.Config{
			Factory:      factory,
			FeeSource:    feeSource,
			StaticFeeBps: cfg.StaticFeeBps,
		}, chainClient, logger)
		return &backend{
			kind:   "rpc",
			source: provider,
			meta: func(ctx context.Context, ref string) (model.TokenMeta, error) {
				if !common.IsHexAddress(strings.TrimSpace(ref)) {
					return model.TokenMeta{}, fmt.Errorf("token %q is not an address", ref)
				}
				return provider.TokenMeta(ctx, ref)
			},
			close: chainClient.Close,
		}, nil

	default:
		return nil, fmt.Errorf("one of pools-file, pg-dsn or rpc is required")
	}
}

// tokens resolves each reference to its metadata. Unknown symbols fall back
// to the raw reference with zero decimals.
func (b *backend) tokens(ctx context.Context, refs ...string) ([]model.TokenMeta, error) {
	out := make([]model.TokenMeta, 0, len(refs))
	for _, ref := range refs {
		meta, err := b.meta(ctx, ref)
		if err != nil {
			return nil, err
		}
		if meta.Address == "" {
			meta.Address = ref
		}
		out = append(out, meta)
	}
	return out, nil
}

func addresses(metas []model.TokenMeta) []string {
	out := make([]string, len(metas))
	for i, meta := range metas {
		out[i] = meta.Address
	}
	return out
}

type session struct {
	cfg     config.Config
	logger  *zap.Logger
	backend *backend
}

func openSession(ctx context.Context, cfg config.Config) (*session, error) {
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	b, err := openBackend(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	logger.Debug("backend ready", zap.String("kind", b.kind))
	return &session{cfg: cfg, logger: logger, backend: b}, nil
}

func (s *session) Close() {
	s.backend.close()
	_ = s.logger.Sync()
}

func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	return config.Load(cfgFile, cmd.Flags())
}

func printJSON(w io.Writer, value interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}
