package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/chain"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

var _ pool.Source = (*Provider)(nil)

// FeeSource selects where a pair's fee comes from.
type FeeSource string

const (
	// FeeFromContract reads getFeeState() and clamps the baseline to [min, max].
	FeeFromContract FeeSource = "contract"
	// FeeStatic uses Config.StaticFeeBps for every pair.
	FeeStatic FeeSource = "static"
)

// ParseFeeSource accepts "contract" and "static"; empty means contract.
func ParseFeeSource(input string) (FeeSource, error) {
	switch FeeSource(input) {
	case "", FeeFromContract:
		return FeeFromContract, nil
	case FeeStatic:
		return FeeStatic, nil
	default:
		return "", ammerr.Validation("parse fee source", "unsupported fee source %q", input)
	}
}

// accumulatorScale is the UQ112x112 unit used by pair price accumulators.
var accumulatorScale = new(big.Int).Lsh(big.NewInt(1), 112)

// Config holds on-chain provider settings.
type Config struct {
	Factory      common.Address
	FeeSource    FeeSource
	StaticFeeBps uint32
	// Now overrides the latest block timestamp when accruing cumulative prices.
	Now func() time.Time
}

// Provider reads pool state from pair contracts. Pool ids are pair
// addresses and tokens are token addresses.
type Provider struct {
	cfg    Config
	chain  *chain.Client
	logger *zap.Logger

	orders *addressCache[model.TokenOrder]
	tokens *addressCache[model.TokenMeta]

	mu    sync.RWMutex
	pairs map[[2]common.Address]common.Address
}

func NewProvider(cfg Config, chainClient *chain.Client, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FeeSource == "" {
		cfg.FeeSource = FeeFromContract
	}
	return &Provider{
		cfg:    cfg,
		chain:  chainClient,
		logger: logger,
		orders: newAddressCache[model.TokenOrder](),
		tokens: newAddressCache[model.TokenMeta](),
		pairs:  make(map[[2]common.Address]common.Address),
	}
}

// Resolve asks the factory for the pair of tokenA and tokenB. Existing pairs
// are cached; a missing pair is looked up again on the next call.
func (p *Provider) Resolve(ctx context.Context, tokenA, tokenB string) (string, bool, error) {
	a, err := ParseAddress(tokenA)
	if err != nil {
		return "", false, err
	}
	b, err := ParseAddress(tokenB)
	if err != nil {
		return "", false, err
	}
	key := sortedPair(a, b)

	p.mu.RLock()
	pair, ok := p.pairs[key]
	p.mu.RUnlock()
	if ok {
		return pair.Hex(), true, nil
	}

	factoryABI, err := FactoryABI()
	if err != nil {
		return "", false, fmt.Errorf("parse factory abi: %w", err)
	}
	values, err := callMethod(ctx, p.chain, p.cfg.Factory, factoryABI, "getPair", nil, key[0], key[1])
	if err != nil {
		return "", false, err
	}
	pair, err = asAddress(values[0])
	if err != nil {
		return "", false, fmt.Errorf("getPair: %w", err)
	}
	if pair == (common.Address{}) {
		return "", false, nil
	}

	p.mu.Lock()
	p.pairs[key] = pair
	p.mu.Unlock()
	p.logger.Debug("pair resolved",
		zap.String("token_a", a.Hex()),
		zap.String("token_b", b.Hex()),
		zap.String("pair", pair.Hex()),
	)
	return pair.Hex(), true, nil
}

func (p *Provider) GetReserves(ctx context.Context, poolID string) (model.PoolReserves, error) {
	pair, err := ParseAddress(poolID)
	if err != nil {
		return model.PoolReserves{}, err
	}
	return p.reserves(ctx, pair)
}

func (p *Provider) reserves(ctx context.Context, pair common.Address) (model.PoolReserves, error) {
	pairABI, err := PairABI()
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.chain, pair, pairABI, "getReserves", nil)
	if err != nil {
		return model.PoolReserves{}, err
	}
	if len(values) < 3 {
		return model.PoolReserves{}, fmt.Errorf("getReserves returned %d values", len(values))
	}
	reserve0, err := asBigInt(values[0])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := asBigInt(values[1])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve1: %w", err)
	}
	ts, err := asUint32(values[2])
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("block timestamp: %w", err)
	}
	return model.PoolReserves{Reserve0: reserve0, Reserve1: reserve1, BlockTimestampLast: uint64(ts)}, nil
}

// GetDynamicFee returns the pair's effective fee in basis points.
func (p *Provider) GetDynamicFee(ctx context.Context, poolID string) (uint32, error) {
	if p.cfg.FeeSource == FeeStatic {
		return p.cfg.StaticFeeBps, nil
	}
	pair, err := ParseAddress(poolID)
	if err != nil {
		return 0, err
	}
	pairABI, err := PairABI()
	if err != nil {
		return 0, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.chain, pair, pairABI, "getFeeState", nil)
	if err != nil {
		return 0, err
	}
	if len(values) < 3 {
		return 0, fmt.Errorf("getFeeState returned %d values", len(values))
	}

	var state [3]uint32
	for i := range state {
		if state[i], err = asUint32(values[i]); err != nil {
			return 0, fmt.Errorf("fee state: %w", err)
		}
	}
	return EffectiveFee(state[0], state[1], state[2])
}

// EffectiveFee clamps baseline into [minBps, maxBps].
func EffectiveFee(baseline, minBps, maxBps uint32) (uint32, error) {
	if minBps > maxBps || maxBps > pricing.MaxFeeBps {
		return 0, ammerr.Validation("fee state", "invalid fee bounds [%d, %d]", minBps, maxBps)
	}
	switch {
	case baseline < minBps:
		return minBps, nil
	case baseline > maxBps:
		return maxBps, nil
	default:
		return baseline, nil
	}
}

func (p *Provider) GetTokenOrder(ctx context.Context, poolID string) (model.TokenOrder, error) {
	pair, err := ParseAddress(poolID)
	if err != nil {
		return model.TokenOrder{}, err
	}
	if order, ok := p.orders.Get(pair); ok {
		return order, nil
	}

	pairABI, err := PairABI()
	if err != nil {
		return model.TokenOrder{}, fmt.Errorf("parse pair abi: %w", err)
	}
	var token0, token1 common.Address
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, p.chain, pair, pairABI, "token0", nil)
		if err != nil {
			return err
		}
		token0, err = asAddress(values[0])
		return err
	})
	g.Go(func() error {
		values, err := callMethod(gctx, p.chain, pair, pairABI, "token1", nil)
		if err != nil {
			return err
		}
		token1, err = asAddress(values[0])
		return err
	})
	if err := g.Wait(); err != nil {
		return model.TokenOrder{}, err
	}

	order := model.TokenOrder{Token0: token0.Hex(), Token1: token1.Hex()}
	p.orders.Set(pair, order)
	return order, nil
}

// GetCumulativePrices reads both accumulators and, when time has passed
// since the pair's last update, accrues the current reserve ratio up to the
// latest block timestamp.
func (p *Provider) GetCumulativePrices(ctx context.Context, poolID string) (model.TWAPObservation, error) {
	pair, err := ParseAddress(poolID)
	if err != nil {
		return model.TWAPObservation{}, err
	}
	pairABI, err := PairABI()
	if err != nil {
		return model.TWAPObservation{}, fmt.Errorf("parse pair abi: %w", err)
	}

	var (
		price0, price1 *big.Int
		reserves       model.PoolReserves
		now            uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := callMethod(gctx, p.chain, pair, pairABI, "price0CumulativeLast", nil)
		if err != nil {
			return err
		}
		price0, err = asBigInt(values[0])
		return err
	})
	g.Go(func() error {
		values, err := callMethod(gctx, p.chain, pair, pairABI, "price1CumulativeLast", nil)
		if err != nil {
			return err
		}
		price1, err = asBigInt(values[0])
		return err
	})
	g.Go(func() error {
		var err error
		reserves, err = p.reserves(gctx, pair)
		return err
	})
	g.Go(func() error {
		if p.cfg.Now != nil {
			now = uint64(p.cfg.Now().Unix())
			return nil
		}
		var err error
		now, err = p.chain.LatestTimestamp(gctx)
		if err != nil {
			return fmt.Errorf("latest block timestamp: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.TWAPObservation{}, err
	}

	obs := model.TWAPObservation{
		Price0CumulativeLast: price0,
		Price1CumulativeLast: price1,
		BlockTimestampLast:   reserves.BlockTimestampLast,
	}
	if now <= reserves.BlockTimestampLast {
		return obs, nil
	}
	if reserves.Reserve0.Sign() > 0 && reserves.Reserve1.Sign() > 0 {
		elapsed := new(big.Int).SetUint64(now - reserves.BlockTimestampLast)
		obs.Price0CumulativeLast = new(big.Int).Add(price0, accrue(reserves.Reserve1, reserves.Reserve0, elapsed))
		obs.Price1CumulativeLast = new(big.Int).Add(price1, accrue(reserves.Reserve0, reserves.Reserve1, elapsed))
	}
	obs.BlockTimestampLast = now
	return obs, nil
}

// accrue returns floor(numerator * 2^112 / denominator) * elapsed.
func accrue(numerator, denominator, elapsed *big.Int) *big.Int {
	price := new(big.Int).Mul(numerator, accumulatorScale)
	price.Quo(price, denominator)
	return price.Mul(price, elapsed)
}

func (p *Provider) GetLPSupply(ctx context.Context, poolID string) (*big.Int, error) {
	pair, err := ParseAddress(poolID)
	if err != nil {
		return nil, err
	}
	pairABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.chain, pair, pairABI, "totalSupply", nil)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

func (p *Provider) GetLPBalance(ctx context.Context, poolID, owner string) (*big.Int, error) {
	pair, err := ParseAddress(poolID)
	if err != nil {
		return nil, err
	}
	holder, err := ParseAddress(owner)
	if err != nil {
		return nil, err
	}
	pairABI, err := PairABI()
	if err != nil {
		return nil, fmt.Errorf("parse pair abi: %w", err)
	}
	values, err := callMethod(ctx, p.chain, pair, pairABI, "balanceOf", nil, holder)
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// TokenMeta returns cached ERC20 metadata for token.
func (p *Provider) TokenMeta(ctx context.Context, token string) (model.TokenMeta, error) {
	address, err := ParseAddress(token)
	if err != nil {
		return model.TokenMeta{}, err
	}
	if meta, ok := p.tokens.Get(address); ok {
		return meta, nil
	}
	meta, err := FetchTokenMeta(ctx, p.chain, address, p.logger)
	if err != nil {
		return meta, fmt.Errorf("token metadata for %s: %w", address.Hex(), err)
	}
	p.tokens.Set(address, meta)
	return meta, nil
}

func sortedPair(a, b common.Address) [2]common.Address {
	if bytes.Compare(b[:], a[:]) < 0 {
		a, b = b, a
	}
	return [2]common.Address{a, b}
}
