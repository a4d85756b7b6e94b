// Package oracle samples cumulative price accumulators into bounded per-pool
// buffers and derives time-weighted average prices from them.
package oracle

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"go.uber.org/zap"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/metrics"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

// DefaultCapacity is the number of observations kept per pool.
const DefaultCapacity = 100

// Config holds oracle settings.
type Config struct {
	Capacity int
	// OnEvict is called with the pool's buffer lock held.
	OnEvict func(poolID string, obs model.TWAPObservation)
	Metrics *metrics.Metrics
}

type buffer struct {
	mu      sync.Mutex
	ring    *Ring
	retired bool
}

// TWAPOracle owns one observation buffer per pool. Buffers are created on
// first observation; access to each is serialized by its own lock.
type TWAPOracle struct {
	cfg      Config
	provider pool.ReserveProvider
	logger   *zap.Logger

	mu      sync.RWMutex
	buffers map[string]*buffer
}

func NewTWAPOracle(cfg Config, provider pool.ReserveProvider, logger *zap.Logger) *TWAPOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &TWAPOracle{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		buffers:  make(map[string]*buffer),
	}
}

func (o *TWAPOracle) buffer(poolID string) *buffer {
	o.mu.RLock()
	b, ok := o.buffers[poolID]
	o.mu.RUnlock()
	if ok {
		return b
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if b, ok = o.buffers[poolID]; ok {
		return b
	}
	b = &buffer{ring: NewRing(o.cfg.Capacity)}
	o.buffers[poolID] = b
	return b
}

// lockBuffer returns the pool's live buffer with its lock held. A buffer
// retired by ClearCache between lookup and lock is skipped.
func (o *TWAPOracle) lockBuffer(poolID string) *buffer {
	for {
		b := o.buffer(poolID)
		b.mu.Lock()
		if !b.retired {
			return b
		}
		b.mu.Unlock()
	}
}

func (o *TWAPOracle) read(ctx context.Context, poolID string) (model.TWAPObservation, error) {
	if poolID == "" {
		return model.TWAPObservation{}, ammerr.Validation("observe", "pool id is required")
	}
	obs, err := o.provider.GetCumulativePrices(ctx, poolID)
	if err != nil {
		return model.TWAPObservation{}, fmt.Errorf("get cumulative prices for %s: %w", poolID, err)
	}
	if obs.Price0CumulativeLast == nil || obs.Price1CumulativeLast == nil {
		return model.TWAPObservation{}, fmt.Errorf("pool %s returned no cumulative prices", poolID)
	}
	return obs, nil
}

// record appends obs to b. The caller holds b.mu.
func (o *TWAPOracle) record(b *buffer, poolID string, obs model.TWAPObservation) {
	if newest, ok := b.ring.Newest(); ok && obs.BlockTimestampLast <= newest.BlockTimestampLast {
		o.logger.Debug("observation not newer than cache",
			zap.String("pool", poolID),
			zap.Uint64("timestamp", obs.BlockTimestampLast),
			zap.Uint64("newest", newest.BlockTimestampLast),
		)
		o.cfg.Metrics.ObserveSample(poolID, false, b.ring.Len())
		return
	}

	if old, evicted := b.ring.Push(obs); evicted {
		o.cfg.Metrics.ObserveEviction(poolID)
		if o.cfg.OnEvict != nil {
			o.cfg.OnEvict(poolID, old)
		}
	}
	o.cfg.Metrics.ObserveSample(poolID, true, b.ring.Len())
}

// Observe reads the pool's accumulators and appends them to its buffer,
// evicting the oldest entry when full. A reading whose timestamp does not
// move past the newest cached one is returned but not cached.
func (o *TWAPOracle) Observe(ctx context.Context, poolID string) (model.TWAPObservation, error) {
	obs, err := o.read(ctx, poolID)
	if err != nil {
		return model.TWAPObservation{}, err
	}
	b := o.lockBuffer(poolID)
	defer b.mu.Unlock()
	o.record(b, poolID, obs)
	return obs, nil
}

// GetTWAP takes a fresh observation and averages between the oldest and
// newest cached ones. It returns nil without error until two observations
// are cached.
func (o *TWAPOracle) GetTWAP(ctx context.Context, poolID string) (*model.TWAPResult, error) {
	obs, err := o.read(ctx, poolID)
	if err != nil {
		return nil, err
	}

	b := o.lockBuffer(poolID)
	o.record(b, poolID, obs)
	if b.ring.Len() < 2 {
		b.mu.Unlock()
		return nil, nil
	}
	oldest, _ := b.ring.Oldest()
	newest, _ := b.ring.Newest()
	b.mu.Unlock()

	result, err := pricing.ComputeTWAP(oldest, newest)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// GetSpotPrice returns reserve0/reserve1 and reserve1/reserve0 scaled by
// pricing.PriceScale.
func (o *TWAPOracle) GetSpotPrice(ctx context.Context, poolID string) (price0Per1, price1Per0 *big.Int, err error) {
	reserves, err := o.provider.GetReserves(ctx, poolID)
	if err != nil {
		return nil, nil, fmt.Errorf("get reserves for %s: %w", poolID, err)
	}
	return pricing.SpotPrice(reserves.Reserve0, reserves.Reserve1)
}

// ClearCache drops the buffer for one pool. Observations racing with it
// land in a fresh buffer.
func (o *TWAPOracle) ClearCache(poolID string) {
	o.mu.Lock()
	b, ok := o.buffers[poolID]
	delete(o.buffers, poolID)
	o.mu.Unlock()
	if ok {
		b.retire()
	}
	o.cfg.Metrics.ResetPool(poolID)
}

// ClearAll drops every pool's buffer.
func (o *TWAPOracle) ClearAll() {
	o.mu.Lock()
	dropped := o.buffers
	o.buffers = make(map[string]*buffer)
	o.mu.Unlock()

	for id, b := range dropped {
		b.retire()
		o.cfg.Metrics.ResetPool(id)
	}
}

func (b *buffer) retire() {
	b.mu.Lock()
	b.ring.Reset()
	b.retired = true
	b.mu.Unlock()
}

// Observations returns a copy of a pool's cached observations, oldest first.
func (o *TWAPOracle) Observations(poolID string) []model.TWAPObservation {
	o.mu.RLock()
	b, ok := o.buffers[poolID]
	o.mu.RUnlock()
	if !ok {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ring.Snapshot()
}

// Pools lists pools with a buffer, sorted.
func (o *TWAPOracle) Pools() []string {
	o.mu.RLock()
	ids := make([]string, 0, len(o.buffers))
	for id := range o.buffers {
		ids = append(ids, id)
	}
	o.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
