package pool

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
	"ammQuote/internal/pricing"
)

// Fixture is the on-disk layout of a pool file.
type Fixture struct {
	Tokens []model.TokenMeta    `yaml:"tokens"`
	Pools  []model.PoolSnapshot `yaml:"pools"`
}

type memPool struct {
	order     model.TokenOrder
	reserves  model.PoolReserves
	feeBps    uint32
	supply    *big.Int
	price0Cum *big.Int
	price1Cum *big.Int
	balances  map[string]*big.Int
}

// MemoryProvider serves pool state from memory. It implements Source.
type MemoryProvider struct {
	// Now, when set, accrues cumulative prices from the last reserve update
	// up to the current time on every GetCumulativePrices call.
	Now func() time.Time

	mu     sync.RWMutex
	pools  map[string]*memPool
	byPair map[string]string
	tokens map[string]model.TokenMeta
}

func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		pools:  make(map[string]*memPool),
		byPair: make(map[string]string),
		tokens: make(map[string]model.TokenMeta),
	}
}

// LoadFixture reads a YAML pool file into a new MemoryProvider.
func LoadFixture(path string) (*MemoryProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pool file: %w", err)
	}
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("parse pool file: %w", err)
	}

	p := NewMemoryProvider()
	for _, token := range fixture.Tokens {
		p.AddToken(token)
	}
	for _, snapshot := range fixture.Pools {
		if err := p.AddPool(snapshot); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// AddToken registers token metadata, addressable by address or symbol.
func (p *MemoryProvider) AddToken(meta model.TokenMeta) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if meta.Address != "" {
		p.tokens[tokenKey(meta.Address)] = meta
	}
	if meta.Symbol != "" {
		p.tokens[tokenKey(meta.Symbol)] = meta
	}
}

// Token looks up metadata by address or symbol.
func (p *MemoryProvider) Token(ref string) (model.TokenMeta, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	meta, ok := p.tokens[tokenKey(ref)]
	return meta, ok
}

// AddPool registers or replaces a pool.
func (p *MemoryProvider) AddPool(snapshot model.PoolSnapshot) error {
	if snapshot.ID == "" {
		return ammerr.Validation("add pool", "pool id is required")
	}
	if snapshot.Token0 == "" || snapshot.Token1 == "" || SameToken(snapshot.Token0, snapshot.Token1) {
		return ammerr.Validation("add pool", "pool %s needs two distinct tokens", snapshot.ID)
	}
	if snapshot.FeeBps > pricing.MaxFeeBps {
		return ammerr.Validation("add pool", "pool %s fee %d bps out of range", snapshot.ID, snapshot.FeeBps)
	}

	fields := []struct {
		name  string
		value string
	}{
		{"reserve0", snapshot.Reserve0},
		{"reserve1", snapshot.Reserve1},
		{"lp_total_supply", snapshot.LPTotalSupply},
		{"price0_cumulative", snapshot.Price0Cumulative},
		{"price1_cumulative", snapshot.Price1Cumulative},
	}
	parsed := make([]*big.Int, len(fields))
	for i, f := range fields {
		v, err := parseInt(f.value)
		if err != nil {
			return ammerr.Validation("add pool", "pool %s %s: %v", snapshot.ID, f.name, err)
		}
		parsed[i] = v
	}

	balances := make(map[string]*big.Int, len(snapshot.LPBalances))
	for owner, raw := range snapshot.LPBalances {
		v, err := parseInt(raw)
		if err != nil {
			return ammerr.Validation("add pool", "pool %s balance of %s: %v", snapshot.ID, owner, err)
		}
		balances[tokenKey(owner)] = v
	}

	mp := &memPool{
		order: model.TokenOrder{Token0: snapshot.Token0, Token1: snapshot.Token1},
		reserves: model.PoolReserves{
			Reserve0:           parsed[0],
			Reserve1:           parsed[1],
			BlockTimestampLast: snapshot.BlockTimestamp,
		},
		feeBps:    snapshot.FeeBps,
		supply:    parsed[2],
		price0Cum: parsed[3],
		price1Cum: parsed[4],
		balances:  balances,
	}

	p.mu.Lock()
	p.pools[snapshot.ID] = mp
	p.byPair[pairKey(snapshot.Token0, snapshot.Token1)] = snapshot.ID
	p.mu.Unlock()
	return nil
}

// SetReserves replaces a pool's reserves and last update time.
func (p *MemoryProvider) SetReserves(poolID string, reserve0, reserve1 *big.Int, timestamp uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return unknownPool("set reserves", poolID)
	}
	mp.reserves = model.PoolReserves{
		Reserve0:           new(big.Int).Set(reserve0),
		Reserve1:           new(big.Int).Set(reserve1),
		BlockTimestampLast: timestamp,
	}
	return nil
}

// SetCumulativePrices replaces a pool's price accumulators.
func (p *MemoryProvider) SetCumulativePrices(poolID string, obs model.TWAPObservation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return unknownPool("set cumulative prices", poolID)
	}
	mp.price0Cum = new(big.Int).Set(obs.Price0CumulativeLast)
	mp.price1Cum = new(big.Int).Set(obs.Price1CumulativeLast)
	mp.reserves.BlockTimestampLast = obs.BlockTimestampLast
	return nil
}

// PoolIDs returns the registered pool ids in sorted order.
func (p *MemoryProvider) PoolIDs() []string {
	p.mu.RLock()
	ids := make([]string, 0, len(p.pools))
	for id := range p.pools {
		ids = append(ids, id)
	}
	p.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

func (p *MemoryProvider) Resolve(_ context.Context, tokenA, tokenB string) (string, bool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.byPair[pairKey(tokenA, tokenB)]
	return id, ok, nil
}

func (p *MemoryProvider) GetReserves(_ context.Context, poolID string) (model.PoolReserves, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return model.PoolReserves{}, unknownPool("get reserves", poolID)
	}
	return model.PoolReserves{
		Reserve0:           new(big.Int).Set(mp.reserves.Reserve0),
		Reserve1:           new(big.Int).Set(mp.reserves.Reserve1),
		BlockTimestampLast: mp.reserves.BlockTimestampLast,
	}, nil
}

func (p *MemoryProvider) GetDynamicFee(_ context.Context, poolID string) (uint32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return 0, unknownPool("get dynamic fee", poolID)
	}
	return mp.feeBps, nil
}

func (p *MemoryProvider) GetTokenOrder(_ context.Context, poolID string) (model.TokenOrder, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return model.TokenOrder{}, unknownPool("get token order", poolID)
	}
	return mp.order, nil
}

// GetCumulativePrices returns the stored accumulators. With Now set, the
// current spot price is accrued over the time elapsed since the last update,
// the way an on-chain oracle library reads counterfactual accumulators.
func (p *MemoryProvider) GetCumulativePrices(_ context.Context, poolID string) (model.TWAPObservation, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return model.TWAPObservation{}, unknownPool("get cumulative prices", poolID)
	}

	obs := model.TWAPObservation{
		Price0CumulativeLast: new(big.Int).Set(mp.price0Cum),
		Price1CumulativeLast: new(big.Int).Set(mp.price1Cum),
		BlockTimestampLast:   mp.reserves.BlockTimestampLast,
	}
	if p.Now == nil {
		return obs, nil
	}

	now := uint64(p.Now().Unix())
	if now <= obs.BlockTimestampLast {
		return obs, nil
	}
	r0, r1 := mp.reserves.Reserve0, mp.reserves.Reserve1
	if r0.Sign() > 0 && r1.Sign() > 0 {
		elapsed := new(big.Int).SetUint64(now - obs.BlockTimestampLast)
		obs.Price0CumulativeLast.Add(obs.Price0CumulativeLast, new(big.Int).Mul(pricing.ScaledRatio(r1, r0), elapsed))
		obs.Price1CumulativeLast.Add(obs.Price1CumulativeLast, new(big.Int).Mul(pricing.ScaledRatio(r0, r1), elapsed))
	}
	obs.BlockTimestampLast = now
	return obs, nil
}

func (p *MemoryProvider) GetLPSupply(_ context.Context, poolID string) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return nil, unknownPool("get lp supply", poolID)
	}
	return new(big.Int).Set(mp.supply), nil
}

func (p *MemoryProvider) GetLPBalance(_ context.Context, poolID, owner string) (*big.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	mp, ok := p.pools[poolID]
	if !ok {
		return nil, unknownPool("get lp balance", poolID)
	}
	if bal, ok := mp.balances[tokenKey(owner)]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func unknownPool(op, poolID string) error {
	return fmt.Errorf("%s: unknown pool %q", op, poolID)
}

func parseInt(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer %q", raw)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative value %q", raw)
	}
	return v, nil
}

func tokenKey(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}

func pairKey(tokenA, tokenB string) string {
	a, b := tokenKey(tokenA), tokenKey(tokenB)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}
