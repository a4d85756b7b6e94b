package dex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/chain"
	"ammQuote/internal/model"
	"ammQuote/internal/route"
)

var (
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000fa")
	pairAddr    = common.HexToAddress("0x00000000000000000000000000000000000000ab")
	tokenA      = common.HexToAddress("0x000000000000000000000000000000000000000a")
	tokenB      = common.HexToAddress("0x000000000000000000000000000000000000000b")
	tokenC      = common.HexToAddress("0x000000000000000000000000000000000000000c")
	holder      = common.HexToAddress("0x00000000000000000000000000000000000000f0")
)

type callArgs struct {
	To    *common.Address `json:"to"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

type fakePair struct {
	token0, token1     common.Address
	reserve0, reserve1 *big.Int
	timestamp          uint32
	price0, price1     *big.Int
	supply             *big.Int
	balances           map[common.Address]*big.Int
	fee                [3]uint32
}

type fakeEth struct {
	mu          sync.Mutex
	blockNumber uint64
	blockTime   uint64
	pairs       map[common.Address]*fakePair
	tokens      map[common.Address]model.TokenMeta
	calls       map[string]int
}

func (f *fakeEth) ChainId(ctx context.Context) (*hexutil.Big, error) {
	return (*hexutil.Big)(big.NewInt(31337)), nil
}

func (f *fakeEth) BlockNumber(ctx context.Context) (hexutil.Uint64, error) {
	return hexutil.Uint64(f.blockNumber), nil
}

func (f *fakeEth) GetBlockByNumber(ctx context.Context, number gethrpc.BlockNumber, full bool) (json.RawMessage, error) {
	n := number.Int64()
	if n < 0 {
		n = int64(f.blockNumber)
	}
	header := &types.Header{
		Number:     big.NewInt(n),
		Time:       f.blockTime,
		Difficulty: big.NewInt(0),
		Extra:      []byte{},
	}
	return json.Marshal(header)
}

func (f *fakeEth) Call(ctx context.Context, args callArgs, _ gethrpc.BlockNumberOrHash) (hexutil.Bytes, error) {
	var data []byte
	switch {
	case args.Input != nil:
		data = *args.Input
	case args.Data != nil:
		data = *args.Data
	}
	if args.To == nil || len(data) < 4 {
		return nil, errors.New("bad call")
	}

	if *args.To == factoryAddr {
		parsed, _ := FactoryABI()
		return f.answer(parsed, data, func(method *abi.Method, in []interface{}) []interface{} {
			a, b := in[0].(common.Address), in[1].(common.Address)
			for addr, pair := range f.pairs {
				if (pair.token0 == a && pair.token1 == b) || (pair.token0 == b && pair.token1 == a) {
					return []interface{}{addr}
				}
			}
			return []interface{}{common.Address{}}
		})
	}

	if pair, ok := f.pairs[*args.To]; ok {
		parsed, _ := PairABI()
		return f.answer(parsed, data, func(method *abi.Method, in []interface{}) []interface{} {
			switch method.Name {
			case "token0":
				return []interface{}{pair.token0}
			case "token1":
				return []interface{}{pair.token1}
			case "getReserves":
				return []interface{}{pair.reserve0, pair.reserve1, pair.timestamp}
			case "price0CumulativeLast":
				return []interface{}{pair.price0}
			case "price1CumulativeLast":
				return []interface{}{pair.price1}
			case "totalSupply":
				return []interface{}{pair.supply}
			case "balanceOf":
				if bal, ok := pair.balances[in[0].(common.Address)]; ok {
					return []interface{}{bal}
				}
				return []interface{}{big.NewInt(0)}
			case "getFeeState":
				return []interface{}{pair.fee[0], pair.fee[1], pair.fee[2]}
			}
			return nil
		})
	}

	if meta, ok := f.tokens[*args.To]; ok {
		parsed, _ := ERC20ABI()
		return f.answer(parsed, data, func(method *abi.Method, in []interface{}) []interface{} {
			switch method.Name {
			case "decimals":
				return []interface{}{meta.Decimals}
			case "symbol":
				return []interface{}{meta.Symbol}
			default:
				return []interface{}{meta.Name}
			}
		})
	}
	return nil, fmt.Errorf("execution reverted")
}

func (f *fakeEth) answer(parsed abi.ABI, data []byte, handle func(*abi.Method, []interface{}) []interface{}) (hexutil.Bytes, error) {
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls[method.Name]++
	f.mu.Unlock()

	in, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}
	out := handle(method, in)
	if out == nil {
		return nil, fmt.Errorf("unhandled method %s", method.Name)
	}
	return method.Outputs.Pack(out...)
}

func (f *fakeEth) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

func newFakeEth() *fakeEth {
	return &fakeEth{
		blockNumber: 16,
		blockTime:   1_700_000_100,
		pairs: map[common.Address]*fakePair{
			pairAddr: {
				token0:    tokenA,
				token1:    tokenB,
				reserve0:  big.NewInt(1_000_000),
				reserve1:  big.NewInt(2_000_000),
				timestamp: 1_700_000_000,
				price0:    big.NewInt(0),
				price1:    big.NewInt(0),
				supply:    big.NewInt(1_414_213),
				balances:  map[common.Address]*big.Int{holder: big.NewInt(141_421)},
				fee:       [3]uint32{5, 10, 100},
			},
		},
		tokens: map[common.Address]model.TokenMeta{
			tokenA: {Decimals: 6, Symbol: "AAA", Name: "Token A"},
		},
		calls: make(map[string]int),
	}
}

func newTestProvider(t *testing.T, fe *fakeEth, cfg Config) *Provider {
	t.Helper()
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", fe); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	client := chain.NewClientFromRPC(gethrpc.DialInProc(srv), chain.Config{MaxRetries: 0})
	t.Cleanup(client.Close)
	cfg.Factory = factoryAddr
	return NewProvider(cfg, client, nil)
}

func TestChainID(t *testing.T) {
	srv := gethrpc.NewServer()
	if err := srv.RegisterName("eth", newFakeEth()); err != nil {
		t.Fatalf("register rpc service: %v", err)
	}
	client := chain.NewClientFromRPC(gethrpc.DialInProc(srv), chain.Config{})
	defer client.Close()

	id, err := client.GetChainID(context.Background())
	if err != nil {
		t.Fatalf("chain id: %v", err)
	}
	if id.Int64() != 31337 {
		t.Fatalf("unexpected chain id: %s", id)
	}
}

func TestResolve(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})
	ctx := context.Background()

	id, ok, err := p.Resolve(ctx, tokenB.Hex(), tokenA.Hex())
	if err != nil || !ok {
		t.Fatalf("resolve: %v %v", ok, err)
	}
	if id != pairAddr.Hex() {
		t.Fatalf("unexpected pair: %s", id)
	}
	if _, _, err := p.Resolve(ctx, tokenA.Hex(), tokenB.Hex()); err != nil {
		t.Fatalf("resolve cached: %v", err)
	}
	if n := fe.count("getPair"); n != 1 {
		t.Fatalf("existing pairs should be cached, got %d factory calls", n)
	}

	_, ok, err = p.Resolve(ctx, tokenA.Hex(), tokenC.Hex())
	if err != nil || ok {
		t.Fatalf("missing pair: %v %v", ok, err)
	}
	if _, _, err := p.Resolve(ctx, "not-an-address", tokenC.Hex()); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("bad address: %v", err)
	}
}

func TestPoolState(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})
	ctx := context.Background()
	id := pairAddr.Hex()

	reserves, err := p.GetReserves(ctx, id)
	if err != nil {
		t.Fatalf("reserves: %v", err)
	}
	if reserves.Reserve0.Int64() != 1_000_000 || reserves.Reserve1.Int64() != 2_000_000 || reserves.BlockTimestampLast != 1_700_000_000 {
		t.Fatalf("unexpected reserves: %+v", reserves)
	}

	for i := 0; i < 2; i++ {
		order, err := p.GetTokenOrder(ctx, id)
		if err != nil {
			t.Fatalf("token order: %v", err)
		}
		if order.Token0 != tokenA.Hex() || order.Token1 != tokenB.Hex() {
			t.Fatalf("unexpected order: %+v", order)
		}
	}
	if n := fe.count("token0"); n != 1 {
		t.Fatalf("token order should be cached, got %d calls", n)
	}

	supply, err := p.GetLPSupply(ctx, id)
	if err != nil || supply.Int64() != 1_414_213 {
		t.Fatalf("supply: %v %v", supply, err)
	}
	bal, err := p.GetLPBalance(ctx, id, holder.Hex())
	if err != nil || bal.Int64() != 141_421 {
		t.Fatalf("balance: %v %v", bal, err)
	}
}

func TestDynamicFee(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})

	fee, err := p.GetDynamicFee(context.Background(), pairAddr.Hex())
	if err != nil {
		t.Fatalf("fee: %v", err)
	}
	if fee != 10 {
		t.Fatalf("baseline below min should clamp to 10, got %d", fee)
	}

	static := newTestProvider(t, fe, Config{FeeSource: FeeStatic, StaticFeeBps: 25})
	fee, err = static.GetDynamicFee(context.Background(), pairAddr.Hex())
	if err != nil || fee != 25 {
		t.Fatalf("static fee: %d %v", fee, err)
	}
}

func TestEffectiveFee(t *testing.T) {
	cases := []struct {
		baseline, min, max, want uint32
	}{
		{30, 10, 100, 30},
		{5, 10, 100, 10},
		{500, 10, 100, 100},
	}
	for _, tc := range cases {
		got, err := EffectiveFee(tc.baseline, tc.min, tc.max)
		if err != nil || got != tc.want {
			t.Fatalf("effective fee %+v: %d %v", tc, got, err)
		}
	}
	if _, err := EffectiveFee(30, 100, 10); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("inverted bounds: %v", err)
	}
	if _, err := EffectiveFee(30, 10, 20_000); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("max above 100%%: %v", err)
	}
}

func TestCumulativePricesAccrueToLatestBlock(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})

	obs, err := p.GetCumulativePrices(context.Background(), pairAddr.Hex())
	if err != nil {
		t.Fatalf("cumulative prices: %v", err)
	}
	if obs.BlockTimestampLast != 1_700_000_100 {
		t.Fatalf("timestamp should advance to the latest block: %d", obs.BlockTimestampLast)
	}
	// 100s at reserve1/reserve0 = 2 and reserve0/reserve1 = 0.5 in UQ112x112
	want0 := new(big.Int).Mul(new(big.Int).Lsh(big.NewInt(2), 112), big.NewInt(100))
	want1 := new(big.Int).Mul(new(big.Int).Lsh(big.NewInt(1), 111), big.NewInt(100))
	if obs.Price0CumulativeLast.Cmp(want0) != 0 || obs.Price1CumulativeLast.Cmp(want1) != 0 {
		t.Fatalf("accumulators: %s %s", obs.Price0CumulativeLast, obs.Price1CumulativeLast)
	}

	fixed := newTestProvider(t, fe, Config{Now: func() time.Time { return time.Unix(1_699_999_000, 0) }})
	obs, err = fixed.GetCumulativePrices(context.Background(), pairAddr.Hex())
	if err != nil {
		t.Fatalf("cumulative prices: %v", err)
	}
	if obs.BlockTimestampLast != 1_700_000_000 || obs.Price0CumulativeLast.Sign() != 0 {
		t.Fatalf("no accrual when the clock is behind the pair: %+v", obs)
	}
}

func TestTokenMeta(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})

	for i := 0; i < 2; i++ {
		meta, err := p.TokenMeta(context.Background(), tokenA.Hex())
		if err != nil {
			t.Fatalf("token meta: %v", err)
		}
		if meta.Decimals != 6 || meta.Symbol != "AAA" || meta.Name != "Token A" {
			t.Fatalf("unexpected meta: %+v", meta)
		}
	}
	if n := fe.count("decimals"); n != 1 {
		t.Fatalf("token metadata should be cached, got %d calls", n)
	}
}

func TestPlannerOverChain(t *testing.T) {
	fe := newFakeEth()
	p := newTestProvider(t, fe, Config{})
	planner := route.NewPlanner(route.Config{}, p, p, nil)

	quote, err := planner.GetQuote(context.Background(), tokenB.Hex(), tokenA.Hex(), big.NewInt(20_000), 50, model.TradeExactIn)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	// 20000*9990*1000000 / (2000000*10000 + 20000*9990)
	if quote.AmountOut.Int64() != 9_891 || quote.FeeBps != 10 {
		t.Fatalf("unexpected quote: out=%s fee=%d", quote.AmountOut, quote.FeeBps)
	}

	_, err = planner.GetQuote(context.Background(), tokenA.Hex(), tokenC.Hex(), big.NewInt(1), 50, model.TradeExactIn)
	if !errors.Is(err, ammerr.ErrPairNotFound) {
		t.Fatalf("missing pair: %v", err)
	}
}
