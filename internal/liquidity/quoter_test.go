package liquidity

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"ammQuote/internal/ammerr"
	"ammQuote/internal/model"
	"ammQuote/internal/pool"
	"ammQuote/internal/pricing"
)

func newQuoter(t *testing.T, snapshots ...model.PoolSnapshot) *Quoter {
	t.Helper()
	provider := pool.NewMemoryProvider()
	for _, s := range snapshots {
		if err := provider.AddPool(s); err != nil {
			t.Fatalf("add pool %s: %v", s.ID, err)
		}
	}
	return NewQuoter(Config{}, provider, provider, nil)
}

func TestFirstDeposit(t *testing.T) {
	q := newQuoter(t)

	quote, err := q.GetAddLiquidityQuote(context.Background(), "A", "B", big.NewInt(1_000_000))
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if !quote.FirstDeposit || quote.PoolID != "" {
		t.Fatalf("expected first deposit without pool: %+v", quote)
	}
	if quote.ShareOfPool.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("share: %s", quote.ShareOfPool)
	}
	if quote.EstimatedLPTokens.Int64() != 1_000_000-pricing.MinimumLiquidity {
		t.Fatalf("lp: %s", quote.EstimatedLPTokens)
	}
	if quote.AmountB.Int64() != 1_000_000 {
		t.Fatalf("amount b: %s", quote.AmountB)
	}
	if quote.PriceAPerB.Cmp(pricing.PriceScale) != 0 || quote.PriceBPerA.Cmp(pricing.PriceScale) != 0 {
		t.Fatalf("first deposit prices should be unity: %s %s", quote.PriceAPerB, quote.PriceBPerA)
	}
}

func TestFirstDepositIntoEmptyPool(t *testing.T) {
	q := newQuoter(t, model.PoolSnapshot{ID: "ab", Token0: "A", Token1: "B"})

	quote, err := q.GetAddLiquidityQuote(context.Background(), "B", "A", big.NewInt(4_000))
	if err != nil {
		t.Fatalf("first deposit: %v", err)
	}
	if !quote.FirstDeposit || quote.PoolID != "ab" || quote.EstimatedLPTokens.Int64() != 3_000 {
		t.Fatalf("unexpected quote: %+v", quote)
	}

	if _, err := q.GetAddLiquidityQuote(context.Background(), "A", "B", big.NewInt(1_000)); !errors.Is(err, ammerr.ErrInsufficientLiquidity) {
		t.Fatalf("deposit at the minimum liquidity should mint nothing: %v", err)
	}
}

func TestProportionalDeposit(t *testing.T) {
	q := newQuoter(t, model.PoolSnapshot{
		ID: "ab", Token0: "A", Token1: "B",
		Reserve0: "1000", Reserve1: "2000", LPTotalSupply: "1000",
	})

	quote, err := q.GetAddLiquidityQuote(context.Background(), "A", "B", big.NewInt(100))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if quote.AmountB.Int64() != 200 || quote.EstimatedLPTokens.Int64() != 100 {
		t.Fatalf("amounts: b=%s lp=%s", quote.AmountB, quote.EstimatedLPTokens)
	}
	if quote.ShareOfPool.Cmp(big.NewRat(1, 11)) != 0 {
		t.Fatalf("share: %s", quote.ShareOfPool)
	}
	wantAPerB := new(big.Int).Mul(pricing.PriceScale, big.NewInt(2))
	wantBPerA := new(big.Int).Quo(pricing.PriceScale, big.NewInt(2))
	if quote.PriceAPerB.Cmp(wantAPerB) != 0 || quote.PriceBPerA.Cmp(wantBPerA) != 0 {
		t.Fatalf("prices: %s %s", quote.PriceAPerB, quote.PriceBPerA)
	}

	// token order comes from the pool, not argument order
	reversed, err := q.GetAddLiquidityQuote(context.Background(), "B", "A", big.NewInt(200))
	if err != nil {
		t.Fatalf("reversed deposit: %v", err)
	}
	if reversed.AmountB.Int64() != 100 || reversed.EstimatedLPTokens.Int64() != 100 {
		t.Fatalf("reversed amounts: b=%s lp=%s", reversed.AmountB, reversed.EstimatedLPTokens)
	}
}

func TestDepositWithoutSupplyUsesSqrt(t *testing.T) {
	q := newQuoter(t, model.PoolSnapshot{
		ID: "ab", Token0: "A", Token1: "B",
		Reserve0: "1000", Reserve1: "4000",
	})
	quote, err := q.GetAddLiquidityQuote(context.Background(), "A", "B", big.NewInt(10_000))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	// sqrt(10000*40000) - 1000
	if quote.AmountB.Int64() != 40_000 || quote.EstimatedLPTokens.Int64() != 19_000 {
		t.Fatalf("amounts: b=%s lp=%s", quote.AmountB, quote.EstimatedLPTokens)
	}
	if quote.ShareOfPool.Cmp(big.NewRat(1, 1)) != 0 {
		t.Fatalf("share: %s", quote.ShareOfPool)
	}
}

func TestDepositErrors(t *testing.T) {
	q := newQuoter(t, model.PoolSnapshot{ID: "ab", Token0: "A", Token1: "B", Reserve0: "1000", Reserve1: "0", LPTotalSupply: "10"})
	ctx := context.Background()

	if _, err := q.GetAddLiquidityQuote(ctx, "A", "B", big.NewInt(10)); !errors.Is(err, ammerr.ErrInsufficientLiquidity) {
		t.Fatalf("one empty reserve: %v", err)
	}
	if _, err := q.GetAddLiquidityQuote(ctx, "A", "B", big.NewInt(0)); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("zero amount: %v", err)
	}
	if _, err := q.GetAddLiquidityQuote(ctx, "A", "a", big.NewInt(10)); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("same token: %v", err)
	}
}

func TestRemoveLiquidityQuote(t *testing.T) {
	q := newQuoter(t, model.PoolSnapshot{
		ID: "ab", Token0: "A", Token1: "B",
		Reserve0: "1000", Reserve1: "2000", LPTotalSupply: "1000",
	})
	ctx := context.Background()

	quote, err := q.GetRemoveLiquidityQuote(ctx, "B", "A", big.NewInt(100), 50)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if quote.AmountA.Int64() != 200 || quote.AmountB.Int64() != 100 {
		t.Fatalf("amounts: a=%s b=%s", quote.AmountA, quote.AmountB)
	}
	if quote.AmountAMin.Int64() != 199 || quote.AmountBMin.Int64() != 100 {
		t.Fatalf("minimums: a=%s b=%s", quote.AmountAMin, quote.AmountBMin)
	}
	if quote.ShareOfPool.Cmp(big.NewRat(1, 10)) != 0 {
		t.Fatalf("share: %s", quote.ShareOfPool)
	}

	if _, err := q.GetRemoveLiquidityQuote(ctx, "A", "B", big.NewInt(1001), 50); !errors.Is(err, ammerr.ErrInsufficientLiquidity) {
		t.Fatalf("burn above supply: %v", err)
	}
	if _, err := q.GetRemoveLiquidityQuote(ctx, "A", "C", big.NewInt(1), 50); !errors.Is(err, ammerr.ErrPairNotFound) {
		t.Fatalf("missing pool: %v", err)
	}
	if _, err := q.GetRemoveLiquidityQuote(ctx, "A", "B", big.NewInt(10), 20_000); !errors.Is(err, ammerr.ErrValidation) {
		t.Fatalf("slippage out of range: %v", err)
	}
}

func TestGetPosition(t *testing.T) {
	q := newQuoter(t,
		model.PoolSnapshot{
			ID: "ab", Token0: "A", Token1: "B",
			Reserve0: "1000", Reserve1: "2000", LPTotalSupply: "1000",
			LPBalances: map[string]string{"alice": "250"},
		},
		model.PoolSnapshot{
			ID: "cd", Token0: "C", Token1: "D",
			LPBalances: map[string]string{"alice": "5"},
		},
	)
	ctx := context.Background()

	pos, err := q.GetPosition(ctx, "ab", "alice")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.ShareOfPool.Cmp(big.NewRat(1, 4)) != 0 || pos.Amount0.Int64() != 250 || pos.Amount1.Int64() != 500 {
		t.Fatalf("position: %+v", pos)
	}

	pos, err = q.GetPosition(ctx, "ab", "bob")
	if err != nil {
		t.Fatalf("empty position: %v", err)
	}
	if pos.LPBalance.Sign() != 0 || pos.Amount0.Sign() != 0 {
		t.Fatalf("empty position: %+v", pos)
	}

	pos, err = q.GetPosition(ctx, "cd", "alice")
	if err != nil {
		t.Fatalf("zero supply position: %v", err)
	}
	if pos.ShareOfPool.Sign() != 0 || pos.Amount0.Sign() != 0 || pos.Amount1.Sign() != 0 {
		t.Fatalf("zero supply should report zero amounts: %+v", pos)
	}
}
