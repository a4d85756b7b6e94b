package model

import "math/big"

// LiquidityQuote describes a proportional deposit into a pool.
type LiquidityQuote struct {
	PoolID            string   `json:"pool_id,omitempty"`
	TokenA            string   `json:"token_a"`
	TokenB            string   `json:"token_b"`
	AmountA           *big.Int `json:"amount_a"`
	AmountB           *big.Int `json:"amount_b"`
	EstimatedLPTokens *big.Int `json:"estimated_lp_tokens"`
	ShareOfPool       *big.Rat `json:"share_of_pool"`
	PriceAPerB        *big.Int `json:"price_a_per_b"`
	PriceBPerA        *big.Int `json:"price_b_per_a"`
	FirstDeposit      bool     `json:"first_deposit"`
}

// RemoveLiquidityQuote describes burning LP tokens for the underlying pair.
type RemoveLiquidityQuote struct {
	PoolID      string   `json:"pool_id"`
	TokenA      string   `json:"token_a"`
	TokenB      string   `json:"token_b"`
	LPAmount    *big.Int `json:"lp_amount"`
	AmountA     *big.Int `json:"amount_a"`
	AmountB     *big.Int `json:"amount_b"`
	AmountAMin  *big.Int `json:"amount_a_min"`
	AmountBMin  *big.Int `json:"amount_b_min"`
	ShareOfPool *big.Rat `json:"share_of_pool"`
}

// Position is an owner's proportional claim on a pool.
type Position struct {
	PoolID        string   `json:"pool_id"`
	Owner         string   `json:"owner"`
	Token0        string   `json:"token0"`
	Token1        string   `json:"token1"`
	LPBalance     *big.Int `json:"lp_balance"`
	LPTotalSupply *big.Int `json:"lp_total_supply"`
	ShareOfPool   *big.Rat `json:"share_of_pool"`
	Amount0       *big.Int `json:"amount0"`
	Amount1       *big.Int `json:"amount1"`
}
