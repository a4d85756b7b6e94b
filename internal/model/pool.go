package model

import "math/big"

// PoolReserves holds a pool's reserves in its own token order.
type PoolReserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint64
}

// TokenOrder is the pool's canonical token ordering.
type TokenOrder struct {
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
}

// PoolSnapshot is a static description of one pool, as loaded from a pool
// fixture file. Integer fields are decimal strings.
type PoolSnapshot struct {
	ID               string            `yaml:"id" json:"id"`
	Token0           string            `yaml:"token0" json:"token0"`
	Token1           string            `yaml:"token1" json:"token1"`
	Reserve0         string            `yaml:"reserve0" json:"reserve0"`
	Reserve1         string            `yaml:"reserve1" json:"reserve1"`
	FeeBps           uint32            `yaml:"fee_bps" json:"fee_bps"`
	LPTotalSupply    string            `yaml:"lp_total_supply" json:"lp_total_supply"`
	Price0Cumulative string            `yaml:"price0_cumulative" json:"price0_cumulative"`
	Price1Cumulative string            `yaml:"price1_cumulative" json:"price1_cumulative"`
	BlockTimestamp   uint64            `yaml:"block_timestamp" json:"block_timestamp"`
	LPBalances       map[string]string `yaml:"lp_balances" json:"lp_balances,omitempty"`
}
