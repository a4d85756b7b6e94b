package model

import "math/big"

// TWAPObservation is one reading of a pool's cumulative price accumulators.
type TWAPObservation struct {
	Price0CumulativeLast *big.Int `json:"price0_cumulative_last"`
	Price1CumulativeLast *big.Int `json:"price1_cumulative_last"`
	BlockTimestampLast   uint64   `json:"block_timestamp_last"`
}

// TWAPResult is the average price over TimeWindow seconds.
type TWAPResult struct {
	Price0TWAP *big.Int `json:"price0_twap"`
	Price1TWAP *big.Int `json:"price1_twap"`
	TimeWindow uint64   `json:"time_window"`
}

// TWAPSample is one tick of the TWAP watch loop, as written to sinks.
type TWAPSample struct {
	PoolID      string          `json:"pool_id"`
	Observation TWAPObservation `json:"observation"`
	Result      *TWAPResult     `json:"result,omitempty"`
	Cached      int             `json:"cached"`
	SampledAt   string          `json:"sampled_at"`
}
