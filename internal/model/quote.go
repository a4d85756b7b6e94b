package model

import (
	"math/big"
	"strings"

	"ammQuote/internal/ammerr"
)

// TradeType selects which side of a swap is fixed.
type TradeType string

const (
	TradeExactIn  TradeType = "EXACT_IN"
	TradeExactOut TradeType = "EXACT_OUT"
)

// ParseTradeType accepts EXACT_IN / EXACT_OUT in any case, with - or _.
func ParseTradeType(input string) (TradeType, error) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(input), "-", "_")) {
	case "", string(TradeExactIn):
		return TradeExactIn, nil
	case string(TradeExactOut):
		return TradeExactOut, nil
	default:
		return "", ammerr.Validation("parse trade type", "unsupported trade type %q", input)
	}
}

// Hop is the result of one swap step between two adjacent path tokens.
type Hop struct {
	PoolID         string   `json:"pool_id"`
	TokenIn        string   `json:"token_in"`
	TokenOut       string   `json:"token_out"`
	AmountIn       *big.Int `json:"amount_in"`
	AmountOut      *big.Int `json:"amount_out"`
	ReserveIn      *big.Int `json:"reserve_in"`
	ReserveOut     *big.Int `json:"reserve_out"`
	FeeBps         uint32   `json:"fee_bps"`
	FeeAmount      *big.Int `json:"fee_amount"`
	PriceImpactBps uint32   `json:"price_impact_bps"`
}

// Quote is a swap quote over a direct or multi-hop path. AmountInMax is only
// set for exact-output quotes.
type Quote struct {
	TokenIn        string    `json:"token_in"`
	TokenOut       string    `json:"token_out"`
	TradeType      TradeType `json:"trade_type"`
	AmountIn       *big.Int  `json:"amount_in"`
	AmountOut      *big.Int  `json:"amount_out"`
	AmountOutMin   *big.Int  `json:"amount_out_min"`
	AmountInMax    *big.Int  `json:"amount_in_max,omitempty"`
	FeeBps         uint32    `json:"fee_bps"`
	FeeAmount      *big.Int  `json:"fee_amount"`
	PriceImpactBps uint32    `json:"price_impact_bps"`
	Path           []string  `json:"path"`
	Deadline       uint64    `json:"deadline"`
	Hops           []Hop     `json:"hops,omitempty"`
}

// IsMultiHop reports whether the quote crosses more than one pool.
func (q Quote) IsMultiHop() bool {
	return len(q.Path) > 2
}
