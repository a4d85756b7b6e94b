// Package pool defines the lookups the quoting core consumes and an
// in-memory implementation used by tests and offline fixtures.
package pool

import (
	"context"
	"math/big"
	"strings"

	"ammQuote/internal/model"
)

// Resolver maps a token pair to a pool id. ok is false when no pool exists.
type Resolver interface {
	Resolve(ctx context.Context, tokenA, tokenB string) (poolID string, ok bool, err error)
}

// ReserveProvider reads current pool state. Values are fetched fresh per call.
type ReserveProvider interface {
	GetReserves(ctx context.Context, poolID string) (model.PoolReserves, error)
	GetDynamicFee(ctx context.Context, poolID string) (uint32, error)
	GetTokenOrder(ctx context.Context, poolID string) (model.TokenOrder, error)
	GetCumulativePrices(ctx context.Context, poolID string) (model.TWAPObservation, error)
	GetLPSupply(ctx context.Context, poolID string) (*big.Int, error)
	GetLPBalance(ctx context.Context, poolID, owner string) (*big.Int, error)
}

// Source is a Resolver that can also read pool state.
type Source interface {
	Resolver
	ReserveProvider
}

// SameToken compares token identifiers case-insensitively, which covers
// mixed-case hex addresses.
func SameToken(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// Orient returns the reserves as (reserveIn, reserveOut) for a swap from
// tokenIn. ok is false when tokenIn is neither pool token.
func Orient(order model.TokenOrder, reserves model.PoolReserves, tokenIn string) (reserveIn, reserveOut *big.Int, ok bool) {
	switch {
	case SameToken(tokenIn, order.Token0):
		return reserves.Reserve0, reserves.Reserve1, true
	case SameToken(tokenIn, order.Token1):
		return reserves.Reserve1, reserves.Reserve0, true
	default:
		return nil, nil, false
	}
}
