package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ammQuote/internal/model"
	"ammQuote/internal/pool"
)

// Schema creates the tables the store reads from.
//
//go:embed schema.sql
var Schema string

var _ pool.Source = (*Store)(nil)

// Store serves pool state from an indexer database. It never writes pool
// state; the indexer keeps pool_reserves current.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: db}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Resolve(ctx context.Context, tokenA, tokenB string) (string, bool, error) {
	var poolID string
	row := s.pool.QueryRow(ctx, `
		SELECT pool_id FROM pairs
		WHERE (lower(token0) = lower($1) AND lower(token1) = lower($2))
		   OR (lower(token0) = lower($2) AND lower(token1) = lower($1))
		ORDER BY created_at
		LIMIT 1
	`, strings.TrimSpace(tokenA), strings.TrimSpace(tokenB))
	if err := row.Scan(&poolID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("resolve pair: %w", err)
	}
	return poolID, true, nil
}

func (s *Store) GetReserves(ctx context.Context, poolID string) (model.PoolReserves, error) {
	var r0, r1 string
	var ts int64
	row := s.pool.QueryRow(ctx, `
		SELECT reserve0::text, reserve1::text, block_timestamp_last
		FROM pool_reserves WHERE pool_id = $1
	`, poolID)
	if err := row.Scan(&r0, &r1, &ts); err != nil {
		return model.PoolReserves{}, notFound("reserves", poolID, err)
	}
	reserve0, err := parseNumeric(r0)
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve0: %w", err)
	}
	reserve1, err := parseNumeric(r1)
	if err != nil {
		return model.PoolReserves{}, fmt.Errorf("reserve1: %w", err)
	}
	return model.PoolReserves{Reserve0: reserve0, Reserve1: reserve1, BlockTimestampLast: uint64(ts)}, nil
}

func (s *Store) GetDynamicFee(ctx context.Context, poolID string) (uint32, error) {
	var fee int32
	row := s.pool.QueryRow(ctx, `SELECT fee_bps FROM pairs WHERE pool_id = $1`, poolID)
	if err := row.Scan(&fee); err != nil {
		return 0, notFound("fee", poolID, err)
	}
	if fee < 0 {
		return 0, fmt.Errorf("negative fee %d for pool %s", fee, poolID)
	}
	return uint32(fee), nil
}

func (s *Store) GetTokenOrder(ctx context.Context, poolID string) (model.TokenOrder, error) {
	var order model.TokenOrder
	row := s.pool.QueryRow(ctx, `SELECT token0, token1 FROM pairs WHERE pool_id = $1`, poolID)
	if err := row.Scan(&order.Token0, &order.Token1); err != nil {
		return model.TokenOrder{}, notFound("token order", poolID, err)
	}
	return order, nil
}

// GetCumulativePrices returns the accumulators as of the indexer's last sync.
func (s *Store) GetCumulativePrices(ctx context.Context, poolID string) (model.TWAPObservation, error) {
	var p0, p1 string
	var ts int64
	row := s.pool.QueryRow(ctx, `
		SELECT price0_cumulative_last::text, price1_cumulative_last::text, block_timestamp_last
		FROM pool_reserves WHERE pool_id = $1
	`, poolID)
	if err := row.Scan(&p0, &p1, &ts); err != nil {
		return model.TWAPObservation{}, notFound("cumulative prices", poolID, err)
	}
	price0, err := parseNumeric(p0)
	if err != nil {
		return model.TWAPObservation{}, fmt.Errorf("price0 cumulative: %w", err)
	}
	price1, err := parseNumeric(p1)
	if err != nil {
		return model.TWAPObservation{}, fmt.Errorf("price1 cumulative: %w", err)
	}
	return model.TWAPObservation{
		Price0CumulativeLast: price0,
		Price1CumulativeLast: price1,
		BlockTimestampLast:   uint64(ts),
	}, nil
}

func (s *Store) GetLPSupply(ctx context.Context, poolID string) (*big.Int, error) {
	var supply string
	row := s.pool.QueryRow(ctx, `SELECT total_supply::text FROM pool_reserves WHERE pool_id = $1`, poolID)
	if err := row.Scan(&supply); err != nil {
		return nil, notFound("lp supply", poolID, err)
	}
	return parseNumeric(supply)
}

// GetLPBalance returns zero for owners without a row.
func (s *Store) GetLPBalance(ctx context.Context, poolID, owner string) (*big.Int, error) {
	var balance string
	row := s.pool.QueryRow(ctx, `
		SELECT balance::text FROM lp_balances
		WHERE pool_id = $1 AND lower(owner) = lower($2)
	`, poolID, strings.TrimSpace(owner))
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return big.NewInt(0), nil
		}
		return nil, fmt.Errorf("lp balance: %w", err)
	}
	return parseNumeric(balance)
}

// UpsertSnapshot writes a pool snapshot in one transaction. It seeds
// fixtures and test databases; production rows come from the indexer.
func (s *Store) UpsertSnapshot(ctx context.Context, snap model.PoolSnapshot) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO pairs (pool_id, token0, token1, fee_bps)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (pool_id) DO UPDATE SET
			token0 = EXCLUDED.token0,
			token1 = EXCLUDED.token1,
			fee_bps = EXCLUDED.fee_bps
	`, snap.ID, snap.Token0, snap.Token1, int32(snap.FeeBps))
	batch.Queue(`
		INSERT INTO pool_reserves (
			pool_id, reserve0, reserve1, block_timestamp_last,
			price0_cumulative_last, price1_cumulative_last, total_supply, updated_at
		) VALUES ($1, $2::numeric, $3::numeric, $4, $5::numeric, $6::numeric, $7::numeric, now())
		ON CONFLICT (pool_id) DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			block_timestamp_last = EXCLUDED.block_timestamp_last,
			price0_cumulative_last = EXCLUDED.price0_cumulative_last,
			price1_cumulative_last = EXCLUDED.price1_cumulative_last,
			total_supply = EXCLUDED.total_supply,
			updated_at = now()
	`,
		snap.ID,
		orZero(snap.Reserve0),
		orZero(snap.Reserve1),
		int64(snap.BlockTimestamp),
		orZero(snap.Price0Cumulative),
		orZero(snap.Price1Cumulative),
		orZero(snap.LPTotalSupply),
	)
	for owner, balance := range snap.LPBalances {
		batch.Queue(`
			INSERT INTO lp_balances (pool_id, owner, balance, updated_at)
			VALUES ($1, $2, $3::numeric, now())
			ON CONFLICT (pool_id, owner) DO UPDATE SET
				balance = EXCLUDED.balance,
				updated_at = now()
		`, snap.ID, owner, orZero(balance))
	}

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for i := 0; i < batch.Len(); i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("upsert pool %s: %w", snap.ID, err)
			}
		}
		return br.Close()
	})
}

func notFound(what, poolID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: unknown pool %s", what, poolID)
	}
	return fmt.Errorf("%s for %s: %w", what, poolID, err)
}

func parseNumeric(value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric %q", value)
	}
	return v, nil
}

func orZero(value string) string {
	if strings.TrimSpace(value) == "" {
		return "0"
	}
	return value
}
