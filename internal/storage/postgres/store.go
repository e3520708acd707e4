package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"liquidityVault/internal/model"
)

// Store provides Postgres persistence for pools, window metrics, progress
// state and vault snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates the tables the store writes to if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	batch := &pgx.Batch{}
	for _, stmt := range schema {
		batch.Queue(stmt)
	}
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range schema {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, vault_address, token_count, first_seen_session, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				vault_address = EXCLUDED.vault_address,
				token_count = GREATEST(pools.token_count, EXCLUDED.token_count),
				first_seen_session = LEAST(pools.first_seen_session, EXCLUDED.first_seen_session),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Vault,
			pool.TokenCount,
			int64(pool.FirstSeenSession),
		)
	}
	return s.execBatch(ctx, batch, len(pools))
}

// UpsertPoolTokens inserts or updates token slots of pools.
func (s *Store) UpsertPoolTokens(ctx context.Context, tokens []model.PoolToken) error {
	if len(tokens) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, t := range tokens {
		batch.Queue(`
			INSERT INTO pool_tokens (chain_id, pool_address, token_index, token_address, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (chain_id, pool_address, token_index)
			DO UPDATE SET token_address = EXCLUDED.token_address, updated_at = now()
		`,
			int64(t.ChainID),
			t.PoolAddress,
			t.TokenIndex,
			t.Token,
		)
	}
	return s.execBatch(ctx, batch, len(tokens))
}

// UpsertWindowMetrics inserts or updates per-token window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolTokenWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_token_window_metrics (
				chain_id, pool_address, token_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_in, volume_out, swap_fees, liquidity_in, liquidity_out, fee_rate,
				created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now(),now())
			ON CONFLICT (chain_id, pool_address, token_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_in = EXCLUDED.volume_in,
				volume_out = EXCLUDED.volume_out,
				swap_fees = EXCLUDED.swap_fees,
				liquidity_in = EXCLUDED.liquidity_in,
				liquidity_out = EXCLUDED.liquidity_out,
				fee_rate = EXCLUDED.fee_rate,
				updated_at = now()
		`,
			int64(m.ChainID),
			m.PoolAddress,
			m.Token,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeIn,
			m.VolumeOut,
			m.SwapFees,
			m.LiquidityIn,
			m.LiquidityOut,
			m.FeeRate,
		)
	}
	return s.execBatch(ctx, batch, len(metrics))
}

// LoadState returns last_processed_ts for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var ts int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_ts FROM aggregator_state WHERE name=$1`, name)
	if err := row.Scan(&ts); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(ts), true, nil
}

// SaveState upserts last_processed_ts for a name.
func (s *Store) SaveState(ctx context.Context, name string, ts uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO aggregator_state (name, last_processed_ts, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_ts = EXCLUDED.last_processed_ts, updated_at = now()
	`, name, int64(ts))
	return err
}

// SaveSnapshot stores a vault snapshot keyed by vault and session id.
func (s *Store) SaveSnapshot(ctx context.Context, vaultAddress string, snap model.VaultSnapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO vault_snapshots (vault_address, session_id, taken_at, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (vault_address, session_id) DO UPDATE
		SET taken_at = EXCLUDED.taken_at, payload = EXCLUDED.payload
	`, vaultAddress, int64(snap.SessionID), snap.TakenAt, payload)
	return err
}

// LatestSnapshot loads the snapshot with the highest session id.
func (s *Store) LatestSnapshot(ctx context.Context, vaultAddress string) (model.VaultSnapshot, bool, error) {
	var payload []byte
	row := s.pool.QueryRow(ctx, `
		SELECT payload FROM vault_snapshots
		WHERE vault_address = $1
		ORDER BY session_id DESC
		LIMIT 1
	`, vaultAddress)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.VaultSnapshot{}, false, nil
		}
		return model.VaultSnapshot{}, false, err
	}
	var snap model.VaultSnapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return model.VaultSnapshot{}, false, fmt.Errorf("parse snapshot: %w", err)
	}
	return snap, true, nil
}

func (s *Store) execBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
