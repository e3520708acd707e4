package postgres

var schema = []string{
	`CREATE TABLE IF NOT EXISTS pools (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		vault_address TEXT NOT NULL,
		token_count INT NOT NULL,
		first_seen_session BIGINT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_tokens (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		token_index INT NOT NULL,
		token_address TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address, token_index)
	)`,
	`CREATE TABLE IF NOT EXISTS pool_token_window_metrics (
		chain_id BIGINT NOT NULL,
		pool_address TEXT NOT NULL,
		token_address TEXT NOT NULL,
		window_size_seconds BIGINT NOT NULL,
		window_start_ts TIMESTAMPTZ NOT NULL,
		window_end_ts TIMESTAMPTZ NOT NULL,
		swap_count BIGINT NOT NULL,
		volume_in NUMERIC(78, 0) NOT NULL,
		volume_out NUMERIC(78, 0) NOT NULL,
		swap_fees NUMERIC(78, 0) NOT NULL,
		liquidity_in NUMERIC(78, 0) NOT NULL,
		liquidity_out NUMERIC(78, 0) NOT NULL,
		fee_rate NUMERIC,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (chain_id, pool_address, token_address, window_size_seconds, window_start_ts)
	)`,
	`CREATE TABLE IF NOT EXISTS aggregator_state (
		name TEXT PRIMARY KEY,
		last_processed_ts BIGINT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS vault_snapshots (
		vault_address TEXT NOT NULL,
		session_id BIGINT NOT NULL,
		taken_at TEXT NOT NULL,
		payload JSONB NOT NULL,
		PRIMARY KEY (vault_address, session_id)
	)`,
}
