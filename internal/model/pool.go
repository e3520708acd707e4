package model

// Pool is a vault pool row for storage.
type Pool struct {
	ChainID          uint64 `json:"chain_id"`
	Address          string `json:"address"`
	Vault            string `json:"vault"`
	TokenCount       int    `json:"token_count"`
	FirstSeenSession uint64 `json:"first_seen_session"`
}

// PoolToken is one registered token slot of a pool.
type PoolToken struct {
	ChainID     uint64 `json:"chain_id"`
	PoolAddress string `json:"pool_address"`
	Token       string `json:"token"`
	TokenIndex  int    `json:"token_index"`
}
