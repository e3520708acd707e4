package model

// VaultSnapshot is a point-in-time report of committed vault state.
type VaultSnapshot struct {
	SessionID uint64            `json:"session_id"`
	TakenAt   string            `json:"taken_at"`
	Pools     []PoolSnapshot    `json:"pools"`
	Reserves  []ReserveSnapshot `json:"reserves"`
}

// PoolSnapshot captures one registered pool.
type PoolSnapshot struct {
	Address                     string              `json:"address"`
	Initialized                 bool                `json:"initialized"`
	Paused                      bool                `json:"paused"`
	RecoveryMode                bool                `json:"recovery_mode"`
	StaticSwapFeePercentage     string              `json:"static_swap_fee_percentage"`
	AggregateSwapFeePercentage  string              `json:"aggregate_swap_fee_percentage"`
	AggregateYieldFeePercentage string              `json:"aggregate_yield_fee_percentage"`
	TotalSupply                 string              `json:"total_supply"`
	Tokens                      []PoolTokenSnapshot `json:"tokens"`
}

// PoolTokenSnapshot is one token slot of a pool.
type PoolTokenSnapshot struct {
	Token              string `json:"token"`
	Index              int    `json:"index"`
	Raw                string `json:"raw"`
	LiveScaled18       string `json:"live_scaled18"`
	AggregateSwapFees  string `json:"aggregate_swap_fees"`
	AggregateYieldFees string `json:"aggregate_yield_fees"`
}

// ReserveSnapshot is the vault's accounted holding of one token.
type ReserveSnapshot struct {
	Token  string `json:"token"`
	Amount string `json:"amount"`
}
