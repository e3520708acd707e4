package model

// SwapEventData is the decoded Swap event payload.
type SwapEventData struct {
	Pool              string `json:"pool"`
	TokenIn           string `json:"token_in"`
	TokenOut          string `json:"token_out"`
	AmountIn          string `json:"amount_in"`
	AmountOut         string `json:"amount_out"`
	SwapFeePercentage string `json:"swap_fee_percentage"`
	SwapFeeAmount     string `json:"swap_fee_amount"`
}

// LiquidityEventData is the decoded LiquidityAdded or LiquidityRemoved
// payload. Amounts are raw and ordered like the pool's tokens.
type LiquidityEventData struct {
	Pool              string   `json:"pool"`
	LiquidityProvider string   `json:"liquidity_provider"`
	Kind              string   `json:"kind"`
	TotalSupply       string   `json:"total_supply"`
	Amounts           []string `json:"amounts"`
	SwapFeeAmounts    []string `json:"swap_fee_amounts"`
}

// TokenAddedEventData is the decoded AddedTokenToPool payload.
type TokenAddedEventData struct {
	Pool  string `json:"pool"`
	Token string `json:"token"`
	Index uint64 `json:"index"`
}

// PoolStateEventData covers the single-field pool events: PoolInitialized,
// PoolPausedStateChanged and PoolRecoveryModeStateChanged.
type PoolStateEventData struct {
	Pool    string `json:"pool"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// FeeChangeEventData covers SwapFeePercentageChanged and
// AggregateFeePercentagesChanged.
type FeeChangeEventData struct {
	Pool                        string `json:"pool"`
	SwapFeePercentage           string `json:"swap_fee_percentage,omitempty"`
	AggregateSwapFeePercentage  string `json:"aggregate_swap_fee_percentage,omitempty"`
	AggregateYieldFeePercentage string `json:"aggregate_yield_fee_percentage,omitempty"`
}
