package model

import "time"

// PoolTokenWindowMetrics aggregates one token's activity in one pool over a
// fixed time window. Amounts are raw decimal strings.
type PoolTokenWindowMetrics struct {
	ChainID        uint64
	PoolAddress    string
	Token          string
	WindowSizeSecs int64
	WindowStart    time.Time
	WindowEnd      time.Time
	SwapCount      uint64
	VolumeIn       string
	VolumeOut      string
	SwapFees       string
	LiquidityIn    string
	LiquidityOut   string
	FeeRate        *string
}
