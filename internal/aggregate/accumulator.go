package aggregate

import (
	"fmt"
	"math/big"
)

type flow uint8

const (
	flowSwapIn flow = iota
	flowSwapOut
	flowLiquidityIn
	flowLiquidityOut
)

// contribution is one token's share of a decoded event.
type contribution struct {
	token  string
	flow   flow
	amount *big.Int
	fee    *big.Int
}

// Accumulator holds aggregate values for one (pool, token) window.
type Accumulator struct {
	ChainID      uint64
	PoolAddress  string
	Token        string
	WindowStart  uint64
	WindowEnd    uint64
	SwapCount    uint64
	VolumeIn     *big.Int
	VolumeOut    *big.Int
	SwapFees     *big.Int
	LiquidityIn  *big.Int
	LiquidityOut *big.Int
}

func NewAccumulator(chainID uint64, pool, token string, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		ChainID:      chainID,
		PoolAddress:  pool,
		Token:        token,
		WindowStart:  windowStart,
		WindowEnd:    windowEnd,
		VolumeIn:     big.NewInt(0),
		VolumeOut:    big.NewInt(0),
		SwapFees:     big.NewInt(0),
		LiquidityIn:  big.NewInt(0),
		LiquidityOut: big.NewInt(0),
	}
}

func (a *Accumulator) apply(c contribution) {
	switch c.flow {
	case flowSwapIn:
		a.SwapCount++
		a.VolumeIn.Add(a.VolumeIn, c.amount)
	case flowSwapOut:
		a.SwapCount++
		a.VolumeOut.Add(a.VolumeOut, c.amount)
	case flowLiquidityIn:
		a.LiquidityIn.Add(a.LiquidityIn, c.amount)
	case flowLiquidityOut:
		a.LiquidityOut.Add(a.LiquidityOut, c.amount)
	}
	if c.fee != nil {
		a.SwapFees.Add(a.SwapFees, c.fee)
	}
}

func parseBigInt(value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid int: %s", value)
	}
	if parsed.Sign() < 0 {
		return nil, fmt.Errorf("negative amount: %s", value)
	}
	return parsed, nil
}
