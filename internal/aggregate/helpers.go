package aggregate

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const ratioScale = 18

// formatTokenAmount renders a raw amount in whole-token units.
func formatTokenAmount(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	return decimal.NewFromBigInt(value, -int32(decimals)).String()
}

// computeFeeRate returns fees/volume, or nil when there was no volume.
func computeFeeRate(fees, volume *big.Int) *string {
	if fees == nil || volume == nil || volume.Sign() == 0 {
		return nil
	}
	rate := decimal.NewFromBigInt(fees, 0).
		DivRound(decimal.NewFromBigInt(volume, 0), ratioScale).
		String()
	return &rate
}
