package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxDecimals is the largest token precision the scaling helpers accept.
const MaxDecimals = 18

// DecimalScalingFactor returns 10^(18-decimals), the integer that lifts a raw
// amount to 18 decimals.
func DecimalScalingFactor(decimals uint8) (*uint256.Int, error) {
	if decimals > MaxDecimals {
		return nil, fmt.Errorf("token decimals %d exceed %d", decimals, MaxDecimals)
	}
	return Pow10(MaxDecimals - decimals), nil
}

// ToScaled18 converts a raw amount to its rate-adjusted 18-decimal value.
func ToScaled18(amountRaw, scalingFactor, rate *uint256.Int, rounding Rounding) *uint256.Int {
	lifted := Mul(amountRaw, scalingFactor)
	if rounding == RoundUp {
		return MulUp(lifted, rate)
	}
	return MulDown(lifted, rate)
}

// ToRaw converts an 18-decimal live amount back to native precision, undoing
// the rate.
func ToRaw(amountScaled18, scalingFactor, rate *uint256.Int, rounding Rounding) *uint256.Int {
	divisor := Mul(scalingFactor, rate)
	if rounding == RoundUp {
		return DivUp(amountScaled18, divisor)
	}
	return DivDown(amountScaled18, divisor)
}

// ToScaled18Slice applies ToScaled18 element-wise.
func ToScaled18Slice(amountsRaw, scalingFactors, rates []*uint256.Int, rounding Rounding) []*uint256.Int {
	out := make([]*uint256.Int, len(amountsRaw))
	for i, amount := range amountsRaw {
		out[i] = ToScaled18(amount, scalingFactors[i], rates[i], rounding)
	}
	return out
}

// Zeros returns n fresh zero values.
func Zeros(n int) []*uint256.Int {
	out := make([]*uint256.Int, n)
	for i := range out {
		out[i] = new(uint256.Int)
	}
	return out
}

// CopySlice deep-copies a slice of amounts.
func CopySlice(in []*uint256.Int) []*uint256.Int {
	out := make([]*uint256.Int, len(in))
	for i, v := range in {
		out[i] = Copy(v)
	}
	return out
}
