package simulation

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"liquidityVault/internal/vault"
)

const shareDecimals = 18

// parseUnits converts a decimal amount in token units to raw units. "max"
// stands for the largest allowance.
func parseUnits(value string, decimals uint8) (*uint256.Int, error) {
	value = strings.TrimSpace(value)
	if strings.EqualFold(value, "max") {
		return vault.MaxAllowance(), nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", value, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("amount %q is negative", value)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q has more than %d decimals", value, decimals)
	}
	out, overflow := uint256.FromBig(shifted.BigInt())
	if overflow {
		return nil, fmt.Errorf("amount %q out of range", value)
	}
	return out, nil
}

// parseOptional is parseUnits with a fallback for empty values.
func parseOptional(value string, decimals uint8, fallback *uint256.Int) (*uint256.Int, error) {
	if strings.TrimSpace(value) == "" {
		return fallback, nil
	}
	return parseUnits(value, decimals)
}

// parseFraction reads a fraction such as "0.003" as an 18-decimal value.
func parseFraction(value string) (*uint256.Int, error) {
	return parseOptional(value, shareDecimals, new(uint256.Int))
}

// formatUnits renders raw units as a decimal amount.
func formatUnits(v *uint256.Int, decimals uint8) string {
	if v == nil {
		return ""
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals)).String()
}
