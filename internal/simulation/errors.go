package simulation

import (
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

var sentinels = map[string]error{
	"ErrSessionLocked":               vault.ErrSessionLocked,
	"ErrSessionAborted":              vault.ErrSessionAborted,
	"ErrPoolNotRegistered":           vault.ErrPoolNotRegistered,
	"ErrPoolAlreadyRegistered":       vault.ErrPoolAlreadyRegistered,
	"ErrPoolNotInitialized":          vault.ErrPoolNotInitialized,
	"ErrPoolAlreadyInitialized":      vault.ErrPoolAlreadyInitialized,
	"ErrPoolPaused":                  vault.ErrPoolPaused,
	"ErrCannotSwapSameToken":         vault.ErrCannotSwapSameToken,
	"ErrAmountGivenZero":             vault.ErrAmountGivenZero,
	"ErrTokenNotRegistered":          vault.ErrTokenNotRegistered,
	"ErrReentrancy":                  vault.ErrReentrancy,
	"ErrInvalidTokenCount":           vault.ErrInvalidTokenCount,
	"ErrInvalidTokenConfig":          vault.ErrInvalidTokenConfig,
	"ErrInvalidFeePercentage":        vault.ErrInvalidFeePercentage,
	"ErrNotRecoveryMode":             vault.ErrNotRecoveryMode,
	"ErrSwapLimit":                   vault.ErrSwapLimit,
	"ErrAmountInAboveMax":            vault.ErrAmountInAboveMax,
	"ErrAmountOutBelowMin":           vault.ErrAmountOutBelowMin,
	"ErrSharesOutBelowMin":           vault.ErrSharesOutBelowMin,
	"ErrSharesInAboveMax":            vault.ErrSharesInAboveMax,
	"ErrInsufficientAllowance":       vault.ErrInsufficientAllowance,
	"ErrInsufficientShares":          vault.ErrInsufficientShares,
	"ErrUnbalancedLiquidityDisabled": vault.ErrUnbalancedLiquidityDisabled,
	"ErrDonationNotSupported":        vault.ErrDonationNotSupported,
	"ErrCustomAddNotSupported":       vault.ErrCustomAddNotSupported,
	"ErrCustomRemoveNotSupported":    vault.ErrCustomRemoveNotSupported,
	"ErrInvalidSingleTokenInput":     vault.ErrInvalidSingleTokenInput,
	"ErrTradeAmountTooSmall":         vault.ErrTradeAmountTooSmall,
	"ErrBalanceNotSettled":           vault.ErrBalanceNotSettled,
	"ErrReservesDecreased":           vault.ErrReservesDecreased,
	"ErrInsufficientReserves":        vault.ErrInsufficientReserves,
	"ErrDeltaOverflow":               vault.ErrDeltaOverflow,
	"ErrAggregateFeeExceedsTotal":    vault.ErrAggregateFeeExceedsTotal,
	"ErrTotalSupplyTooLow":           vault.ErrTotalSupplyTooLow,
	"ErrMathOverflow":                vault.ErrMathOverflow,
	"ErrInvariantRatio":              vault.ErrInvariantRatio,
	"ErrUnauthorized":                vault.ErrUnauthorized,

	"ErrInsufficientBalance":        token.ErrInsufficientBalance,
	"ErrInsufficientTokenAllowance": token.ErrInsufficientAllowance,
}

func sentinel(name string) (error, bool) {
	err, ok := sentinels[name]
	return err, ok
}
