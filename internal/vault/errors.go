package vault

import (
	"errors"
)

// Sentinel errors. Every one of them aborts the session that produced it.
var (
	// Precondition errors
	ErrSessionLocked          = errors.New("vault: session is locked")
	ErrSessionAborted         = errors.New("vault: session aborted by an earlier failure")
	ErrPoolNotRegistered      = errors.New("vault: pool not registered")
	ErrPoolAlreadyRegistered  = errors.New("vault: pool already registered")
	ErrPoolNotInitialized     = errors.New("vault: pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("vault: pool already initialized")
	ErrPoolPaused             = errors.New("vault: pool is paused")
	ErrCannotSwapSameToken    = errors.New("vault: cannot swap same token")
	ErrAmountGivenZero        = errors.New("vault: amount given is zero")
	ErrTokenNotRegistered     = errors.New("vault: token not registered")
	ErrReentrancy             = errors.New("vault: reentrant call")
	ErrInvalidTokenCount      = errors.New("vault: invalid token count")
	ErrInvalidTokenConfig     = errors.New("vault: invalid token configuration")
	ErrInvalidFeePercentage   = errors.New("vault: fee percentage out of range")
	ErrNotRecoveryMode        = errors.New("vault: pool not in recovery mode")

	// Limit errors
	ErrSwapLimit             = errors.New("vault: swap limit exceeded")
	ErrAmountInAboveMax      = errors.New("vault: amount in above max")
	ErrAmountOutBelowMin     = errors.New("vault: amount out below min")
	ErrSharesOutBelowMin     = errors.New("vault: shares out below min")
	ErrSharesInAboveMax      = errors.New("vault: shares in above max")
	ErrInsufficientAllowance = errors.New("vault: insufficient share allowance")
	ErrInsufficientShares    = errors.New("vault: insufficient share balance")

	// Capability errors
	ErrUnbalancedLiquidityDisabled = errors.New("vault: unbalanced liquidity disabled")
	ErrDonationNotSupported        = errors.New("vault: donation not supported")
	ErrCustomAddNotSupported       = errors.New("vault: custom add liquidity not supported")
	ErrCustomRemoveNotSupported    = errors.New("vault: custom remove liquidity not supported")
	ErrInvalidSingleTokenInput     = errors.New("vault: exactly one token amount must be nonzero")

	// Threshold errors
	ErrTradeAmountTooSmall = errors.New("vault: trade amount too small")

	// Settlement errors
	ErrBalanceNotSettled    = errors.New("vault: balance not settled")
	ErrReservesDecreased    = errors.New("vault: token reserves decreased")
	ErrInsufficientReserves = errors.New("vault: insufficient reserves")
	ErrDeltaOverflow        = errors.New("vault: token delta out of range")

	// Consistency errors
	ErrAggregateFeeExceedsTotal = errors.New("vault: aggregate fee exceeds total fee")
	ErrTotalSupplyTooLow        = errors.New("vault: total supply below minimum")
	ErrMathOverflow             = errors.New("vault: arithmetic out of range")
	ErrInvariantRatio           = errors.New("vault: invariant ratio out of bounds")

	// Access errors
	ErrUnauthorized = errors.New("vault: unauthorized")
)

// IsLimitError reports caller-supplied bound failures. A router may retry
// these with adjusted limits.
func IsLimitError(err error) bool {
	return errors.Is(err, ErrSwapLimit) ||
		errors.Is(err, ErrAmountInAboveMax) ||
		errors.Is(err, ErrAmountOutBelowMin) ||
		errors.Is(err, ErrSharesOutBelowMin) ||
		errors.Is(err, ErrSharesInAboveMax) ||
		errors.Is(err, ErrInsufficientAllowance) ||
		errors.Is(err, ErrInsufficientShares)
}

// IsCapabilityError reports operation kinds the pool has not enabled.
func IsCapabilityError(err error) bool {
	return errors.Is(err, ErrUnbalancedLiquidityDisabled) ||
		errors.Is(err, ErrDonationNotSupported) ||
		errors.Is(err, ErrCustomAddNotSupported) ||
		errors.Is(err, ErrCustomRemoveNotSupported) ||
		errors.Is(err, ErrInvalidSingleTokenInput)
}

// IsThresholdError reports amounts below the minimum trade amount.
func IsThresholdError(err error) bool {
	return errors.Is(err, ErrTradeAmountTooSmall)
}

// IsSettlementError reports ledger failures.
func IsSettlementError(err error) bool {
	return errors.Is(err, ErrBalanceNotSettled) ||
		errors.Is(err, ErrReservesDecreased) ||
		errors.Is(err, ErrInsufficientReserves) ||
		errors.Is(err, ErrDeltaOverflow)
}

// IsConsistencyError reports failures that correct pools never trigger.
func IsConsistencyError(err error) bool {
	return errors.Is(err, ErrAggregateFeeExceedsTotal) ||
		errors.Is(err, ErrTotalSupplyTooLow) ||
		errors.Is(err, ErrMathOverflow) ||
		errors.Is(err, ErrInvariantRatio)
}

// Category names the taxonomy bucket of err for logs and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return "none"
	case IsLimitError(err):
		return "limit"
	case IsCapabilityError(err):
		return "capability"
	case IsThresholdError(err):
		return "threshold"
	case IsSettlementError(err):
		return "settlement"
	case IsConsistencyError(err):
		return "consistency"
	case errors.Is(err, ErrUnauthorized):
		return "access"
	default:
		return "precondition"
	}
}
