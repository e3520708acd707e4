package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityVault/internal/fixedpoint"
)

// Admin action names checked against the Authorizer.
const (
	ActionSetStaticSwapFeePercentage = "setStaticSwapFeePercentage"
	ActionSetAggregateFeePercentages = "setAggregateFeePercentages"
	ActionPausePool                  = "pausePool"
	ActionSetRecoveryMode            = "setRecoveryMode"
)

// Authorizer decides whether account may perform action on pool where.
type Authorizer interface {
	CanPerform(action string, account, where common.Address) bool
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(action string, account, where common.Address) bool

func (f AuthorizerFunc) CanPerform(action string, account, where common.Address) bool {
	return f(action, account, where)
}

// DenyAll rejects every admin action.
func DenyAll() Authorizer {
	return AuthorizerFunc(func(string, common.Address, common.Address) bool { return false })
}

// AllowAccounts grants every admin action to the listed accounts.
func AllowAccounts(accounts ...common.Address) Authorizer {
	allowed := make(map[common.Address]struct{}, len(accounts))
	for _, a := range accounts {
		allowed[a] = struct{}{}
	}
	return AuthorizerFunc(func(_ string, account, _ common.Address) bool {
		_, ok := allowed[account]
		return ok
	})
}

// administer runs fn against pool's config under the gate once caller is
// authorized for action.
func (v *Vault) administer(ctx context.Context, caller common.Address, action string, pool common.Address, fn func(p *poolState) (Event, error)) error {
	if s := sessionFromContext(ctx); s != nil && s.vault == v && !s.closed {
		return fmt.Errorf("%w: %s inside an open session", ErrReentrancy, action)
	}
	if err := v.gate.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire vault: %w", err)
	}
	defer v.gate.Release(1)

	if !v.authorizer.CanPerform(action, caller, pool) {
		return fmt.Errorf("%w: %s may not %s on %s", ErrUnauthorized, caller.Hex(), action, pool.Hex())
	}
	p, err := v.pool(pool)
	if err != nil {
		return err
	}

	v.mu.Lock()
	ev, err := fn(p)
	id := v.sessionID
	v.mu.Unlock()
	if err != nil {
		return err
	}

	v.logger.Info("pool config changed",
		zap.String("pool", pool.Hex()),
		zap.String("action", action),
		zap.String("caller", caller.Hex()),
	)
	return v.publish(ctx, id, []Event{ev})
}

// SetStaticSwapFeePercentage changes a pool's swap fee.
func (v *Vault) SetStaticSwapFeePercentage(ctx context.Context, caller, pool common.Address, pct *uint256.Int) error {
	fee := fixedpoint.Copy(pct)
	if fee.Gt(MaxSwapFeePercentage) {
		return fmt.Errorf("%w: swap fee %s > %s", ErrInvalidFeePercentage, fee.Dec(), MaxSwapFeePercentage.Dec())
	}
	return v.administer(ctx, caller, ActionSetStaticSwapFeePercentage, pool, func(p *poolState) (Event, error) {
		p.config.StaticSwapFeePercentage = fee
		return SwapFeeChangedEvent{Pool: pool, SwapFeePercentage: fixedpoint.Copy(fee)}, nil
	})
}

// SetAggregateFeePercentages changes the protocol and creator shares of swap
// and yield fees.
func (v *Vault) SetAggregateFeePercentages(ctx context.Context, caller, pool common.Address, swapPct, yieldPct *uint256.Int) error {
	swapFee, yieldFee := fixedpoint.Copy(swapPct), fixedpoint.Copy(yieldPct)
	if err := validateFeePercentages(new(uint256.Int), swapFee, yieldFee); err != nil {
		return err
	}
	return v.administer(ctx, caller, ActionSetAggregateFeePercentages, pool, func(p *poolState) (Event, error) {
		p.config.AggregateSwapFeePercentage = swapFee
		p.config.AggregateYieldFeePercentage = yieldFee
		return AggregateFeesChangedEvent{
			Pool:                        pool,
			AggregateSwapFeePercentage:  fixedpoint.Copy(swapFee),
			AggregateYieldFeePercentage: fixedpoint.Copy(yieldFee),
		}, nil
	})
}

// SetPoolPaused pauses or resumes swaps and liquidity changes on a pool.
func (v *Vault) SetPoolPaused(ctx context.Context, caller, pool common.Address, paused bool) error {
	return v.administer(ctx, caller, ActionPausePool, pool, func(p *poolState) (Event, error) {
		p.config.Paused = paused
		return PoolPausedEvent{Pool: pool, Paused: paused}, nil
	})
}

// SetRecoveryMode toggles recovery mode. Leaving recovery re-prices live
// balances at current rates so that growth during recovery is not charged
// as yield.
func (v *Vault) SetRecoveryMode(ctx context.Context, caller, pool common.Address, enabled bool) error {
	return v.administer(ctx, caller, ActionSetRecoveryMode, pool, func(p *poolState) (Event, error) {
		if !enabled && p.config.RecoveryMode {
			if err := v.syncLiveBalances(p); err != nil {
				return nil, err
			}
		}
		p.config.RecoveryMode = enabled
		return RecoveryModeEvent{Pool: pool, RecoveryMode: enabled}, nil
	})
}

// syncLiveBalances must be called with mu held.
func (v *Vault) syncLiveBalances(p *poolState) error {
	stored := v.st.balances[p.address]
	updated := make([]PackedBalance, len(stored))
	for i, b := range stored {
		rate, err := p.tokens[i].rate()
		if err != nil {
			return err
		}
		live := fixedpoint.ToScaled18(b.raw, p.tokens[i].scalingFactor, rate, fixedpoint.RoundDown)
		updated[i] = newPackedBalance(b.raw, live)
	}
	v.st.balances[p.address] = updated
	return nil
}
