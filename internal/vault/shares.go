package vault

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

func (v *Vault) ensureMinimumTotalSupply(supply *uint256.Int) error {
	if supply.Lt(v.minSupply) {
		return fmt.Errorf("%w: %s < %s", ErrTotalSupplyTooLow, supply.Dec(), v.minSupply.Dec())
	}
	return nil
}

func (v *Vault) mintShares(b *buffer, pool, to common.Address, amount *uint256.Int) error {
	supply := fixedpoint.Add(b.totalSupply(pool), amount)
	if err := v.ensureMinimumTotalSupply(supply); err != nil {
		return err
	}
	b.supply.set(pool, supply)
	b.shares.set(shareKey{pool: pool, holder: to}, fixedpoint.Add(b.shareBalance(pool, to), amount))
	return nil
}

func (v *Vault) burnShares(b *buffer, pool, from common.Address, amount *uint256.Int) error {
	balance := b.shareBalance(pool, from)
	if balance.Lt(amount) {
		return fmt.Errorf("%w: %s holds %s, burning %s", ErrInsufficientShares, from.Hex(), balance.Dec(), amount.Dec())
	}
	supply := fixedpoint.Sub(b.totalSupply(pool), amount)
	if err := v.ensureMinimumTotalSupply(supply); err != nil {
		return err
	}
	b.supply.set(pool, supply)
	b.shares.set(shareKey{pool: pool, holder: from}, fixedpoint.Sub(balance, amount))
	return nil
}

// spendAllowance lets spender use owner's shares. Owners spend their own
// shares freely and a max allowance is never decreased.
func (v *Vault) spendAllowance(b *buffer, pool, owner, spender common.Address, amount *uint256.Int) error {
	if owner == spender {
		return nil
	}
	current := b.allowance(pool, owner, spender)
	if current.Eq(maxAllowance) {
		return nil
	}
	if current.Lt(amount) {
		return fmt.Errorf("%w: %s allowed %s of %s, needs %s", ErrInsufficientAllowance, spender.Hex(), current.Dec(), owner.Hex(), amount.Dec())
	}
	b.allowances.set(allowanceKey{pool: pool, owner: owner, spender: spender}, fixedpoint.Sub(current, amount))
	return nil
}

var maxAllowance = new(uint256.Int).SetAllOne()

// MaxAllowance returns the allowance value that is never spent down.
func MaxAllowance() *uint256.Int { return new(uint256.Int).Set(maxAllowance) }

// ApproveShares sets how many of owner's pool shares spender may burn on
// owner's behalf.
func (v *Vault) ApproveShares(ctx context.Context, pool, owner, spender common.Address, amount *uint256.Int) error {
	return v.mutate(ctx, func(b *buffer) ([]Event, error) {
		if _, err := v.pool(pool); err != nil {
			return nil, err
		}
		b.allowances.set(allowanceKey{pool: pool, owner: owner, spender: spender}, fixedpoint.Copy(amount))
		return nil, nil
	})
}

// TransferShares moves pool shares between holders.
func (v *Vault) TransferShares(ctx context.Context, pool, from, to common.Address, amount *uint256.Int) error {
	return v.mutate(ctx, func(b *buffer) ([]Event, error) {
		if _, err := v.pool(pool); err != nil {
			return nil, err
		}
		balance := b.shareBalance(pool, from)
		if balance.Lt(amount) {
			return nil, fmt.Errorf("%w: %s holds %s, sending %s", ErrInsufficientShares, from.Hex(), balance.Dec(), amount.Dec())
		}
		b.shares.set(shareKey{pool: pool, holder: from}, fixedpoint.Sub(balance, amount))
		b.shares.set(shareKey{pool: pool, holder: to}, fixedpoint.Add(b.shareBalance(pool, to), amount))
		return nil, nil
	})
}
