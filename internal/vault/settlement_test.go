package vault_test

import (
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/pools"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

var errTransferDisabled = errors.New("transfer disabled")

// flakyToken is a memory token whose outgoing transfers can be switched off.
type flakyToken struct {
	*token.Memory
	failTransfers bool
}

func (f *flakyToken) Transfer(from, to common.Address, amount *uint256.Int) error {
	if f.failTransfers {
		return errTransferDisabled
	}
	return f.Memory.Transfer(from, to, amount)
}

func TestFailedPayoutKeepsReservesBacked(t *testing.T) {
	e := newEnv(t)
	flakyY := &flakyToken{Memory: e.y}
	e.register(sumPool, pools.NewConstantSum(), poolOpts{
		swapFee:      pct(30),
		yTokenConfig: vault.TokenConfig{Token: flakyY},
	})
	e.initialize(sumPool, e18(1000), e18(1000))

	flakyY.failTransfers = true
	aliceX := e.x.BalanceOf(alice)
	_, err := e.router.RemoveLiquidity(e.ctx, alice, vault.RemoveLiquidityParams{
		Pool: sumPool, From: alice, Kind: vault.RemoveProportional,
		MaxSharesIn: e18(20), MinAmountsOut: fixedpoint.Zeros(2),
	})
	require.ErrorIs(t, err, errTransferDisabled)

	// X went out before Y failed; the pool itself is untouched.
	require.Equal(t, fixedpoint.Add(aliceX, e18(10)), e.x.BalanceOf(alice))
	require.Equal(t, e.x.BalanceOf(vaultAddr), e.vault.Reserves(addrX))
	require.Equal(t, []*uint256.Int{e18(1000), e18(1000)}, e.raw(sumPool))

	flakyY.failTransfers = false
	_, err = e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), nil)
	require.NoError(t, err)
	require.Equal(t, e.x.BalanceOf(vaultAddr), e.vault.Reserves(addrX))
}

func TestPayoutsCheckedBeforeAnyTransfer(t *testing.T) {
	e := sumEnv(t)
	require.NoError(t, e.x.Transfer(vaultAddr, bob, e18(995)))
	aliceX, aliceY := e.x.BalanceOf(alice), e.y.BalanceOf(alice)

	_, err := e.router.RemoveLiquidity(e.ctx, alice, vault.RemoveLiquidityParams{
		Pool: sumPool, From: alice, Kind: vault.RemoveProportional,
		MaxSharesIn: e18(20), MinAmountsOut: fixedpoint.Zeros(2),
	})
	require.ErrorIs(t, err, vault.ErrInsufficientReserves)
	require.Equal(t, "settlement", vault.Category(err))
	require.Equal(t, aliceX, e.x.BalanceOf(alice))
	require.Equal(t, aliceY, e.y.BalanceOf(alice))
}

func TestSettleFromReturnsPullOnAbort(t *testing.T) {
	e := sumEnv(t)
	before := e.x.BalanceOf(alice)

	err := e.vault.Unlock(e.ctx, alice, func(s *vault.Session) error {
		credit, err := s.SettleFrom(addrX, alice, routerAddr, e18(5))
		require.NoError(t, err)
		require.Equal(t, e18(5), credit)
		require.Equal(t, fixedpoint.Sub(before, e18(5)), e.x.BalanceOf(alice))
		return nil
	})
	require.ErrorIs(t, err, vault.ErrBalanceNotSettled)
	require.Equal(t, before, e.x.BalanceOf(alice))
	require.Equal(t, e.x.BalanceOf(vaultAddr), e.vault.Reserves(addrX))

	err = e.vault.Quote(e.ctx, alice, func(s *vault.Session) error {
		_, err := s.SettleFrom(addrX, alice, routerAddr, e18(5))
		return err
	})
	require.NoError(t, err)
	require.Equal(t, before, e.x.BalanceOf(alice))
}

func TestSettleFromNeedsTokenAllowance(t *testing.T) {
	e := sumEnv(t)
	e.x.Approve(bob, routerAddr, new(uint256.Int))

	err := e.vault.Unlock(e.ctx, bob, func(s *vault.Session) error {
		_, err := s.SettleFrom(addrX, bob, routerAddr, e18(1))
		return err
	})
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)
	require.Equal(t, e.x.BalanceOf(vaultAddr), e.vault.Reserves(addrX))
}

func TestRemoveBeyondSharesIsLimitError(t *testing.T) {
	e := productEnv(t)
	before := e.raw(productPool)

	single := fixedpoint.Zeros(2)
	single[0] = uint256.NewInt(1)
	for kind, minOut := range map[vault.RemoveLiquidityKind][]*uint256.Int{
		vault.RemoveProportional:       fixedpoint.Zeros(2),
		vault.RemoveSingleTokenExactIn: single,
	} {
		_, err := e.router.RemoveLiquidity(e.ctx, bob, vault.RemoveLiquidityParams{
			Pool: productPool, From: bob, Kind: kind,
			MaxSharesIn: e18(2000), MinAmountsOut: minOut,
		})
		require.ErrorIs(t, err, vault.ErrInsufficientShares, "kind %d", kind)
		require.True(t, vault.IsLimitError(err))
		require.Equal(t, "limit", vault.Category(err))
	}

	all := e.vault.ShareBalance(productPool, alice)
	_, err := e.router.RemoveLiquidity(e.ctx, alice, vault.RemoveLiquidityParams{
		Pool: productPool, From: alice, Kind: vault.RemoveProportional,
		MaxSharesIn: fixedpoint.Add(all, uint256.NewInt(1)), MinAmountsOut: fixedpoint.Zeros(2),
	})
	require.ErrorIs(t, err, vault.ErrInsufficientShares)
	require.Equal(t, before, e.raw(productPool))
}

func TestRecoveryExitBeyondSharesIsLimitError(t *testing.T) {
	e := sumEnv(t)
	require.NoError(t, e.vault.SetRecoveryMode(e.ctx, adminAddr, sumPool, true))

	_, err := e.router.RemoveLiquidityRecovery(e.ctx, bob, sumPool, e18(20), fixedpoint.Zeros(2))
	require.ErrorIs(t, err, vault.ErrInsufficientShares)
	require.Equal(t, "limit", vault.Category(err))
	require.Equal(t, []*uint256.Int{e18(1000), e18(1000)}, e.raw(sumPool))
}
