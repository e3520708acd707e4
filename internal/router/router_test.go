package router_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/pools"
	"liquidityVault/internal/router"
	"liquidityVault/internal/token"
	"liquidityVault/internal/vault"
)

var (
	vaultAddr  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	routerAddr = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice      = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	pool       = common.HexToAddress("0x0000000000000000000000000000000000007700")
	addrX      = common.HexToAddress("0x0000000000000000000000000000000000001000")
	addrY      = common.HexToAddress("0x0000000000000000000000000000000000002000")
)

func e18(v uint64) *uint256.Int { return fixedpoint.Mul(uint256.NewInt(v), fixedpoint.ONE) }

type fixture struct {
	ctx    context.Context
	vault  *vault.Vault
	router *router.Router
	x, y   *token.Memory
}

// newFixture seeds a 1% constant-product pool with 1000/1000 from alice.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx: context.Background(),
		x:   token.NewMemory(addrX, "X", 18),
		y:   token.NewMemory(addrY, "Y", 18),
	}
	f.vault = vault.New(vault.Config{Address: vaultAddr}, nil)
	f.router = router.New(f.vault, routerAddr, nil)
	for _, tk := range []*token.Memory{f.x, f.y} {
		tk.Mint(alice, e18(1_000_000))
		tk.Approve(alice, routerAddr, vault.MaxAllowance())
	}

	require.NoError(t, f.vault.RegisterPool(f.ctx, vault.RegisterPoolParams{
		Pool:              pool,
		Pricing:           pools.NewConstantProduct(),
		Tokens:            []vault.TokenConfig{{Token: f.x}, {Token: f.y}},
		SwapFeePercentage: fixedpoint.Mul(uint256.NewInt(100), uint256.NewInt(1e14)),
	}))
	_, err := f.router.Initialize(f.ctx, alice, vault.InitializeParams{
		Pool:           pool,
		To:             alice,
		ExactAmountsIn: []*uint256.Int{e18(1000), e18(1000)},
		MinSharesOut:   new(uint256.Int),
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) requireBacked(t *testing.T) {
	t.Helper()
	for _, tk := range []*token.Memory{f.x, f.y} {
		require.Equal(t, tk.BalanceOf(vaultAddr), f.vault.Reserves(tk.Address()), tk.Symbol())
	}
}

func TestExecuteReturnsPullsWhenALaterPullFails(t *testing.T) {
	f := newFixture(t)
	f.y.Approve(alice, routerAddr, new(uint256.Int))
	xBefore, yBefore := f.x.BalanceOf(alice), f.y.BalanceOf(alice)

	_, err := f.router.AddLiquidity(f.ctx, alice, vault.AddLiquidityParams{
		Pool:         pool,
		To:           alice,
		Kind:         vault.AddProportional,
		MaxAmountsIn: []*uint256.Int{vault.MaxAllowance(), vault.MaxAllowance()},
		MinSharesOut: e18(10),
	})
	require.ErrorIs(t, err, token.ErrInsufficientAllowance)

	require.Equal(t, xBefore, f.x.BalanceOf(alice))
	require.Equal(t, yBefore, f.y.BalanceOf(alice))
	require.Equal(t, e18(1000), f.x.BalanceOf(vaultAddr))
	f.requireBacked(t)

	f.y.Approve(alice, routerAddr, vault.MaxAllowance())
	res, err := f.router.AddLiquidity(f.ctx, alice, vault.AddLiquidityParams{
		Pool:         pool,
		To:           alice,
		Kind:         vault.AddProportional,
		MaxAmountsIn: []*uint256.Int{vault.MaxAllowance(), vault.MaxAllowance()},
		MinSharesOut: e18(10),
	})
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Sub(xBefore, res.AmountsIn[0]), f.x.BalanceOf(alice))
	f.requireBacked(t)
}

func TestExecuteReturnsPullsWhenAStepFails(t *testing.T) {
	f := newFixture(t)
	xBefore := f.x.BalanceOf(alice)

	err := f.router.Execute(f.ctx, alice,
		func(s *vault.Session) error {
			_, err := s.Swap(vault.SwapParams{
				Pool: pool, Kind: vault.ExactIn, TokenIn: addrX, TokenOut: addrY, AmountGivenRaw: e18(10),
			})
			return err
		},
		func(s *vault.Session) error {
			// Pays for the swap up front, then trips a limit.
			if _, err := s.SettleFrom(addrX, alice, routerAddr, e18(10)); err != nil {
				return err
			}
			_, err := s.Swap(vault.SwapParams{
				Pool: pool, Kind: vault.ExactIn, TokenIn: addrY, TokenOut: addrX,
				AmountGivenRaw: e18(1), LimitRaw: e18(1000),
			})
			return err
		},
	)
	require.ErrorIs(t, err, vault.ErrSwapLimit)
	require.Equal(t, xBefore, f.x.BalanceOf(alice))
	f.requireBacked(t)
}

func TestExecuteSettlesBothDirections(t *testing.T) {
	f := newFixture(t)
	xBefore, yBefore := f.x.BalanceOf(alice), f.y.BalanceOf(alice)

	res, err := f.router.SwapExactIn(f.ctx, alice, pool, addrX, addrY, e18(10), nil)
	require.NoError(t, err)
	require.Equal(t, fixedpoint.Sub(xBefore, e18(10)), f.x.BalanceOf(alice))
	require.Equal(t, fixedpoint.Add(yBefore, res.AmountOut), f.y.BalanceOf(alice))
	f.requireBacked(t)
}
