package vault_test

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/metrics"
	"liquidityVault/internal/pools"
	"liquidityVault/internal/vault"
)

func TestAdminRequiresAuthorization(t *testing.T) {
	e := sumEnv(t)

	err := e.vault.SetPoolPaused(e.ctx, bob, sumPool, true)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	require.Equal(t, "access", vault.Category(err))

	require.NoError(t, e.vault.SetPoolPaused(e.ctx, adminAddr, sumPool, true))
	cfg, err := e.vault.PoolConfig(sumPool)
	require.NoError(t, err)
	require.True(t, cfg.Paused)
	require.True(t, cfg.Initialized)

	_, err = e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(1), nil)
	require.ErrorIs(t, err, vault.ErrPoolPaused)

	last := e.sink.Batches[len(e.sink.Batches)-1]
	require.Equal(t, vault.PoolPausedEvent{Pool: sumPool, Paused: true}, last[0])
}

func TestDefaultAuthorizerDeniesEverything(t *testing.T) {
	e := newEnvWith(t, func(cfg *vault.Config) { cfg.Authorizer = nil })
	e.register(sumPool, pools.NewConstantSum(), poolOpts{})
	err := e.vault.SetRecoveryMode(e.ctx, adminAddr, sumPool, true)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
}

func TestSetStaticSwapFee(t *testing.T) {
	e := sumEnv(t)
	require.ErrorIs(t, e.vault.SetStaticSwapFeePercentage(e.ctx, adminAddr, sumPool, fixedpoint.One()), vault.ErrInvalidFeePercentage)
	require.NoError(t, e.vault.SetStaticSwapFeePercentage(e.ctx, adminAddr, sumPool, pct(100)))

	res, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), nil)
	require.NoError(t, err)
	require.Equal(t, e18(1), res.TotalFeeRaw)
}

func TestAggregateSwapFeeSplit(t *testing.T) {
	e := sumEnv(t)
	require.NoError(t, e.vault.SetAggregateFeePercentages(e.ctx, adminAddr, sumPool, pct(5000), new(uint256.Int)))

	res, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), nil)
	require.NoError(t, err)
	half := uint256.NewInt(15e16)
	require.Equal(t, half, res.AggregateFeeRaw)

	swapFees, yieldFees := e.vault.AggregateFees(sumPool, addrX)
	require.Equal(t, half, swapFees)
	require.True(t, yieldFees.IsZero())
	// The pool keeps the amount in minus the aggregate share.
	require.Equal(t, fixedpoint.Sub(e18(1100), half), e.raw(sumPool)[0])
}

func TestRecoveryModeExit(t *testing.T) {
	e := sumEnv(t)
	params := []*uint256.Int{new(uint256.Int), new(uint256.Int)}

	err := e.vault.Unlock(e.ctx, alice, func(s *vault.Session) error {
		_, err := s.RemoveLiquidityRecovery(sumPool, alice, e18(10), params)
		return err
	})
	require.ErrorIs(t, err, vault.ErrNotRecoveryMode)

	require.NoError(t, e.vault.SetRecoveryMode(e.ctx, adminAddr, sumPool, true))
	require.NoError(t, e.vault.SetPoolPaused(e.ctx, adminAddr, sumPool, true))

	// 2000 shares over 1000/1000 balances: 20 shares release 10 of each.
	supply := e.vault.TotalSupply(sumPool)
	require.Equal(t, e18(2000), supply)
	xBefore := e.x.BalanceOf(alice)
	out, err := e.router.RemoveLiquidityRecovery(e.ctx, alice, sumPool, e18(20), params)
	require.NoError(t, err)
	require.Equal(t, []*uint256.Int{e18(10), e18(10)}, out)
	require.Equal(t, fixedpoint.Add(xBefore, e18(10)), e.x.BalanceOf(alice))
	require.Equal(t, []*uint256.Int{e18(990), e18(990)}, e.raw(sumPool))
	require.Equal(t, e18(1980), e.vault.TotalSupply(sumPool))

	balances, err := e.vault.PoolBalances(sumPool)
	require.NoError(t, err)
	require.Equal(t, e18(990), balances[0].LiveScaled18())

	require.NoError(t, e.vault.SetRecoveryMode(e.ctx, adminAddr, sumPool, false))
	cfg, err := e.vault.PoolConfig(sumPool)
	require.NoError(t, err)
	require.False(t, cfg.RecoveryMode)
}

func TestRecoveryModeSkipsAggregateFees(t *testing.T) {
	e := sumEnv(t)
	require.NoError(t, e.vault.SetAggregateFeePercentages(e.ctx, adminAddr, sumPool, pct(5000), new(uint256.Int)))
	require.NoError(t, e.vault.SetRecoveryMode(e.ctx, adminAddr, sumPool, true))

	res, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), nil)
	require.NoError(t, err)
	require.True(t, res.AggregateFeeRaw.IsZero())
	require.Equal(t, e18(1100), e.raw(sumPool)[0])
}

func TestYieldFeeChargedOnRateGrowth(t *testing.T) {
	e := newEnv(t)
	e.register(sumPool, pools.NewConstantSum(), poolOpts{
		swapFee:      pct(30),
		aggYieldFee:  pct(5000),
		yTokenConfig: vault.TokenConfig{Token: e.y, RateProvider: e.y, PaysYieldFees: true},
	})
	e.initialize(sumPool, e18(1000), e18(1000))

	rate := uint256.NewInt(1_100_000_000_000_000_000)
	e.y.SetRate(rate)

	_, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(10), nil)
	require.NoError(t, err)

	// Live value grew by 100; half of it, at the new rate, is owed.
	expected := fixedpoint.ToRaw(e18(50), uint256.NewInt(1), rate, fixedpoint.RoundDown)
	_, yieldFees := e.vault.AggregateFees(sumPool, addrY)
	require.Equal(t, expected, yieldFees)

	_, err = e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(10), nil)
	require.NoError(t, err)
	_, again := e.vault.AggregateFees(sumPool, addrY)
	require.Equal(t, expected, again, "no rate change, no new yield fee")
}

// reentrantPool prices like ConstantSum and runs hook inside every swap.
type reentrantPool struct {
	*pools.ConstantSum
	hook func(s *vault.Session) error
}

func (p *reentrantPool) OnSwap(params vault.PoolSwapParams) (*uint256.Int, error) {
	if p.hook != nil {
		if err := p.hook(params.Session); err != nil {
			return nil, err
		}
	}
	return p.ConstantSum.OnSwap(params)
}

func TestSwapHookCannotReenterSwap(t *testing.T) {
	e := newEnv(t)
	pool := &reentrantPool{ConstantSum: pools.NewConstantSum()}
	e.register(sumPool, pool, poolOpts{swapFee: pct(30)})
	e.initialize(sumPool, e18(1000), e18(1000))

	pool.hook = func(s *vault.Session) error {
		_, err := s.Swap(vault.SwapParams{
			Pool: sumPool, Kind: vault.ExactIn, TokenIn: addrY, TokenOut: addrX, AmountGivenRaw: e18(1),
		})
		return err
	}
	_, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(1), nil)
	require.ErrorIs(t, err, vault.ErrReentrancy)
}

func TestSwapHookMayAddLiquidityElsewhere(t *testing.T) {
	e := newEnv(t)
	pool := &reentrantPool{ConstantSum: pools.NewConstantSum()}
	e.register(sumPool, pool, poolOpts{swapFee: pct(30)})
	e.register(productPool, pools.NewConstantProduct(), poolOpts{swapFee: pct(100)})
	e.initialize(sumPool, e18(1000), e18(1000))
	e.initialize(productPool, e18(1000), e18(1000))

	pool.hook = func(s *vault.Session) error {
		_, err := s.AddLiquidity(vault.AddLiquidityParams{
			Pool: productPool, To: alice, Kind: vault.AddProportional,
			MaxAmountsIn: maxAmounts(2), MinSharesOut: e18(1),
		})
		return err
	}
	_, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(1), nil)
	require.NoError(t, err)
	require.Equal(t, e18(1001), e.vault.TotalSupply(productPool))

	// The hook's add also targets the pool being swapped: rejected.
	pool.hook = func(s *vault.Session) error {
		_, err := s.AddLiquidity(vault.AddLiquidityParams{
			Pool: sumPool, To: alice, Kind: vault.AddProportional,
			MaxAmountsIn: maxAmounts(2), MinSharesOut: e18(1),
		})
		return err
	}
	_, err = e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(1), nil)
	require.ErrorIs(t, err, vault.ErrReentrancy)
}

func TestSessionMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	e := newEnvWith(t, func(cfg *vault.Config) { cfg.Metrics = m })
	e.register(sumPool, pools.NewConstantSum(), poolOpts{swapFee: pct(30)})
	e.initialize(sumPool, e18(1000), e18(1000))

	_, err := e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), nil)
	require.NoError(t, err)
	_, err = e.router.SwapExactIn(e.ctx, alice, sumPool, addrX, addrY, e18(100), e18(100))
	require.Error(t, err)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeCommitted)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Sessions.WithLabelValues(metrics.OutcomeAborted)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionErrors.WithLabelValues("limit")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Swaps.WithLabelValues(sumPool.Hex(), addrX.Hex(), addrY.Hex())))
}
