package vault_test

import (
	"context"

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
	adminAddr  = common.HexToAddress("0x00000000000000000000000000000000000000ad")
	alice      = common.HexToAddress("0x000000000000000000000000000000000000a11c")
	bob        = common.HexToAddress("0x0000000000000000000000000000000000000b0b")

	addrX = common.HexToAddress("0x0000000000000000000000000000000000001000")
	addrY = common.HexToAddress("0x0000000000000000000000000000000000002000")

	sumPool     = common.HexToAddress("0x0000000000000000000000000000000000005500")
	productPool = common.HexToAddress("0x0000000000000000000000000000000000007700")
)

func e18(v uint64) *uint256.Int { return fixedpoint.Mul(uint256.NewInt(v), fixedpoint.ONE) }

// pct returns p/10000 as an 18-decimal percentage.
func pct(bps uint64) *uint256.Int {
	return fixedpoint.Mul(uint256.NewInt(bps), uint256.NewInt(1e14))
}

// testingT is satisfied by both *testing.T and *rapid.T.
type testingT interface {
	require.TestingT
	Helper()
}

type env struct {
	t      testingT
	ctx    context.Context
	vault  *vault.Vault
	router *router.Router
	sink   *vault.MemorySink
	x, y   *token.Memory
}

func newEnv(t testingT) *env {
	return newEnvWith(t, nil)
}

func newEnvWith(t testingT, configure func(*vault.Config)) *env {
	t.Helper()
	sink := &vault.MemorySink{}
	cfg := vault.Config{
		Address:    vaultAddr,
		Authorizer: vault.AllowAccounts(adminAddr),
		Sink:       sink,
	}
	if configure != nil {
		configure(&cfg)
	}
	v := vault.New(cfg, nil)

	e := &env{
		t:      t,
		ctx:    context.Background(),
		vault:  v,
		router: router.New(v, routerAddr, nil),
		sink:   sink,
		x:      token.NewMemory(addrX, "X", 18),
		y:      token.NewMemory(addrY, "Y", 18),
	}
	for _, holder := range []common.Address{alice, bob} {
		for _, tk := range []*token.Memory{e.x, e.y} {
			tk.Mint(holder, e18(1_000_000))
			tk.Approve(holder, routerAddr, vault.MaxAllowance())
		}
	}
	return e
}

type poolOpts struct {
	swapFee      *uint256.Int
	aggSwapFee   *uint256.Int
	aggYieldFee  *uint256.Int
	yTokenConfig vault.TokenConfig
	lm           vault.LiquidityManagement
}

func (e *env) register(pool common.Address, pricing vault.PricingPool, o poolOpts) {
	e.t.Helper()
	yCfg := o.yTokenConfig
	if yCfg.Token == nil {
		yCfg.Token = e.y
	}
	err := e.vault.RegisterPool(e.ctx, vault.RegisterPoolParams{
		Pool:                        pool,
		Pricing:                     pricing,
		Tokens:                      []vault.TokenConfig{{Token: e.x}, yCfg},
		SwapFeePercentage:           o.swapFee,
		AggregateSwapFeePercentage:  o.aggSwapFee,
		AggregateYieldFeePercentage: o.aggYieldFee,
		LiquidityManagement:         o.lm,
	})
	require.NoError(e.t, err)
}

func (e *env) initialize(pool common.Address, amounts ...*uint256.Int) *uint256.Int {
	e.t.Helper()
	shares, err := e.router.Initialize(e.ctx, alice, vault.InitializeParams{
		Pool:           pool,
		To:             alice,
		ExactAmountsIn: amounts,
		MinSharesOut:   new(uint256.Int),
	})
	require.NoError(e.t, err)
	return shares
}

// sumEnv is a constant-sum pool with a 0.30% fee and 1000/1000 balances.
func sumEnv(t testingT) *env {
	e := newEnv(t)
	e.register(sumPool, pools.NewConstantSum(), poolOpts{swapFee: pct(30)})
	e.initialize(sumPool, e18(1000), e18(1000))
	return e
}

// productEnv is a constant-product pool with a 1% fee, 1000/1000 balances
// and 1000 shares outstanding.
func productEnv(t testingT) *env {
	e := newEnv(t)
	e.register(productPool, pools.NewConstantProduct(), poolOpts{swapFee: pct(100)})
	e.initialize(productPool, e18(1000), e18(1000))
	return e
}

func (e *env) raw(pool common.Address) []*uint256.Int {
	e.t.Helper()
	balances, err := e.vault.PoolBalances(pool)
	require.NoError(e.t, err)
	out := make([]*uint256.Int, len(balances))
	for i, b := range balances {
		out[i] = b.Raw()
	}
	return out
}

func maxAmounts(n int) []*uint256.Int {
	out := make([]*uint256.Int, n)
	for i := range out {
		out[i] = vault.MaxAllowance()
	}
	return out
}
