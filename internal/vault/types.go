package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// SwapKind selects which side of a swap the caller fixes.
type SwapKind uint8

const (
	ExactIn SwapKind = iota
	ExactOut
)

func (k SwapKind) String() string {
	if k == ExactOut {
		return "exact_out"
	}
	return "exact_in"
}

// AddLiquidityKind selects the add-liquidity dispatch rule.
type AddLiquidityKind uint8

const (
	AddProportional AddLiquidityKind = iota
	AddUnbalanced
	AddSingleTokenExactOut
	AddDonation
	AddCustom
)

func (k AddLiquidityKind) String() string {
	switch k {
	case AddProportional:
		return "proportional"
	case AddUnbalanced:
		return "unbalanced"
	case AddSingleTokenExactOut:
		return "single_token_exact_out"
	case AddDonation:
		return "donation"
	case AddCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// RemoveLiquidityKind selects the remove-liquidity dispatch rule.
type RemoveLiquidityKind uint8

const (
	RemoveProportional RemoveLiquidityKind = iota
	RemoveSingleTokenExactIn
	RemoveSingleTokenExactOut
	RemoveCustom
)

func (k RemoveLiquidityKind) String() string {
	switch k {
	case RemoveProportional:
		return "proportional"
	case RemoveSingleTokenExactIn:
		return "single_token_exact_in"
	case RemoveSingleTokenExactOut:
		return "single_token_exact_out"
	case RemoveCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Token is the fungible-asset collaborator. Transfers out of the vault use
// the vault address as from.
type Token interface {
	Address() common.Address
	Decimals() uint8
	BalanceOf(holder common.Address) *uint256.Int
	Transfer(from, to common.Address, amount *uint256.Int) error
	TransferFrom(spender, from, to common.Address, amount *uint256.Int) error
}

// RateProvider supplies an 18-decimal rate for rate-bearing tokens.
type RateProvider interface {
	Rate() (*uint256.Int, error)
}

// TokenConfig describes one token slot at registration.
type TokenConfig struct {
	Token Token
	// RateProvider is nil for tokens valued at 1:1.
	RateProvider  RateProvider
	PaysYieldFees bool
}

// LiquidityManagement holds the pool capability flags.
type LiquidityManagement struct {
	DisableUnbalancedLiquidity  bool
	EnableAddLiquidityCustom    bool
	EnableRemoveLiquidityCustom bool
	EnableDonation              bool
}

// PoolConfig is the per-pool configuration.
type PoolConfig struct {
	StaticSwapFeePercentage     *uint256.Int
	AggregateSwapFeePercentage  *uint256.Int
	AggregateYieldFeePercentage *uint256.Int
	Paused                      bool
	RecoveryMode                bool
	Initialized                 bool
	LiquidityManagement         LiquidityManagement
}

func (c PoolConfig) clone() PoolConfig {
	out := c
	out.StaticSwapFeePercentage = fixedpoint.Copy(c.StaticSwapFeePercentage)
	out.AggregateSwapFeePercentage = fixedpoint.Copy(c.AggregateSwapFeePercentage)
	out.AggregateYieldFeePercentage = fixedpoint.Copy(c.AggregateYieldFeePercentage)
	return out
}

// PackedBalance stores a raw balance together with its live 18-decimal
// value. The pair is only ever built by newPackedBalance.
type PackedBalance struct {
	raw  *uint256.Int
	live *uint256.Int
}

func newPackedBalance(raw, live *uint256.Int) PackedBalance {
	return PackedBalance{raw: fixedpoint.Copy(raw), live: fixedpoint.Copy(live)}
}

// Raw returns a copy of the native-precision balance.
func (b PackedBalance) Raw() *uint256.Int { return fixedpoint.Copy(b.raw) }

// LiveScaled18 returns a copy of the rate-adjusted 18-decimal balance.
func (b PackedBalance) LiveScaled18() *uint256.Int { return fixedpoint.Copy(b.live) }

// SwapParams describes one swap.
type SwapParams struct {
	Pool           common.Address
	Kind           SwapKind
	TokenIn        common.Address
	TokenOut       common.Address
	AmountGivenRaw *uint256.Int
	LimitRaw       *uint256.Int
	UserData       []byte
}

// SwapResult reports the settled amounts of a swap.
type SwapResult struct {
	AmountCalculatedRaw *uint256.Int
	AmountIn            *uint256.Int
	AmountOut           *uint256.Int
	TotalFeeRaw         *uint256.Int
	AggregateFeeRaw     *uint256.Int
}

// AddLiquidityParams describes one add-liquidity operation.
type AddLiquidityParams struct {
	Pool         common.Address
	To           common.Address
	Kind         AddLiquidityKind
	MaxAmountsIn []*uint256.Int
	MinSharesOut *uint256.Int
	UserData     []byte
}

// AddLiquidityResult reports the settled amounts of an add.
type AddLiquidityResult struct {
	AmountsIn  []*uint256.Int
	SharesOut  *uint256.Int
	FeeAmounts []*uint256.Int
	ReturnData []byte
}

// RemoveLiquidityParams describes one remove-liquidity operation.
type RemoveLiquidityParams struct {
	Pool          common.Address
	From          common.Address
	Kind          RemoveLiquidityKind
	MaxSharesIn   *uint256.Int
	MinAmountsOut []*uint256.Int
	UserData      []byte
}

// RemoveLiquidityResult reports the settled amounts of a remove.
type RemoveLiquidityResult struct {
	SharesIn   *uint256.Int
	AmountsOut []*uint256.Int
	FeeAmounts []*uint256.Int
	ReturnData []byte
}

// InitializeParams seeds an empty pool.
type InitializeParams struct {
	Pool           common.Address
	To             common.Address
	ExactAmountsIn []*uint256.Int
	MinSharesOut   *uint256.Int
}
