package vault

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
)

// PoolSwapParams is handed to the pricing hook of a swap. Balances are live
// 18-decimal copies; Session lets the pool call back into the vault.
type PoolSwapParams struct {
	Kind                SwapKind
	AmountGivenScaled18 *uint256.Int
	BalancesScaled18    []*uint256.Int
	IndexIn             int
	IndexOut            int
	Router              common.Address
	UserData            []byte
	Session             *Session
}

// PricingPool is the invariant and pricing collaborator of one pool.
type PricingPool interface {
	OnSwap(params PoolSwapParams) (*uint256.Int, error)
	ComputeInvariant(balancesScaled18 []*uint256.Int, rounding fixedpoint.Rounding) (*uint256.Int, error)
	// ComputeBalance returns the balance of tokenIndex that moves the
	// invariant by invariantRatio with every other balance unchanged.
	ComputeBalance(balancesScaled18 []*uint256.Int, tokenIndex int, invariantRatio *uint256.Int) (*uint256.Int, error)
}

// AddLiquidityCustomParams is handed to OnAddLiquidityCustom.
type AddLiquidityCustomParams struct {
	Router               common.Address
	MaxAmountsInScaled18 []*uint256.Int
	MinSharesOut         *uint256.Int
	BalancesScaled18     []*uint256.Int
	UserData             []byte
	Session              *Session
}

// AddLiquidityCustomResult is the pool's answer to a custom add.
type AddLiquidityCustomResult struct {
	AmountsInScaled18      []*uint256.Int
	SharesOut              *uint256.Int
	SwapFeeAmountsScaled18 []*uint256.Int
	ReturnData             []byte
}

// CustomAddLiquidity is implemented by pools that support AddCustom.
type CustomAddLiquidity interface {
	OnAddLiquidityCustom(params AddLiquidityCustomParams) (AddLiquidityCustomResult, error)
}

// RemoveLiquidityCustomParams is handed to OnRemoveLiquidityCustom.
type RemoveLiquidityCustomParams struct {
	Router                common.Address
	MaxSharesIn           *uint256.Int
	MinAmountsOutScaled18 []*uint256.Int
	BalancesScaled18      []*uint256.Int
	UserData              []byte
	Session               *Session
}

// RemoveLiquidityCustomResult is the pool's answer to a custom remove.
type RemoveLiquidityCustomResult struct {
	SharesIn               *uint256.Int
	AmountsOutScaled18     []*uint256.Int
	SwapFeeAmountsScaled18 []*uint256.Int
	ReturnData             []byte
}

// CustomRemoveLiquidity is implemented by pools that support RemoveCustom.
type CustomRemoveLiquidity interface {
	OnRemoveLiquidityCustom(params RemoveLiquidityCustomParams) (RemoveLiquidityCustomResult, error)
}

// InvariantRatioBounds limits how far a single unbalanced operation may move
// the invariant.
type InvariantRatioBounds interface {
	MinimumInvariantRatio() *uint256.Int
	MaximumInvariantRatio() *uint256.Int
}
