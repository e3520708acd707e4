package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/vault"
)

var (
	// Unbalanced operations may move the invariant to between 70% and 300%.
	minInvariantRatio = uint256.NewInt(700_000_000_000_000_000)
	maxInvariantRatio = new(uint256.Int).Mul(uint256.NewInt(3), fixedpoint.ONE)
)

// ConstantProduct is a two-token x*y=k pool. Its invariant is sqrt(x*y), so
// it grows linearly with proportional deposits.
type ConstantProduct struct{}

// NewConstantProduct returns a constant-product pricing pool.
func NewConstantProduct() *ConstantProduct { return &ConstantProduct{} }

func (p *ConstantProduct) OnSwap(params vault.PoolSwapParams) (*uint256.Int, error) {
	if len(params.BalancesScaled18) != 2 {
		return nil, fmt.Errorf("constant product: %d balances, want 2", len(params.BalancesScaled18))
	}
	if err := checkIndices(params.BalancesScaled18, params.IndexIn, params.IndexOut); err != nil {
		return nil, err
	}
	balanceIn := params.BalancesScaled18[params.IndexIn]
	balanceOut := params.BalancesScaled18[params.IndexOut]
	amount := params.AmountGivenScaled18

	if params.Kind == vault.ExactIn {
		// out = bOut * in / (bIn + in)
		return fixedpoint.MulDivDown(balanceOut, amount, fixedpoint.Add(balanceIn, amount)), nil
	}
	if !amount.Lt(balanceOut) {
		return nil, fmt.Errorf("constant product: amount out %s drains balance %s", amount.Dec(), balanceOut.Dec())
	}
	// in = bIn * out / (bOut - out)
	return fixedpoint.MulDivUp(balanceIn, amount, fixedpoint.Sub(balanceOut, amount)), nil
}

func (p *ConstantProduct) ComputeInvariant(balances []*uint256.Int, rounding fixedpoint.Rounding) (*uint256.Int, error) {
	if len(balances) != 2 {
		return nil, fmt.Errorf("constant product: %d balances, want 2", len(balances))
	}
	return fixedpoint.Sqrt(fixedpoint.Mul(balances[0], balances[1]), rounding), nil
}

func (p *ConstantProduct) ComputeBalance(balances []*uint256.Int, tokenIndex int, invariantRatio *uint256.Int) (*uint256.Int, error) {
	if tokenIndex != 0 && tokenIndex != 1 {
		return nil, fmt.Errorf("constant product: token index %d out of range", tokenIndex)
	}
	invariant, err := p.ComputeInvariant(balances, fixedpoint.RoundUp)
	if err != nil {
		return nil, err
	}
	target := fixedpoint.MulUp(invariant, invariantRatio)
	other := balances[1-tokenIndex]
	if other.IsZero() {
		return nil, fmt.Errorf("constant product: zero balance")
	}
	return fixedpoint.DivRawUp(fixedpoint.Mul(target, target), other), nil
}

func (p *ConstantProduct) MinimumInvariantRatio() *uint256.Int { return fixedpoint.Copy(minInvariantRatio) }

func (p *ConstantProduct) MaximumInvariantRatio() *uint256.Int { return fixedpoint.Copy(maxInvariantRatio) }
