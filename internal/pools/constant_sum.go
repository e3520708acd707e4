// Package pools holds reference pricing collaborators for the vault. All
// math runs on live 18-decimal balances and rounds in favour of the pool.
package pools

import (
	"fmt"

	"github.com/holiman/uint256"

	"liquidityVault/internal/fixedpoint"
	"liquidityVault/internal/vault"
)

// ConstantSum prices every token 1:1. Its invariant is the sum of balances.
type ConstantSum struct{}

// NewConstantSum returns a constant-sum pricing pool.
func NewConstantSum() *ConstantSum { return &ConstantSum{} }

func (p *ConstantSum) OnSwap(params vault.PoolSwapParams) (*uint256.Int, error) {
	if err := checkIndices(params.BalancesScaled18, params.IndexIn, params.IndexOut); err != nil {
		return nil, err
	}
	// 1:1 either way: the calculated amount equals the given one.
	amount := fixedpoint.Copy(params.AmountGivenScaled18)
	if amount.Gt(params.BalancesScaled18[params.IndexOut]) {
		return nil, fmt.Errorf("constant sum: amount out %s exceeds balance", amount.Dec())
	}
	return amount, nil
}

func (p *ConstantSum) ComputeInvariant(balances []*uint256.Int, _ fixedpoint.Rounding) (*uint256.Int, error) {
	sum := new(uint256.Int)
	for _, b := range balances {
		sum = fixedpoint.Add(sum, b)
	}
	return sum, nil
}

func (p *ConstantSum) ComputeBalance(balances []*uint256.Int, tokenIndex int, invariantRatio *uint256.Int) (*uint256.Int, error) {
	if tokenIndex < 0 || tokenIndex >= len(balances) {
		return nil, fmt.Errorf("constant sum: token index %d out of range", tokenIndex)
	}
	invariant, _ := p.ComputeInvariant(balances, fixedpoint.RoundUp)
	target := fixedpoint.MulUp(invariant, invariantRatio)
	return fixedpoint.Sub(fixedpoint.Add(balances[tokenIndex], target), invariant), nil
}

func checkIndices(balances []*uint256.Int, in, out int) error {
	if in < 0 || in >= len(balances) || out < 0 || out >= len(balances) || in == out {
		return fmt.Errorf("invalid token indices %d -> %d", in, out)
	}
	return nil
}
